package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/novatask/novatask/internal/models"
	"github.com/novatask/novatask/internal/taskservice"
)

// PublishFunc receives reminder events. kind is "due" (payload is a
// *models.Task) or "summary" (payload is the summary string).
type PublishFunc func(kind string, payload any)

// Reminder scans the collection for tasks that are overdue or due within
// the lookahead window. Each task is announced at most once per process
// lifetime.
type Reminder struct {
	svc       *taskservice.Service
	logger    *slog.Logger
	publish   PublishFunc
	lookahead time.Duration

	mu       sync.Mutex
	notified map[string]struct{}
}

// New creates a Reminder. publish may be nil when no event sink is wired.
func New(svc *taskservice.Service, lookahead time.Duration, logger *slog.Logger, publish PublishFunc) *Reminder {
	return &Reminder{
		svc:       svc,
		logger:    logger,
		publish:   publish,
		lookahead: lookahead,
		notified:  make(map[string]struct{}),
	}
}

// Scan finds overdue and due-soon tasks and announces the new ones.
func (r *Reminder) Scan(ctx context.Context, now time.Time) error {
	due, err := r.svc.DueBetween(ctx, time.Time{}, now.Add(r.lookahead))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range due {
		if _, seen := r.notified[t.ID]; seen {
			continue
		}
		r.notified[t.ID] = struct{}{}

		state := "due soon"
		if t.Overdue(now) {
			state = "overdue"
		}
		r.logger.Info("task "+state,
			slog.String("id", t.ID),
			slog.String("text", t.Text),
			slog.Time("due", *t.DueDate))
		if r.publish != nil {
			task := t
			r.publish("due", &task)
		}
	}
	return nil
}

// DailySummary builds a plain-text summary of every open task,
// deadline-first with overdue tasks flagged, and announces it.
func (r *Reminder) DailySummary(ctx context.Context, now time.Time) (string, error) {
	tasks, err := r.svc.ListAll(ctx, models.Filter{Status: models.StatusActive})
	if err != nil {
		return "", err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		ti, tj := tasks[i], tasks[j]
		switch {
		case ti.DueDate == nil && tj.DueDate == nil:
			if ri, rj := models.PriorityRank(ti.Priority), models.PriorityRank(tj.Priority); ri != rj {
				return ri < rj
			}
			return ti.CreatedAt.After(tj.CreatedAt)
		case ti.DueDate == nil:
			return false
		case tj.DueDate == nil:
			return true
		case ti.DueDate.Equal(*tj.DueDate):
			return models.PriorityRank(ti.Priority) < models.PriorityRank(tj.Priority)
		default:
			return ti.DueDate.Before(*tj.DueDate)
		}
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary %s\n", now.Format("2006-01-02"))
	if len(tasks) == 0 {
		b.WriteString("no open tasks\n")
	}
	for _, t := range tasks {
		b.WriteString(formatLine(t, now))
	}
	summary := strings.TrimSpace(b.String())

	r.logger.Info("daily summary", slog.Int("open_tasks", len(tasks)))
	if r.publish != nil {
		r.publish("summary", summary)
	}
	return summary, nil
}

func formatLine(t models.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- [%s] %s", t.Priority, t.Text)
	if t.Category != "" {
		fmt.Fprintf(&b, " (%s)", t.Category)
	}
	if t.DueDate != nil {
		if t.Overdue(now) {
			fmt.Fprintf(&b, " due %s OVERDUE", t.DueDate.Format("2006-01-02"))
		} else {
			fmt.Fprintf(&b, " due %s", t.DueDate.Format("2006-01-02"))
		}
	}
	b.WriteByte('\n')
	return b.String()
}
