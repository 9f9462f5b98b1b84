// Package taskservice implements the task collection operations.
//
// The collection is an ordered in-memory sequence guarded by a mutex.
// Every mutation is written through to the JSON data file (atomically,
// with a bounded retry) and mirrored into the SQLite index.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novatask/novatask/internal/apperr"
	"github.com/novatask/novatask/internal/checksum"
	"github.com/novatask/novatask/internal/index"
	"github.com/novatask/novatask/internal/models"
	"github.com/novatask/novatask/internal/parser"
	"github.com/novatask/novatask/internal/storage"
)

// saveAttempts bounds the write retry on persistence failures.
const saveAttempts = 3

// EventFunc is invoked after a successful mutation. kind is one of
// "created", "updated", "toggled", "deleted", "reloaded", "cleared".
// task is nil for collection-wide events.
type EventFunc func(kind string, task *models.Task)

// Service coordinates the in-memory collection, storage, and index.
type Service struct {
	store  storage.Provider
	idx    index.TaskIndex
	logger *slog.Logger

	mu       sync.Mutex
	tasks    []models.Task
	digest   string // checksum of the data file as of the last load/save
	notify   EventFunc
	notifyMu sync.RWMutex
}

// NewService loads the collection from storage and rebuilds the index.
// A corrupt data file is logged and replaced by an empty collection, so a
// broken blob never prevents startup.
func NewService(store storage.Provider, idx index.TaskIndex, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, idx: idx, logger: logger}

	tasks, err := store.Load()
	if err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			return nil, err
		}
		logger.Error("data file corrupt, starting with empty collection",
			slog.String("path", store.Path()),
			slog.String("error", err.Error()))
		tasks = []models.Task{}
	}
	s.tasks = tasks

	if err := idx.Replace(tasks); err != nil {
		return nil, fmt.Errorf("taskservice: rebuild index: %w", err)
	}
	s.digest, _ = checksum.File(store.Path())
	return s, nil
}

// SetEventFunc registers the mutation notification callback.
func (s *Service) SetEventFunc(fn EventFunc) {
	s.notifyMu.Lock()
	s.notify = fn
	s.notifyMu.Unlock()
}

func (s *Service) publish(kind string, task *models.Task) {
	s.notifyMu.RLock()
	fn := s.notify
	s.notifyMu.RUnlock()
	if fn != nil {
		fn(kind, task)
	}
}

// CreateInput holds the fields for a new task.
type CreateInput struct {
	Text     string
	Priority string
	Category string
	DueDate  *time.Time
}

// Create validates, appends, persists, and indexes a new task.
func (s *Service) Create(_ context.Context, in CreateInput) (*models.Task, error) {
	now := time.Now()
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	t := models.Task{
		ID:        uuid.NewString(),
		Text:      in.Text,
		Priority:  in.Priority,
		Category:  in.Category,
		DueDate:   in.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]models.Task{}, s.tasks...), t)
	if err := s.persistLocked(next); err != nil {
		return nil, err
	}
	if err := s.idx.Upsert(t); err != nil {
		return nil, err
	}
	s.publish("created", &t)
	return &t, nil
}

// QuickAdd creates a task from a quick-add line
// ("Buy milk !high #errands @2026-09-01").
func (s *Service) QuickAdd(ctx context.Context, line string) (*models.Task, error) {
	res := parser.Parse(line)
	return s.Create(ctx, CreateInput{
		Text:     res.Text,
		Priority: res.Priority,
		Category: res.Category,
		DueDate:  res.DueDate,
	})
}

// Get returns the task with the given id.
func (s *Service) Get(_ context.Context, id string) (*models.Task, error) {
	t, err := s.idx.Get(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

// UpdateInput holds partial-update fields. Nil pointers leave the field
// unchanged; ClearDue removes an existing due date.
type UpdateInput struct {
	Text     *string
	Priority *string
	Category *string
	DueDate  *time.Time
	ClearDue bool
}

// Update applies a partial update to the task with the given id.
func (s *Service) Update(_ context.Context, id string, in UpdateInput) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexOfLocked(id)
	if pos < 0 {
		return nil, apperr.ErrNotFound
	}

	t := s.tasks[pos]
	if in.Text != nil {
		t.Text = *in.Text
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.ClearDue {
		t.DueDate = nil
	} else if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	t.UpdatedAt = time.Now()

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	next := append([]models.Task{}, s.tasks...)
	next[pos] = t
	if err := s.persistLocked(next); err != nil {
		return nil, err
	}
	if err := s.idx.Upsert(t); err != nil {
		return nil, err
	}
	s.publish("updated", &t)
	return &t, nil
}

// Toggle flips the completion flag of the task with the given id.
func (s *Service) Toggle(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexOfLocked(id)
	if pos < 0 {
		return nil, apperr.ErrNotFound
	}

	t := s.tasks[pos]
	t.Done = !t.Done
	t.UpdatedAt = time.Now()

	next := append([]models.Task{}, s.tasks...)
	next[pos] = t
	if err := s.persistLocked(next); err != nil {
		return nil, err
	}
	if err := s.idx.Upsert(t); err != nil {
		return nil, err
	}
	s.publish("toggled", &t)
	return &t, nil
}

// Delete removes the task with the given id.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexOfLocked(id)
	if pos < 0 {
		return apperr.ErrNotFound
	}
	deleted := s.tasks[pos]

	next := append([]models.Task{}, s.tasks[:pos]...)
	next = append(next, s.tasks[pos+1:]...)
	if err := s.persistLocked(next); err != nil {
		return err
	}
	if err := s.idx.Delete(id); err != nil {
		return err
	}
	s.publish("deleted", &deleted)
	return nil
}

// Clear removes completed tasks, or the whole collection when
// completedOnly is false. Returns the number of removed tasks.
func (s *Service) Clear(_ context.Context, completedOnly bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []models.Task
	if completedOnly {
		kept = make([]models.Task, 0, len(s.tasks))
		for _, t := range s.tasks {
			if !t.Done {
				kept = append(kept, t)
			}
		}
	} else {
		kept = []models.Task{}
	}
	removed := len(s.tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := s.persistLocked(kept); err != nil {
		return 0, err
	}
	if err := s.idx.Replace(kept); err != nil {
		return 0, err
	}
	s.publish("cleared", nil)
	return removed, nil
}

// List returns tasks matching the filter plus the total match count.
func (s *Service) List(_ context.Context, f models.Filter, sort string, limit, offset int) ([]models.Task, int, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return s.idx.List(f, sort, limit, offset)
}

// ListAll returns every task matching the filter in insertion order,
// without pagination. For internal consumers (reminders, MCP tools) that
// must see the whole collection.
func (s *Service) ListAll(_ context.Context, f models.Filter) ([]models.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Task{}
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.idx.Search(query, limit)
}

// Categories returns per-category counts.
func (s *Service) Categories(_ context.Context) ([]models.CategoryCount, error) {
	return s.idx.Categories()
}

// Stats returns collection-wide counters.
func (s *Service) Stats(_ context.Context) (models.Stats, error) {
	return s.idx.Stats(time.Now())
}

// DueBetween returns open tasks due in (from, to], soonest first.
func (s *Service) DueBetween(_ context.Context, from, to time.Time) ([]models.Task, error) {
	return s.idx.DueBetween(from, to)
}

// Export returns a snapshot of the collection in insertion order.
func (s *Service) Export(_ context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Task{}, s.tasks...), nil
}

// Import merges tasks into the collection. Records whose id already
// exists are skipped, preserving the unique-id invariant. Imported tasks
// without an id or priority get them assigned.
func (s *Service) Import(_ context.Context, incoming []models.Task) (added, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		existing[t.ID] = struct{}{}
	}

	now := time.Now()
	next := append([]models.Task{}, s.tasks...)
	var accepted []models.Task
	for _, t := range incoming {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, dup := existing[t.ID]; dup {
			skipped++
			continue
		}
		if t.Priority == "" {
			t.Priority = models.PriorityMedium
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		if vErr := t.Validate(); vErr != nil {
			skipped++
			continue
		}
		existing[t.ID] = struct{}{}
		next = append(next, t)
		accepted = append(accepted, t)
	}

	if len(accepted) == 0 {
		return 0, skipped, nil
	}
	if err := s.persistLocked(next); err != nil {
		return 0, skipped, err
	}
	for _, t := range accepted {
		if err := s.idx.Upsert(t); err != nil {
			return 0, skipped, err
		}
	}
	s.publish("reloaded", nil)
	return len(accepted), skipped, nil
}

// Reload re-reads the data file (after an external change), replaces the
// in-memory collection, and rebuilds the index. Corrupt content is logged
// and ignored, keeping the current collection.
func (s *Service) Reload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.store.Load()
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			s.logger.Warn("reload: data file corrupt, keeping current collection",
				slog.String("error", err.Error()))
			return nil
		}
		return err
	}
	s.tasks = tasks
	if err := s.idx.Replace(tasks); err != nil {
		return err
	}
	s.digest, _ = checksum.File(s.store.Path())
	s.publish("reloaded", nil)
	return nil
}

// DataPath returns the absolute path of the data file.
func (s *Service) DataPath() string {
	return s.store.Path()
}

// DataChecksum returns the digest of the data file as of the last
// load or save. The watcher uses it to skip events caused by our own writes.
func (s *Service) DataChecksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digest
}

// persistLocked saves next with a bounded retry and, on success, installs
// it as the current collection. Callers must hold s.mu.
func (s *Service) persistLocked(next []models.Task) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = s.store.Save(next); err == nil {
			s.tasks = next
			s.digest, _ = checksum.File(s.store.Path())
			return nil
		}
		s.logger.Warn("save failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	return fmt.Errorf("taskservice: save after %d attempts: %w", saveAttempts, err)
}

func (s *Service) indexOfLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
