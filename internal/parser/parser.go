// Package parser implements the quick-add syntax for task entry lines.
//
// A line like
//
//	Buy milk !high #errands @2026-09-01
//
// yields the text "Buy milk" with priority high, category "errands" and a
// due date. Unrecognised tokens stay in the text.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/novatask/novatask/internal/models"
)

var (
	priorityRe = regexp.MustCompile(`(?:^|\s)!(low|medium|high)\b`)
	categoryRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	dueRe      = regexp.MustCompile(`(?:^|\s)@(\d{4}-\d{2}-\d{2}|today|tomorrow)\b`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Result holds the output of parsing a quick-add line.
type Result struct {
	Text     string
	Priority string
	Category string
	DueDate  *time.Time
}

// Parse extracts priority, category, and due-date tokens from a quick-add
// line. The first occurrence of each token wins; all occurrences are
// stripped from the text. Priority defaults to medium.
func Parse(line string) *Result {
	res := &Result{Priority: models.PriorityMedium}
	rest := line

	if m := priorityRe.FindStringSubmatch(rest); m != nil {
		res.Priority = m[1]
		rest = priorityRe.ReplaceAllString(rest, " ")
	}
	if m := categoryRe.FindStringSubmatch(rest); m != nil {
		res.Category = m[1]
		rest = categoryRe.ReplaceAllString(rest, " ")
	}
	if m := dueRe.FindStringSubmatch(rest); m != nil {
		if due, ok := parseDue(m[1], time.Now()); ok {
			res.DueDate = &due
		}
		rest = dueRe.ReplaceAllString(rest, " ")
	}

	res.Text = strings.TrimSpace(spaceRe.ReplaceAllString(rest, " "))
	return res
}

// parseDue resolves a due token to end-of-day local time.
func parseDue(token string, now time.Time) (time.Time, bool) {
	var day time.Time
	switch token {
	case "today":
		day = now
	case "tomorrow":
		day = now.AddDate(0, 0, 1)
	default:
		parsed, err := time.ParseInLocation("2006-01-02", token, now.Location())
		if err != nil {
			return time.Time{}, false
		}
		day = parsed
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, now.Location()), true
}
