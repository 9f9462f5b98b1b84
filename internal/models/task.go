// Package models defines the domain types for NovaTask.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Priority levels for a task.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Status filter values for listing tasks.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// CategoryAll matches every category in a filter.
const CategoryAll = "all"

// Task is a single todo item. Tasks live in an ordered in-memory
// collection and are persisted as a JSON array on every mutation.
type Task struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Done      bool       `json:"done"`
	Priority  string     `json:"priority"`
	Category  string     `json:"category,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate checks the task fields against the domain constraints.
func (t Task) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Text, validation.Required, validation.Length(1, 500)),
		validation.Field(&t.Priority, validation.Required,
			validation.In(PriorityLow, PriorityMedium, PriorityHigh)),
		validation.Field(&t.Category, validation.Length(0, 100)),
	)
}

// Overdue reports whether the task has a due date in the past and is not done.
func (t Task) Overdue(now time.Time) bool {
	return !t.Done && t.DueDate != nil && t.DueDate.Before(now)
}

// PriorityRank maps a priority to a sortable weight (high first).
func PriorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Filter selects a subset of the collection for list operations.
// Zero values mean "all".
type Filter struct {
	Status   string
	Category string
}

// Normalize fills empty fields with the "all" wildcards.
func (f Filter) Normalize() Filter {
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.Category == "" {
		f.Category = CategoryAll
	}
	return f
}

// Validate rejects unknown status values.
func (f Filter) Validate() error {
	f = f.Normalize()
	return validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.In(StatusAll, StatusActive, StatusCompleted)),
	)
}

// Matches is the filter predicate. For any task the status and category
// clauses are independent, so the status × category combinations
// partition the collection.
func (f Filter) Matches(t Task) bool {
	f = f.Normalize()
	switch f.Status {
	case StatusActive:
		if t.Done {
			return false
		}
	case StatusCompleted:
		if !t.Done {
			return false
		}
	}
	if f.Category != CategoryAll && t.Category != f.Category {
		return false
	}
	return true
}

// CategoryCount aggregates task counts for one category.
type CategoryCount struct {
	Category  string `json:"category"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
}

// Stats summarizes the whole collection.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}
