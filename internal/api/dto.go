package api

import (
	"time"

	"github.com/novatask/novatask/internal/index"
	"github.com/novatask/novatask/internal/models"
)

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Text     string     `json:"text" example:"Buy milk" validate:"required"`
	Priority string     `json:"priority,omitempty" example:"high"`
	Category string     `json:"category,omitempty" example:"errands"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// QuickAddRequest is the request body for quick-add task entry.
type QuickAddRequest struct {
	Line string `json:"line" example:"Buy milk !high #errands @2026-09-01" validate:"required"`
}

// UpdateTaskRequest is the request body for a partial task update.
// Absent fields are left unchanged; clear_due removes an existing due date.
type UpdateTaskRequest struct {
	Text     *string    `json:"text,omitempty" example:"Buy oat milk"`
	Priority *string    `json:"priority,omitempty" example:"low"`
	Category *string    `json:"category,omitempty" example:"groceries"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	ClearDue bool       `json:"clear_due,omitempty"`
}

// ClearRequest selects what the clear operation removes.
type ClearRequest struct {
	CompletedOnly bool `json:"completed_only" example:"true"`
}

// Task is the task response type (aliased from the domain layer).
type Task = models.Task

// TaskListResponse wraps paginated task listings.
type TaskListResponse struct {
	Tasks []Task `json:"tasks" validate:"required"`
	Total int    `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// ImportResponse reports the outcome of a backup import.
type ImportResponse struct {
	Added   int `json:"added" example:"10" validate:"required"`
	Skipped int `json:"skipped" example:"2" validate:"required"`
}

// ClearResponse reports how many tasks a clear operation removed.
type ClearResponse struct {
	Removed int `json:"removed" example:"5" validate:"required"`
}
