package index

import (
	"time"

	"github.com/novatask/novatask/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Snippet string `json:"snippet"`
}

// TaskIndex defines the interface for task indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type TaskIndex interface {
	Upsert(t models.Task) error
	Delete(id string) error
	Replace(tasks []models.Task) error
	Get(id string) (*models.Task, error)
	List(f models.Filter, sort string, limit, offset int) ([]models.Task, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Categories() ([]models.CategoryCount, error)
	Stats(now time.Time) (models.Stats, error)
	DueBetween(from, to time.Time) ([]models.Task, error)
	Close() error
}

// Verify *DB satisfies TaskIndex at compile time.
var _ TaskIndex = (*DB)(nil)
