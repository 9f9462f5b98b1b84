// Package storage persists the task collection as a single JSON file.
package storage

import "github.com/novatask/novatask/internal/models"

// Provider is the interface for task collection persistence.
type Provider interface {
	// Load reads the whole collection. A missing data file yields an
	// empty collection; corrupt JSON yields ErrCorrupt.
	Load() ([]models.Task, error)
	// Save atomically writes the whole collection.
	Save(tasks []models.Task) error
	// Path returns the absolute path of the data file.
	Path() string
}
