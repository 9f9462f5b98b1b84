package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/novatask/novatask/internal/models"
)

// List pagination bounds. Limits are clamped so that arbitrary
// offset/limit values never produce out-of-range reads.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Sort fields accepted by List.
const (
	SortCreated  = "created_at"
	SortDue      = "due_date"
	SortPriority = "priority"
	SortText     = "text"
)

// orderBy maps sort names to ORDER BY clauses. Unknown names fall back to
// insertion order (created_at).
var orderBy = map[string]string{
	SortCreated:  `created_at ASC`,
	SortDue:      `due_date IS NULL, due_date ASC, created_at ASC`,
	SortPriority: `CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC`,
	SortText:     `text COLLATE NOCASE ASC`,
}

// Upsert inserts or replaces a task and its FTS entry within a transaction.
func (db *DB) Upsert(t models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertRow(tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertRow(tx *sql.Tx, t models.Task) error {
	_, err := tx.Exec(`
		INSERT INTO tasks (id, text, done, priority, category, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text       = excluded.text,
			done       = excluded.done,
			priority   = excluded.priority,
			category   = excluded.category,
			due_date   = excluded.due_date,
			updated_at = excluded.updated_at
	`, t.ID, t.Text, t.Done, t.Priority, t.Category, nullableTime(t.DueDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert task: %w", err)
	}
	return ftsUpsert(tx, t.ID, t.Text, t.Category)
}

// Delete removes a task and its FTS entry.
func (db *DB) Delete(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE id = ?`, id)

	return tx.Commit()
}

// Replace rebuilds the whole index from the given collection.
func (db *DB) Replace(tasks []models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("index: clear tasks: %w", err)
	}
	ftsClear(tx)
	for _, t := range tasks {
		if err := upsertRow(tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns a single task by id, or nil when absent.
func (db *DB) Get(id string) (*models.Task, error) {
	row := db.conn.QueryRow(`
		SELECT id, text, done, priority, category, due_date, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("index: get task: %w", err)
	}
	return t, nil
}

// List returns tasks matching the filter plus the total match count.
// Offset and limit are clamped into valid ranges.
func (db *DB) List(f models.Filter, sort string, limit, offset int) ([]models.Task, int, error) {
	f = f.Normalize()
	limit, offset = ClampRange(limit, offset)

	where, args := filterClause(f)

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count: %w", err)
	}

	order, ok := orderBy[sort]
	if !ok {
		order = orderBy[SortCreated]
	}

	query := `
		SELECT id, text, done, priority, category, due_date, created_at, updated_at
		FROM tasks` + where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// Categories returns every distinct non-empty category with its
// active/completed counts, ordered by name.
func (db *DB) Categories() ([]models.CategoryCount, error) {
	rows, err := db.conn.Query(`
		SELECT category,
		       sum(CASE WHEN done = 0 THEN 1 ELSE 0 END),
		       sum(CASE WHEN done = 1 THEN 1 ELSE 0 END)
		FROM tasks
		WHERE category != ''
		GROUP BY category
		ORDER BY category COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("index: categories: %w", err)
	}
	defer rows.Close()

	out := []models.CategoryCount{}
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Active, &c.Completed); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats returns collection-wide counters. Overdue counts open tasks whose
// due date lies before now.
func (db *DB) Stats(now time.Time) (models.Stats, error) {
	var s models.Stats
	err := db.conn.QueryRow(`
		SELECT count(*),
		       sum(CASE WHEN done = 0 THEN 1 ELSE 0 END),
		       sum(CASE WHEN done = 1 THEN 1 ELSE 0 END),
		       sum(CASE WHEN done = 0 AND due_date IS NOT NULL AND due_date < ? THEN 1 ELSE 0 END)
		FROM tasks
	`, now).Scan(&s.Total, &s.Active, &s.Completed, &s.Overdue)
	if err != nil {
		return models.Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}

// DueBetween returns open tasks whose due date falls in (from, to],
// ordered soonest first. Used by the reminder scanner.
func (db *DB) DueBetween(from, to time.Time) ([]models.Task, error) {
	rows, err := db.conn.Query(`
		SELECT id, text, done, priority, category, due_date, created_at, updated_at
		FROM tasks
		WHERE done = 0 AND due_date IS NOT NULL AND due_date > ? AND due_date <= ?
		ORDER BY due_date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("index: due between: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ClampRange bounds limit/offset so any caller-supplied values yield a
// valid window into the collection.
func ClampRange(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func filterClause(f models.Filter) (string, []any) {
	where := ""
	var args []any
	and := func(cond string) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	switch f.Status {
	case models.StatusActive:
		and("done = 0")
	case models.StatusCompleted:
		and("done = 1")
	}
	if f.Category != models.CategoryAll {
		and("category = ?")
		args = append(args, f.Category)
	}
	return where, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var due sql.NullTime
	if err := s.Scan(&t.ID, &t.Text, &t.Done, &t.Priority, &t.Category, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
