package store

import (
	"database/sql"
	"fmt"
)

// Task represents a tracked task.
type Task struct {
	ID        int64
	Title     string
	Status    string // pending, in_progress, done — open set, stored verbatim
	Labels    string
	ChannelID string
	UserID    string
	CreatedAt string // ISO-8601
	UpdatedAt string // ISO-8601
}

// TaskFilter narrows ListTasks. Empty fields are unconstrained.
type TaskFilter struct {
	Status string
	Scope
}

const taskColumns = `id, title, status, labels, channel_id, user_id, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	t := &Task{}
	var labels, channelID, userID sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &t.Status, &labels, &channelID, &userID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Labels = labels.String
	t.ChannelID = channelID.String
	t.UserID = userID.String
	return t, nil
}

// CreateTask inserts a new task with status pending and returns it with the
// store-assigned id.
func (s *Store) CreateTask(title, labels string, sc Scope) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowISO()
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, status, labels, channel_id, user_id, created_at, updated_at) VALUES (?, 'pending', ?, ?, ?, ?, ?)`,
		title, nullable(labels), nullable(sc.ChannelID), nullable(sc.UserID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read task id: %w", err)
	}

	return &Task{
		ID:        id,
		Title:     title,
		Status:    "pending",
		Labels:    labels,
		ChannelID: sc.ChannelID,
		UserID:    sc.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ListTasks returns tasks matching all provided filter fields, newest first.
func (s *Store) ListTasks(f TaskFilter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qb := &queryBuilder{}
	if f.Status != "" {
		qb.where("status = ?", f.Status)
	}
	qb.scope(f.Scope)
	clause, args := qb.clause()

	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks`+clause+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// FindTask resolves idOrText to at most one task within the given scope.
// All-digit operands match by exact id only; anything else is a substring
// match against the title. Ambiguity resolves to the highest id. Returns
// (nil, nil) when nothing matches.
func (s *Store) FindTask(idOrText string, sc Scope) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qb := &queryBuilder{}
	if isAllDigits(idOrText) {
		qb.where("id = ?", idOrText)
	} else {
		qb.where("title LIKE ?", "%"+idOrText+"%")
	}
	qb.scope(sc)
	clause, args := qb.clause()

	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks`+clause+` ORDER BY id DESC LIMIT 1`, args...)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus sets the status of the task and refreshes updated_at.
func (s *Store) UpdateTaskStatus(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, status, s.nowISO(), id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %d", id)
	}
	return nil
}

// DeleteTask permanently removes a task. Deletion has no tombstone.
func (s *Store) DeleteTask(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// DeleteCompletedTasks bulk-deletes tasks whose status is exactly 'done'
// within scope and returns the number of rows removed.
func (s *Store) DeleteCompletedTasks(sc Scope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qb := &queryBuilder{}
	qb.where("status = 'done'")
	qb.scope(sc)
	clause, args := qb.clause()

	res, err := s.db.Exec(`DELETE FROM tasks`+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed tasks: %w", err)
	}
	return res.RowsAffected()
}

// StatusCount pairs a status token with the number of tasks carrying it.
type StatusCount struct {
	Status string
	Count  int
}

// CountTasksByStatus returns one entry per distinct status present in scope.
// Absent statuses are not zero-filled.
func (s *Store) CountTasksByStatus(sc Scope) ([]StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qb := &queryBuilder{}
	qb.scope(sc)
	clause, args := qb.clause()

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks`+clause+` GROUP BY status ORDER BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TasksCreatedSince returns the newest tasks created at or after the given
// ISO timestamp, newest first. Not scoped: the digest's recent-activity
// section is global.
func (s *Store) TasksCreatedSince(iso string, limit int) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`, iso, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
