package task

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/db"
)

const taskColumns = `id, project_id, title, description, status, priority, assignee_id, creator_id, due_date, deleted, created_at, updated_at, completed_at`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id           BIGSERIAL PRIMARY KEY,
			project_id   BIGINT NOT NULL REFERENCES projects(id),
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'todo',
			priority     INTEGER NOT NULL DEFAULT 0,
			assignee_id  BIGINT REFERENCES users(id),
			creator_id   BIGINT NOT NULL REFERENCES users(id),
			due_date     TIMESTAMPTZ,
			deleted      BOOLEAN NOT NULL DEFAULT false,
			created_at   TIMESTAMPTZ DEFAULT NOW(),
			updated_at   TIMESTAMPTZ DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, status) WHERE NOT deleted`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date) WHERE NOT deleted AND status != 'completed'`)
	return err
}

// Create inserts a new task.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusToDo
	}
	if t.Status == StatusCompleted {
		t.CompletedAt = &now
	}

	err := s.q.QueryRow(ctx, `
		INSERT INTO tasks (project_id, title, description, status, priority, assignee_id, creator_id, due_date, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		t.ProjectID, t.Title, t.Description, string(t.Status), t.Priority, t.AssigneeID, t.CreatorID, t.DueDate, t.CreatedAt, t.UpdatedAt, t.CompletedAt).
		Scan(&t.ID)
	if err != nil {
		return nil, db.Classify("create task", err)
	}
	return t, nil
}

// Get retrieves a single live task by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(s.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND NOT deleted`, id))
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("get task %d", id), err)
	}
	return t, nil
}

// GetMany returns the live tasks among ids.
func (s *PgStore) GetMany(ctx context.Context, ids []int64) (map[int64]*Task, error) {
	out := make(map[int64]*Task, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1) AND NOT deleted`, ids)
	if err != nil {
		return nil, db.Classify("get tasks", err)
	}
	defer rows.Close()
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		out[tasks[i].ID] = &tasks[i]
	}
	return out, nil
}

// Update modifies the non-nil fields of u.
func (s *PgStore) Update(ctx context.Context, id int64, u Update) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)

	// Build SET clause dynamically
	setClauses := "updated_at = $1"
	args := []any{now}
	add := func(col string, v any) {
		args = append(args, v)
		setClauses += fmt.Sprintf(", %s = $%d", col, len(args))
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Priority != nil {
		add("priority", *u.Priority)
	}
	switch {
	case u.ClearDue:
		setClauses += ", due_date = NULL"
	case u.DueDate != nil:
		add("due_date", *u.DueDate)
	}

	return s.updateReturning(ctx, id, setClauses, args)
}

// SetStatus changes the status, stamping completed_at on completion and
// clearing it otherwise.
func (s *PgStore) SetStatus(ctx context.Context, id int64, status Status) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	setClauses := `updated_at = $1, status = $2,
		completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, $1) ELSE NULL END`
	return s.updateReturning(ctx, id, setClauses, []any{now, string(status)})
}

// SetAssignee assigns or unassigns the task.
func (s *PgStore) SetAssignee(ctx context.Context, id int64, assigneeID *int64) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	return s.updateReturning(ctx, id, "updated_at = $1, assignee_id = $2", []any{now, assigneeID})
}

func (s *PgStore) updateReturning(ctx context.Context, id int64, setClauses string, args []any) (*Task, error) {
	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d AND NOT deleted RETURNING %s", setClauses, len(args), taskColumns)
	t, err := scanTask(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("update task %d", id), err)
	}
	return t, nil
}

// SoftDelete flags the task as deleted.
func (s *PgStore) SoftDelete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `UPDATE tasks SET deleted = true, updated_at = NOW() WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return db.Classify(fmt.Sprintf("delete task %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %d: %w", id, errTaskNotFound)
	}
	return nil
}

// ByProject returns a project's live tasks ordered by priority desc then created_at asc.
func (s *PgStore) ByProject(ctx context.Context, projectID int64, f Filter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 AND NOT deleted`
	args := []any{projectID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.AssigneeID != 0 {
		args = append(args, f.AssigneeID)
		query += fmt.Sprintf(" AND assignee_id = $%d", len(args))
	}
	query += " ORDER BY priority DESC, created_at ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify("list tasks", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// DueBefore returns open, assigned, live tasks due at or before t.
func (s *PgStore) DueBefore(ctx context.Context, t time.Time) ([]Task, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE NOT deleted AND status != 'completed' AND assignee_id IS NOT NULL
		  AND due_date IS NOT NULL AND due_date <= $1
		ORDER BY due_date ASC`, t)
	if err != nil {
		return nil, db.Classify("tasks due", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Count returns total live task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE NOT deleted`).Scan(&n)
	return n, db.Classify("count tasks", err)
}

// OpenCount returns the count of live tasks that are not completed.
func (s *PgStore) OpenCount(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE NOT deleted AND status != 'completed'`).Scan(&n)
	return n, db.Classify("count open tasks", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var status string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &t.Priority, &t.AssigneeID, &t.CreatorID, &t.DueDate, &t.Deleted, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, db.Classify("scan task", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("task rows", err)
	}
	return tasks, nil
}
