package dependency

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/db"
	"taskhub/pkg/apperr"
)

// graphLockKey is the advisory lock id taken by LockGraph.
const graphLockKey int64 = 0x7461736b64657073 // "taskdeps"

// PgStore is a PostgreSQL-backed edge store.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the task_dependencies table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_dependencies (
			task_id          BIGINT NOT NULL REFERENCES tasks(id),
			blocking_task_id BIGINT NOT NULL REFERENCES tasks(id),
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (task_id, blocking_task_id),
			CHECK (task_id != blocking_task_id)
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_dependencies_blocking ON task_dependencies(blocking_task_id)`)
	return err
}

// Add inserts an edge.
func (s *PgStore) Add(ctx context.Context, d *Dependency) (*Dependency, error) {
	d.CreatedAt = time.Now().Truncate(time.Microsecond)
	_, err := s.q.Exec(ctx, `
		INSERT INTO task_dependencies (task_id, blocking_task_id, created_at)
		VALUES ($1, $2, $3)`, d.TaskID, d.BlockingTaskID, d.CreatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("add dependency %d -> %d", d.TaskID, d.BlockingTaskID), err)
	}
	return d, nil
}

// Remove deletes an edge.
func (s *PgStore) Remove(ctx context.Context, taskID, blockingTaskID int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM task_dependencies WHERE task_id = $1 AND blocking_task_id = $2`, taskID, blockingTaskID)
	if err != nil {
		return db.Classify("remove dependency", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove dependency %d -> %d: %w", taskID, blockingTaskID, apperr.ErrNotFound)
	}
	return nil
}

// Exists reports whether the edge is present.
func (s *PgStore) Exists(ctx context.Context, taskID, blockingTaskID int64) (bool, error) {
	var ok bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM task_dependencies WHERE task_id = $1 AND blocking_task_id = $2)`,
		taskID, blockingTaskID).Scan(&ok)
	if err != nil {
		return false, db.Classify("dependency exists", err)
	}
	return ok, nil
}

// ByTask returns what taskID is blocked by.
func (s *PgStore) ByTask(ctx context.Context, taskID int64) ([]Dependency, error) {
	return s.scanMany(ctx, `
		SELECT task_id, blocking_task_id, created_at
		FROM task_dependencies WHERE task_id = $1 ORDER BY created_at, blocking_task_id`, taskID)
}

// Blocking returns what taskID blocks.
func (s *PgStore) Blocking(ctx context.Context, taskID int64) ([]Dependency, error) {
	return s.scanMany(ctx, `
		SELECT task_id, blocking_task_id, created_at
		FROM task_dependencies WHERE blocking_task_id = $1 ORDER BY created_at, task_id`, taskID)
}

// Reachable walks blocked-by edges from taskID. UNION (not UNION ALL)
// discards repeated rows, so existing cycles terminate the recursion.
func (s *PgStore) Reachable(ctx context.Context, taskID int64) ([]Dependency, error) {
	return s.scanMany(ctx, `
		WITH RECURSIVE reach AS (
			SELECT d.task_id, d.blocking_task_id, d.created_at
			FROM task_dependencies d
			WHERE d.task_id = $1
			UNION
			SELECT d.task_id, d.blocking_task_id, d.created_at
			FROM task_dependencies d
			JOIN reach r ON d.task_id = r.blocking_task_id
		)
		SELECT task_id, blocking_task_id, created_at FROM reach`, taskID)
}

// LockGraph takes a transaction-scoped advisory lock on the dependency graph.
func (s *PgStore) LockGraph(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, graphLockKey)
	return db.Classify("lock dependency graph", err)
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Dependency, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify("query dependencies", err)
	}
	defer rows.Close()

	var deps []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.TaskID, &d.BlockingTaskID, &d.CreatedAt); err != nil {
			return nil, db.Classify("scan dependency", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("dependency rows", err)
	}
	return deps, nil
}
