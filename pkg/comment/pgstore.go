package comment

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/db"
)

// PgStore is a PostgreSQL-backed comment store.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the comments table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS comments (
			id         BIGSERIAL PRIMARY KEY,
			task_id    BIGINT NOT NULL REFERENCES tasks(id),
			author_id  BIGINT NOT NULL REFERENCES users(id),
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id, created_at)`)
	return err
}

// Create inserts a comment.
func (s *PgStore) Create(ctx context.Context, c *Comment) (*Comment, error) {
	c.CreatedAt = time.Now().Truncate(time.Microsecond)
	err := s.q.QueryRow(ctx, `
		INSERT INTO comments (task_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		c.TaskID, c.AuthorID, c.Content, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return nil, db.Classify("create comment", err)
	}
	return c, nil
}

// Get returns a comment by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*Comment, error) {
	var c Comment
	err := s.q.QueryRow(ctx, `SELECT id, task_id, author_id, content, created_at FROM comments WHERE id = $1`, id).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("get comment %d", id), err)
	}
	return &c, nil
}

// ByTask returns the comments on a task, oldest first.
func (s *PgStore) ByTask(ctx context.Context, taskID int64) ([]Comment, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, task_id, author_id, content, created_at
		FROM comments WHERE task_id = $1 ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, db.Classify("comments by task", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, db.Classify("scan comment", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("comment rows", err)
	}
	return comments, nil
}
