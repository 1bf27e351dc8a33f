package comment

import (
	"context"
	"time"
)

// Comment is a message left on a task.
type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the contract for comment persistence.
type Store interface {
	Create(ctx context.Context, c *Comment) (*Comment, error)
	Get(ctx context.Context, id int64) (*Comment, error)
	// ByTask returns a task's comments oldest first.
	ByTask(ctx context.Context, taskID int64) ([]Comment, error)
	EnsureTable(ctx context.Context) error
}
