package task

import (
	"context"
	"fmt"
	"time"

	"taskhub/pkg/apperr"
)

// Status is the lifecycle state of a task. Any status may move to any
// other; dependency gating happens in the service layer.
type Status string

const (
	StatusToDo        Status = "todo"
	StatusInProgress  Status = "in_progress"
	StatusUnderReview Status = "under_review"
	StatusCompleted   Status = "completed"
	StatusBlocked     Status = "blocked"
)

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusToDo, StatusInProgress, StatusUnderReview, StatusCompleted, StatusBlocked:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown task status %q", apperr.ErrValidation, s)
}

// Task represents a unit of work within a project.
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    int        `json:"priority"`              // 0 = normal, higher = more urgent
	AssigneeID  *int64     `json:"assignee_id,omitempty"` // nil when unassigned
	CreatorID   int64      `json:"creator_id"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Deleted     bool       `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasAssignee reports whether the task is assigned to someone other than exclude.
// Pass 0 to ignore exclude.
func (t *Task) HasAssignee(exclude int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID != exclude
}

// Update holds optional field changes. Nil fields are left alone.
type Update struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *int       `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ClearDue    bool       `json:"clear_due_date"`
}

// Filter narrows a project task listing.
type Filter struct {
	Status     Status
	AssigneeID int64
	Limit      int
}

// Store is the contract for task persistence. Deleted tasks are invisible
// to every read.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	// GetMany returns the live tasks among ids, keyed by ID.
	GetMany(ctx context.Context, ids []int64) (map[int64]*Task, error)
	Update(ctx context.Context, id int64, u Update) (*Task, error)
	// SetStatus sets the status and stamps or clears completed_at.
	SetStatus(ctx context.Context, id int64, status Status) (*Task, error)
	// SetAssignee assigns the task; nil unassigns.
	SetAssignee(ctx context.Context, id int64, assigneeID *int64) (*Task, error)
	SoftDelete(ctx context.Context, id int64) error
	ByProject(ctx context.Context, projectID int64, f Filter) ([]Task, error)
	// DueBefore returns open assigned tasks due at or before t.
	DueBefore(ctx context.Context, t time.Time) ([]Task, error)
	Count(ctx context.Context) (int, error)
	OpenCount(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
