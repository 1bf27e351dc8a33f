package notification

import (
	"context"
	"time"
)

// Type names the domain event a notification reports.
type Type string

const (
	TypeTaskAssigned       Type = "task_assigned"
	TypeTaskStatusChanged  Type = "task_status_changed"
	TypeTaskCommented      Type = "task_commented"
	TypeProjectCreated     Type = "project_created"
	TypeProjectUpdated     Type = "project_updated"
	TypeMentionedInComment Type = "mentioned_in_comment"
	TypeDueDateReminder    Type = "due_date_reminder"
)

// Notification is addressed to one user. Only Read ever changes after creation.
type Notification struct {
	ID        string     `json:"id"` // UUID v7
	UserID    int64      `json:"user_id"`
	Type      Type       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	TaskID    *int64     `json:"task_id,omitempty"`
	ProjectID *int64     `json:"project_id,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// Query filters a user's inbox.
type Query struct {
	UnreadOnly bool
	Limit      int
}

// Store is the contract for notification persistence.
type Store interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	// ForUser returns the newest notifications first.
	ForUser(ctx context.Context, userID int64, q Query) ([]Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	// MarkRead flips one notification owned by userID to read. A missing
	// notification or one owned by someone else is not found.
	MarkRead(ctx context.Context, userID int64, id string) (*Notification, error)
	// MarkAllRead returns how many notifications changed.
	MarkAllRead(ctx context.Context, userID int64) (int, error)
	// ExistsSince reports whether userID already has a notification of typ
	// for taskID created at or after since.
	ExistsSince(ctx context.Context, userID, taskID int64, typ Type, since time.Time) (bool, error)
	EnsureTable(ctx context.Context) error
}
