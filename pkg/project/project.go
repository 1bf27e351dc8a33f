package project

import (
	"context"
	"time"
)

// Member roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Project groups tasks and the people working on them.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   int64     `json:"creator_id"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member is a (project, user) membership edge. Removal clears Active
// rather than deleting the row.
type Member struct {
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"` // owner, member
	Active    bool      `json:"active"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Update holds optional project field changes. Nil fields are left alone.
type Update struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

// Store is the contract for project and membership persistence.
type Store interface {
	Create(ctx context.Context, p *Project) (*Project, error)
	Get(ctx context.Context, id int64) (*Project, error)
	Update(ctx context.Context, id int64, u Update) (*Project, error)
	// ForUser returns projects where userID is an active member.
	ForUser(ctx context.Context, userID int64) ([]Project, error)

	// UpsertMember inserts m or re-activates an existing row.
	UpsertMember(ctx context.Context, m *Member) (*Member, error)
	// Member returns the membership row, active or not.
	Member(ctx context.Context, projectID, userID int64) (*Member, error)
	// DeactivateMember clears the active flag.
	DeactivateMember(ctx context.Context, projectID, userID int64) error
	// ActiveMembers returns active members ordered by user ID.
	ActiveMembers(ctx context.Context, projectID int64) ([]Member, error)

	EnsureTable(ctx context.Context) error
}
