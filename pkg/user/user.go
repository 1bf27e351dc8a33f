package user

import (
	"context"
	"time"
)

// Roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is an identity known to the system. Authentication happens
// elsewhere; the id is what requests carry.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"` // admin, member
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the contract for user persistence.
type Store interface {
	// Create inserts u and assigns its ID. Usernames are unique.
	Create(ctx context.Context, u *User) (*User, error)

	// Get returns a user by ID.
	Get(ctx context.Context, id int64) (*User, error)

	// ByUsername returns a user by username.
	ByUsername(ctx context.Context, username string) (*User, error)

	// ByUsernames returns the users that exist among names. Unknown names
	// are skipped.
	ByUsernames(ctx context.Context, names []string) ([]User, error)

	// List returns all users ordered by ID.
	List(ctx context.Context) ([]User, error)

	// EnsureTable creates the users table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
