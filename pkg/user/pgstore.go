package user

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/db"
)

const userColumns = `id, username, display_name, email, role, created_at`

// PgStore is a PostgreSQL-backed user store.
type PgStore struct {
	q db.Querier
}

// NewPgStore creates a PgStore over a pool or a transaction.
func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id           BIGSERIAL PRIMARY KEY,
			username     TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			email        TEXT,
			role         TEXT NOT NULL DEFAULT 'member',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS users_username_idx ON users(username)`)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users(email) WHERE email IS NOT NULL`)
	return err
}

// Create inserts a new user.
func (s *PgStore) Create(ctx context.Context, u *User) (*User, error) {
	if u.Role == "" {
		u.Role = RoleMember
	}
	u.CreatedAt = time.Now().Truncate(time.Microsecond)
	err := s.q.QueryRow(ctx, `
		INSERT INTO users (username, display_name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		u.Username, u.DisplayName, nilIfEmpty(u.Email), u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("create user %s", u.Username), err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("get user %d", id), err)
	}
	return u, nil
}

// ByUsername returns a user by username.
func (s *PgStore) ByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, db.Classify(fmt.Sprintf("user by username %s", username), err)
	}
	return u, nil
}

// ByUsernames returns every user whose username is in names.
func (s *PgStore) ByUsernames(ctx context.Context, names []string) ([]User, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return s.scanMany(ctx, `SELECT `+userColumns+` FROM users WHERE username = ANY($1) ORDER BY id`, names)
}

// List returns all users.
func (s *PgStore) List(ctx context.Context) ([]User, error) {
	return s.scanMany(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (s *PgStore) scanOne(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	var email *string
	err := s.q.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Username, &u.DisplayName, &email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify("list users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var email *string
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &email, &u.Role, &u.CreatedAt); err != nil {
			return nil, db.Classify("scan user", err)
		}
		if email != nil {
			u.Email = *email
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("user rows", err)
	}
	return users, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
