// Package store bundles the per-entity stores and groups them into
// transactional units of work.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskhub/internal/db"
	"taskhub/pkg/audit"
	"taskhub/pkg/comment"
	"taskhub/pkg/dependency"
	"taskhub/pkg/notification"
	"taskhub/pkg/project"
	"taskhub/pkg/task"
	"taskhub/pkg/user"
)

// Repos is one consistent view of every store. Inside a unit of work all
// of them share the same transaction.
type Repos struct {
	Users         user.Store
	Projects      project.Store
	Tasks         task.Store
	Comments      comment.Store
	Dependencies  dependency.Store
	Notifications notification.Store
	Audit         audit.Store
}

// UnitOfWork runs fn so that every write made through the given Repos
// commits or rolls back together.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// Tables lists the stores in dependency order for EnsureTable.
func (r Repos) Tables() []interface{ EnsureTable(context.Context) error } {
	return []interface{ EnsureTable(context.Context) error }{
		r.Users, r.Projects, r.Tasks, r.Comments, r.Dependencies, r.Notifications, r.Audit,
	}
}

// Migrate creates every table that doesn't exist yet.
func Migrate(ctx context.Context, r Repos) error {
	for _, t := range r.Tables() {
		if err := t.EnsureTable(ctx); err != nil {
			return err
		}
	}
	return nil
}

// NewPgRepos builds Repos over q, which may be a pool or a transaction.
func NewPgRepos(q db.Querier) Repos {
	return Repos{
		Users:         user.NewPgStore(q),
		Projects:      project.NewPgStore(q),
		Tasks:         task.NewPgStore(q),
		Comments:      comment.NewPgStore(q),
		Dependencies:  dependency.NewPgStore(q),
		Notifications: notification.NewPgStore(q),
		Audit:         audit.NewPgStore(q),
	}
}

// PgUnitOfWork runs each unit inside one Postgres transaction.
type PgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewPgUnitOfWork creates a PgUnitOfWork.
func NewPgUnitOfWork(pool *pgxpool.Pool) *PgUnitOfWork {
	return &PgUnitOfWork{pool: pool}
}

// Do begins a transaction, runs fn against tx-bound repos, and commits
// unless fn fails.
func (u *PgUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return db.WithTx(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewPgRepos(tx))
	})
}
