// Package dependency maintains the "blocks" relation between tasks and
// keeps it acyclic.
//
// An edge (TaskID, BlockingTaskID) means TaskID cannot be considered
// complete until BlockingTaskID is complete.
package dependency

import (
	"context"
	"time"
)

// Dependency is one directed edge of the blocks relation.
type Dependency struct {
	TaskID         int64     `json:"task_id"`
	BlockingTaskID int64     `json:"blocking_task_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the contract for edge persistence.
type Store interface {
	// Add inserts an edge. A duplicate edge is a conflict.
	Add(ctx context.Context, d *Dependency) (*Dependency, error)

	// Remove deletes an edge, returning a not-found error when absent.
	Remove(ctx context.Context, taskID, blockingTaskID int64) error

	// Exists reports whether the edge is present.
	Exists(ctx context.Context, taskID, blockingTaskID int64) (bool, error)

	// ByTask returns the edges where taskID is the dependent, i.e. what
	// taskID is blocked by.
	ByTask(ctx context.Context, taskID int64) ([]Dependency, error)

	// Blocking returns the edges where taskID is the blocker, i.e. what
	// taskID blocks.
	Blocking(ctx context.Context, taskID int64) ([]Dependency, error)

	// Reachable returns every edge reachable by following "blocked by"
	// edges from taskID, in one round trip.
	Reachable(ctx context.Context, taskID int64) ([]Dependency, error)

	// LockGraph serialises graph mutations for the rest of the current
	// transaction. It is a no-op outside one.
	LockGraph(ctx context.Context) error

	EnsureTable(ctx context.Context) error
}
