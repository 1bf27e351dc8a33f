package dependency

import (
	"context"
	"fmt"

	"taskhub/pkg/apperr"
	"taskhub/pkg/task"
)

var (
	// ErrSelfDependency is returned when a task would block itself.
	ErrSelfDependency = fmt.Errorf("task cannot depend on itself: %w", apperr.ErrConflict)

	// ErrDuplicate is returned when the edge already exists.
	ErrDuplicate = fmt.Errorf("dependency already exists: %w", apperr.ErrConflict)

	// ErrCycle is returned when the edge would close a cycle.
	ErrCycle = fmt.Errorf("dependency would create a cycle: %w", apperr.ErrConflict)
)

// TaskReader is the slice of task.Store the validator needs.
type TaskReader interface {
	Get(ctx context.Context, id int64) (*task.Task, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*task.Task, error)
}

// Validator guards the acyclicity of the blocks relation and answers
// completion-readiness queries. It holds no state of its own; every call
// reads the current edges.
type Validator struct {
	deps  Store
	tasks TaskReader
}

// NewValidator creates a Validator.
func NewValidator(deps Store, tasks TaskReader) *Validator {
	return &Validator{deps: deps, tasks: tasks}
}

// WouldCreateCycle reports whether adding taskID -> candidate (taskID
// blocked by candidate) would make candidate transitively depend on taskID.
// A self edge is always a cycle.
func (v *Validator) WouldCreateCycle(ctx context.Context, taskID, candidate int64) (bool, error) {
	if taskID == candidate {
		return true, nil
	}

	// Direct inverse edge: candidate is already blocked by taskID.
	direct, err := v.deps.Exists(ctx, candidate, taskID)
	if err != nil {
		return false, fmt.Errorf("check inverse edge: %w", err)
	}
	if direct {
		return true, nil
	}

	edges, err := v.deps.Reachable(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("load dependencies of %d: %w", candidate, err)
	}
	return NewGraph(edges).Reaches(candidate, taskID), nil
}

// AddDependency records that taskID is blocked by blockingTaskID. Both tasks
// must exist. Call it inside a unit of work so LockGraph can serialise the
// check against concurrent inserts.
func (v *Validator) AddDependency(ctx context.Context, taskID, blockingTaskID int64) (*Dependency, error) {
	if taskID == blockingTaskID {
		return nil, ErrSelfDependency
	}
	for _, id := range []int64{taskID, blockingTaskID} {
		if _, err := v.tasks.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	if err := v.deps.LockGraph(ctx); err != nil {
		return nil, err
	}

	exists, err := v.deps.Exists(ctx, taskID, blockingTaskID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%d blocked by %d: %w", taskID, blockingTaskID, ErrDuplicate)
	}

	cyclic, err := v.WouldCreateCycle(ctx, taskID, blockingTaskID)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, fmt.Errorf("%d blocked by %d: %w", taskID, blockingTaskID, ErrCycle)
	}

	return v.deps.Add(ctx, &Dependency{TaskID: taskID, BlockingTaskID: blockingTaskID})
}

// RemoveDependency deletes the edge. A missing edge is a not-found error.
func (v *Validator) RemoveDependency(ctx context.Context, taskID, blockingTaskID int64) error {
	return v.deps.Remove(ctx, taskID, blockingTaskID)
}

// CanCompleteTask reports whether every task that taskID is blocked by is
// completed. A task with no dependencies is trivially completable.
func (v *Validator) CanCompleteTask(ctx context.Context, taskID int64) (bool, error) {
	open, err := v.OpenBlockers(ctx, taskID)
	if err != nil {
		return false, err
	}
	return len(open) == 0, nil
}

// OpenBlockers returns the tasks blocking taskID that are not completed.
// Soft-deleted blockers no longer block.
func (v *Validator) OpenBlockers(ctx context.Context, taskID int64) ([]task.Task, error) {
	if _, err := v.tasks.Get(ctx, taskID); err != nil {
		return nil, err
	}
	edges, err := v.deps.ByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.BlockingTaskID)
	}
	blockers, err := v.tasks.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var open []task.Task
	for _, id := range ids {
		t, ok := blockers[id]
		if !ok {
			continue
		}
		if t.Status != task.StatusCompleted {
			open = append(open, *t)
		}
	}
	return open, nil
}
