package tracker

import (
	"context"
	"fmt"

	"taskhub/pkg/audit"
	"taskhub/pkg/dependency"
	"taskhub/pkg/store"
	"taskhub/pkg/task"
)

// AddDependency records that taskID is blocked by blockingTaskID. The check
// and insert share one unit of work holding the graph lock.
func (s *Service) AddDependency(ctx context.Context, a Actor, taskID, blockingTaskID int64) (*dependency.Dependency, error) {
	var d *dependency.Dependency
	var projectID int64
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		t, err := loadTask(ctx, r, a, taskID)
		if err != nil {
			return err
		}
		projectID = t.ProjectID
		if taskID != blockingTaskID {
			if _, err := loadTask(ctx, r, a, blockingTaskID); err != nil {
				return err
			}
		}
		if d, err = dependency.NewValidator(r.Dependencies, r.Tasks).AddDependency(ctx, taskID, blockingTaskID); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionDependencyAdded,
			fmt.Sprintf("task %d blocked by %d", taskID, blockingTaskID), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, projectID, "dependency_added", taskID)
	return d, nil
}

// RemoveDependency deletes an edge. A missing edge is not found.
func (s *Service) RemoveDependency(ctx context.Context, a Actor, taskID, blockingTaskID int64) error {
	var projectID int64
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		t, err := loadTask(ctx, r, a, taskID)
		if err != nil {
			return err
		}
		projectID = t.ProjectID
		if err := dependency.NewValidator(r.Dependencies, r.Tasks).RemoveDependency(ctx, taskID, blockingTaskID); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionDependencyRemoved,
			fmt.Sprintf("task %d no longer blocked by %d", taskID, blockingTaskID), a.IP)
		return err
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, projectID, "dependency_removed", taskID)
	return nil
}

// Dependencies lists both directions of a task's edges.
type Dependencies struct {
	BlockedBy []dependency.Dependency `json:"blocked_by"`
	Blocks    []dependency.Dependency `json:"blocks"`
}

// Dependencies returns what taskID is blocked by and what it blocks.
func (s *Service) Dependencies(ctx context.Context, a Actor, taskID int64) (*Dependencies, error) {
	if _, err := loadTask(ctx, s.repos, a, taskID); err != nil {
		return nil, err
	}
	by, err := s.repos.Dependencies.ByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.repos.Dependencies.Blocking(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &Dependencies{BlockedBy: by, Blocks: blocks}, nil
}

// Readiness answers whether a task may be completed now.
type Readiness struct {
	CanComplete  bool        `json:"can_complete"`
	OpenBlockers []task.Task `json:"open_blockers"`
}

// CanComplete reports whether every blocker of taskID is completed.
func (s *Service) CanComplete(ctx context.Context, a Actor, taskID int64) (*Readiness, error) {
	if _, err := loadTask(ctx, s.repos, a, taskID); err != nil {
		return nil, err
	}
	open, err := s.validate.OpenBlockers(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &Readiness{CanComplete: len(open) == 0, OpenBlockers: open}, nil
}
