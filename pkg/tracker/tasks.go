package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskhub/pkg/apperr"
	"taskhub/pkg/audit"
	"taskhub/pkg/dependency"
	"taskhub/pkg/store"
	"taskhub/pkg/task"
)

// NewTask is the input to CreateTask.
type NewTask struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      task.Status `json:"status"`
	Priority    int         `json:"priority"`
	AssigneeID  *int64      `json:"assignee_id"`
	DueDate     *time.Time  `json:"due_date"`
}

// CreateTask adds a task to a project the actor works in.
func (s *Service) CreateTask(ctx context.Context, a Actor, projectID int64, in NewTask) (*task.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("task title is required")
	}
	status := task.StatusToDo
	if in.Status != "" {
		var err error
		if status, err = task.ParseStatus(string(in.Status)); err != nil {
			return nil, err
		}
	}

	var t *task.Task
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := access(ctx, r, a, projectID); err != nil {
			return err
		}
		if in.AssigneeID != nil {
			if err := requireActiveMember(ctx, r, projectID, *in.AssigneeID); err != nil {
				return err
			}
		}
		var err error
		t, err = r.Tasks.Create(ctx, &task.Task{
			ProjectID:   projectID,
			Title:       title,
			Description: in.Description,
			Status:      status,
			Priority:    in.Priority,
			AssigneeID:  in.AssigneeID,
			CreatorID:   a.UserID,
			DueDate:     in.DueDate,
		})
		if err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionTaskCreated,
			fmt.Sprintf("task %d %q in project %d", t.ID, t.Title, projectID), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tracker: task created", "task_id", t.ID, "project_id", projectID, "user_id", a.UserID)
	created, err := s.notifier.NotifyTaskAssigned(ctx, t)
	s.notified("task_assigned", created, err)
	s.refresh(ctx, projectID, "task_created", t.ID)
	return t, nil
}

// loadTask reads a live task and checks the actor may work on it.
func loadTask(ctx context.Context, r store.Repos, a Actor, id int64) (*task.Task, error) {
	t, err := r.Tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := access(ctx, r, a, t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, a Actor, id int64) (*task.Task, error) {
	return loadTask(ctx, s.repos, a, id)
}

// ListTasks lists a project's live tasks.
func (s *Service) ListTasks(ctx context.Context, a Actor, projectID int64, f task.Filter) ([]task.Task, error) {
	if _, err := access(ctx, s.repos, a, projectID); err != nil {
		return nil, err
	}
	if f.Status != "" {
		if _, err := task.ParseStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	return s.repos.Tasks.ByProject(ctx, projectID, f)
}

// UpdateTask edits a task's descriptive fields.
func (s *Service) UpdateTask(ctx context.Context, a Actor, id int64, u task.Update) (*task.Task, error) {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return nil, invalid("task title cannot be empty")
		}
		u.Title = &title
	}

	var t *task.Task
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := loadTask(ctx, r, a, id); err != nil {
			return err
		}
		var err error
		if t, err = r.Tasks.Update(ctx, id, u); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionTaskUpdated,
			fmt.Sprintf("task %d %q", t.ID, t.Title), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, t.ProjectID, "task_updated", t.ID)
	return t, nil
}

// UpdateTaskStatus moves a task to status. With the completion gate on, a
// move to completed fails while any blocker is still open.
func (s *Service) UpdateTaskStatus(ctx context.Context, a Actor, id int64, status task.Status) (*task.Task, error) {
	if _, err := task.ParseStatus(string(status)); err != nil {
		return nil, err
	}

	var t *task.Task
	var changed bool
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		cur, err := loadTask(ctx, r, a, id)
		if err != nil {
			return err
		}
		if status == task.StatusCompleted && s.enforceCompletion {
			open, err := dependency.NewValidator(r.Dependencies, r.Tasks).OpenBlockers(ctx, id)
			if err != nil {
				return err
			}
			if len(open) > 0 {
				return fmt.Errorf("%w: task %d is blocked by %s", apperr.ErrInvalidOperation, id, taskIDs(open))
			}
		}
		changed = cur.Status != status
		if t, err = r.Tasks.SetStatus(ctx, id, status); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionTaskStatusChanged,
			fmt.Sprintf("task %d %s -> %s", id, cur.Status, status), a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		created, err := s.notifier.NotifyTaskStatusChanged(ctx, t, a.UserID)
		s.notified("task_status_changed", created, err)
	}
	s.refresh(ctx, t.ProjectID, "task_status_changed", t.ID)
	return t, nil
}

// AssignTask sets or clears the assignee. The assignee must be an active
// member of the task's project.
func (s *Service) AssignTask(ctx context.Context, a Actor, id int64, assigneeID *int64) (*task.Task, error) {
	var t *task.Task
	var changed bool
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		cur, err := loadTask(ctx, r, a, id)
		if err != nil {
			return err
		}
		if assigneeID != nil {
			if err := requireActiveMember(ctx, r, cur.ProjectID, *assigneeID); err != nil {
				return err
			}
		}
		changed = !sameAssignee(cur.AssigneeID, assigneeID)
		if t, err = r.Tasks.SetAssignee(ctx, id, assigneeID); err != nil {
			return err
		}
		details := fmt.Sprintf("task %d unassigned", id)
		if assigneeID != nil {
			details = fmt.Sprintf("task %d assigned to user %d", id, *assigneeID)
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionTaskAssigned, details, a.IP)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		created, err := s.notifier.NotifyTaskAssigned(ctx, t)
		s.notified("task_assigned", created, err)
	}
	s.refresh(ctx, t.ProjectID, "task_assigned", t.ID)
	return t, nil
}

// DeleteTask soft-deletes a task. Its edges stay, but a deleted blocker no
// longer blocks completion.
func (s *Service) DeleteTask(ctx context.Context, a Actor, id int64) error {
	var projectID int64
	err := s.uow.Do(ctx, func(ctx context.Context, r store.Repos) error {
		t, err := loadTask(ctx, r, a, id)
		if err != nil {
			return err
		}
		projectID = t.ProjectID
		if err := r.Tasks.SoftDelete(ctx, id); err != nil {
			return err
		}
		_, err = audit.Record(ctx, r.Audit, a.UserID, audit.ActionTaskDeleted,
			fmt.Sprintf("task %d %q", id, t.Title), a.IP)
		return err
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, projectID, "task_deleted", id)
	return nil
}

// Stats summarises the task table for the status endpoint.
type Stats struct {
	Tasks     int `json:"tasks"`
	OpenTasks int `json:"open_tasks"`
}

// Stats counts live and open tasks.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Tasks, err = s.repos.Tasks.Count(ctx); err != nil {
		return st, err
	}
	if st.OpenTasks, err = s.repos.Tasks.OpenCount(ctx); err != nil {
		return st, err
	}
	return st, nil
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func taskIDs(ts []task.Task) string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = fmt.Sprint(t.ID)
	}
	return strings.Join(ids, ", ")
}
