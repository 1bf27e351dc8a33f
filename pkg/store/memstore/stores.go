package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskhub/pkg/apperr"
	"taskhub/pkg/audit"
	"taskhub/pkg/comment"
	"taskhub/pkg/dependency"
	"taskhub/pkg/notification"
	"taskhub/pkg/project"
	"taskhub/pkg/task"
	"taskhub/pkg/user"
)

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperr.ErrNotFound)
}

func ensureTable(context.Context) error { return nil }

// Users is the in-memory user.Store.
type Users struct{ db view }

func (s *Users) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Users) Create(_ context.Context, u *user.User) (*user.User, error) {
	defer s.db.lock()()
	if err := s.db.failure("users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range s.db.d.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return nil, fmt.Errorf("%w: username %s taken", apperr.ErrConflict, u.Username)
		}
	}
	if u.Role == "" {
		u.Role = user.RoleMember
	}
	u.ID = s.db.id()
	u.CreatedAt = s.db.now()
	s.db.d.users[u.ID] = *u
	cp := *u
	return &cp, nil
}

func (s *Users) Get(_ context.Context, id int64) (*user.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u, ok := s.db.d.users[id]
	if !ok {
		return nil, notFound("get user %d", id)
	}
	return &u, nil
}

func (s *Users) ByUsername(_ context.Context, username string) (*user.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, u := range s.db.d.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, notFound("user by username %s", username)
}

func (s *Users) ByUsernames(_ context.Context, names []string) ([]user.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []user.User
	for _, u := range s.db.d.users {
		if want[strings.ToLower(u.Username)] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Users) List(_ context.Context) ([]user.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]user.User, 0, len(s.db.d.users))
	for _, u := range s.db.d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Projects is the in-memory project.Store.
type Projects struct{ db view }

func (s *Projects) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Projects) Create(_ context.Context, p *project.Project) (*project.Project, error) {
	defer s.db.lock()()
	if err := s.db.failure("projects.Create"); err != nil {
		return nil, err
	}
	p.ID = s.db.id()
	p.CreatedAt = s.db.now()
	p.UpdatedAt = p.CreatedAt
	s.db.d.projects[p.ID] = *p
	cp := *p
	return &cp, nil
}

func (s *Projects) Get(_ context.Context, id int64) (*project.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	p, ok := s.db.d.projects[id]
	if !ok {
		return nil, notFound("get project %d", id)
	}
	return &p, nil
}

func (s *Projects) Update(_ context.Context, id int64, u project.Update) (*project.Project, error) {
	defer s.db.lock()()
	p, ok := s.db.d.projects[id]
	if !ok {
		return nil, notFound("update project %d", id)
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Archived != nil {
		p.Archived = *u.Archived
	}
	p.UpdatedAt = s.db.now()
	s.db.d.projects[id] = p
	return &p, nil
}

func (s *Projects) ForUser(_ context.Context, userID int64) ([]project.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []project.Project
	for k, m := range s.db.d.members {
		if k.userID == userID && m.Active {
			out = append(out, s.db.d.projects[k.projectID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Projects) UpsertMember(_ context.Context, m *project.Member) (*project.Member, error) {
	defer s.db.lock()()
	if err := s.db.failure("projects.UpsertMember"); err != nil {
		return nil, err
	}
	if _, ok := s.db.d.projects[m.ProjectID]; !ok {
		return nil, fmt.Errorf("%w: project %d does not exist", apperr.ErrValidation, m.ProjectID)
	}
	if _, ok := s.db.d.users[m.UserID]; !ok {
		return nil, fmt.Errorf("%w: user %d does not exist", apperr.ErrValidation, m.UserID)
	}
	if m.Role == "" {
		m.Role = project.RoleMember
	}
	m.Active = true
	m.JoinedAt = s.db.now()
	s.db.d.members[memberKey{m.ProjectID, m.UserID}] = *m
	cp := *m
	return &cp, nil
}

func (s *Projects) Member(_ context.Context, projectID, userID int64) (*project.Member, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	m, ok := s.db.d.members[memberKey{projectID, userID}]
	if !ok {
		return nil, notFound("member %d of project %d", userID, projectID)
	}
	return &m, nil
}

func (s *Projects) DeactivateMember(_ context.Context, projectID, userID int64) error {
	defer s.db.lock()()
	k := memberKey{projectID, userID}
	m, ok := s.db.d.members[k]
	if !ok || !m.Active {
		return notFound("deactivate member %d of project %d", userID, projectID)
	}
	m.Active = false
	s.db.d.members[k] = m
	return nil
}

func (s *Projects) ActiveMembers(_ context.Context, projectID int64) ([]project.Member, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("projects.ActiveMembers"); err != nil {
		return nil, err
	}
	var out []project.Member
	for k, m := range s.db.d.members {
		if k.projectID == projectID && m.Active {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Tasks is the in-memory task.Store.
type Tasks struct{ db view }

func (s *Tasks) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Tasks) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	defer s.db.lock()()
	if err := s.db.failure("tasks.Create"); err != nil {
		return nil, err
	}
	if _, ok := s.db.d.projects[t.ProjectID]; !ok {
		return nil, fmt.Errorf("%w: project %d does not exist", apperr.ErrValidation, t.ProjectID)
	}
	now := s.db.now()
	t.ID = s.db.id()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = task.StatusToDo
	}
	if t.Status == task.StatusCompleted {
		t.CompletedAt = &now
	}
	s.db.d.tasks[t.ID] = *t
	cp := *t
	return &cp, nil
}

// live must be called with db.mu held.
func (s *Tasks) live(id int64) (task.Task, bool) {
	t, ok := s.db.d.tasks[id]
	if !ok || t.Deleted {
		return task.Task{}, false
	}
	return t, true
}

func (s *Tasks) Get(_ context.Context, id int64) (*task.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	t, ok := s.live(id)
	if !ok {
		return nil, notFound("get task %d", id)
	}
	return &t, nil
}

func (s *Tasks) GetMany(_ context.Context, ids []int64) (map[int64]*task.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make(map[int64]*task.Task, len(ids))
	for _, id := range ids {
		if t, ok := s.live(id); ok {
			out[id] = &t
		}
	}
	return out, nil
}

func (s *Tasks) mutate(id int64, fn func(t *task.Task)) (*task.Task, error) {
	defer s.db.lock()()
	if err := s.db.failure("tasks.Update"); err != nil {
		return nil, err
	}
	t, ok := s.live(id)
	if !ok {
		return nil, notFound("update task %d", id)
	}
	fn(&t)
	t.UpdatedAt = s.db.now()
	s.db.d.tasks[id] = t
	return &t, nil
}

func (s *Tasks) Update(_ context.Context, id int64, u task.Update) (*task.Task, error) {
	return s.mutate(id, func(t *task.Task) {
		if u.Title != nil {
			t.Title = *u.Title
		}
		if u.Description != nil {
			t.Description = *u.Description
		}
		if u.Priority != nil {
			t.Priority = *u.Priority
		}
		switch {
		case u.ClearDue:
			t.DueDate = nil
		case u.DueDate != nil:
			due := *u.DueDate
			t.DueDate = &due
		}
	})
}

func (s *Tasks) SetStatus(_ context.Context, id int64, status task.Status) (*task.Task, error) {
	return s.mutate(id, func(t *task.Task) {
		t.Status = status
		switch {
		case status != task.StatusCompleted:
			t.CompletedAt = nil
		case t.CompletedAt == nil:
			now := s.db.now()
			t.CompletedAt = &now
		}
	})
}

func (s *Tasks) SetAssignee(_ context.Context, id int64, assigneeID *int64) (*task.Task, error) {
	return s.mutate(id, func(t *task.Task) {
		if assigneeID == nil {
			t.AssigneeID = nil
			return
		}
		a := *assigneeID
		t.AssigneeID = &a
	})
}

func (s *Tasks) SoftDelete(_ context.Context, id int64) error {
	_, err := s.mutate(id, func(t *task.Task) { t.Deleted = true })
	return err
}

func (s *Tasks) ByProject(_ context.Context, projectID int64, f task.Filter) ([]task.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []task.Task
	for _, t := range s.db.d.tasks {
		if t.Deleted || t.ProjectID != projectID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AssigneeID != 0 && (t.AssigneeID == nil || *t.AssigneeID != f.AssigneeID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Tasks) DueBefore(_ context.Context, before time.Time) ([]task.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []task.Task
	for _, t := range s.db.d.tasks {
		if t.Deleted || t.Status == task.StatusCompleted || t.AssigneeID == nil || t.DueDate == nil {
			continue
		}
		if !t.DueDate.After(before) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (s *Tasks) Count(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, t := range s.db.d.tasks {
		if !t.Deleted {
			n++
		}
	}
	return n, nil
}

func (s *Tasks) OpenCount(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, t := range s.db.d.tasks {
		if !t.Deleted && t.Status != task.StatusCompleted {
			n++
		}
	}
	return n, nil
}

// Comments is the in-memory comment.Store.
type Comments struct{ db view }

func (s *Comments) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Comments) Create(_ context.Context, c *comment.Comment) (*comment.Comment, error) {
	defer s.db.lock()()
	if err := s.db.failure("comments.Create"); err != nil {
		return nil, err
	}
	if _, ok := s.db.d.tasks[c.TaskID]; !ok {
		return nil, fmt.Errorf("%w: task %d does not exist", apperr.ErrValidation, c.TaskID)
	}
	c.ID = s.db.id()
	c.CreatedAt = s.db.now()
	s.db.d.comments[c.ID] = *c
	cp := *c
	return &cp, nil
}

func (s *Comments) Get(_ context.Context, id int64) (*comment.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.d.comments[id]
	if !ok {
		return nil, notFound("get comment %d", id)
	}
	return &c, nil
}

func (s *Comments) ByTask(_ context.Context, taskID int64) ([]comment.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []comment.Comment
	for _, c := range s.db.d.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Dependencies is the in-memory dependency.Store.
type Dependencies struct{ db view }

func (s *Dependencies) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Dependencies) Add(_ context.Context, d *dependency.Dependency) (*dependency.Dependency, error) {
	defer s.db.lock()()
	if err := s.db.failure("dependencies.Add"); err != nil {
		return nil, err
	}
	k := depKey{d.TaskID, d.BlockingTaskID}
	if _, ok := s.db.d.deps[k]; ok {
		return nil, fmt.Errorf("%w: dependency %d -> %d exists", apperr.ErrConflict, d.TaskID, d.BlockingTaskID)
	}
	d.CreatedAt = s.db.now()
	s.db.d.deps[k] = *d
	cp := *d
	return &cp, nil
}

func (s *Dependencies) Remove(_ context.Context, taskID, blockingTaskID int64) error {
	defer s.db.lock()()
	k := depKey{taskID, blockingTaskID}
	if _, ok := s.db.d.deps[k]; !ok {
		return notFound("remove dependency %d -> %d", taskID, blockingTaskID)
	}
	delete(s.db.d.deps, k)
	return nil
}

func (s *Dependencies) Exists(_ context.Context, taskID, blockingTaskID int64) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	_, ok := s.db.d.deps[depKey{taskID, blockingTaskID}]
	return ok, nil
}

func (s *Dependencies) collect(match func(depKey) bool) []dependency.Dependency {
	var out []dependency.Dependency
	for k, d := range s.db.d.deps {
		if match(k) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].BlockingTaskID < out[j].BlockingTaskID
	})
	return out
}

func (s *Dependencies) ByTask(_ context.Context, taskID int64) ([]dependency.Dependency, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.collect(func(k depKey) bool { return k.taskID == taskID }), nil
}

func (s *Dependencies) Blocking(_ context.Context, taskID int64) ([]dependency.Dependency, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.collect(func(k depKey) bool { return k.blockingID == taskID }), nil
}

func (s *Dependencies) Reachable(_ context.Context, taskID int64) ([]dependency.Dependency, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	all := s.collect(func(depKey) bool { return true })
	g := dependency.NewGraph(all)

	reached := map[int64]bool{taskID: true}
	queue := []int64{taskID}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g[n] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	var out []dependency.Dependency
	for _, d := range all {
		if reached[d.TaskID] {
			out = append(out, d)
		}
	}
	return out, nil
}

// LockGraph is a no-op: units of work are already serialised.
func (s *Dependencies) LockGraph(context.Context) error { return nil }

// Notifications is the in-memory notification.Store.
type Notifications struct{ db view }

func (s *Notifications) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Notifications) Create(_ context.Context, n *notification.Notification) (*notification.Notification, error) {
	defer s.db.lock()()
	if err := s.db.failure("notifications.Create"); err != nil {
		return nil, err
	}
	n.ID = uuid.Must(uuid.NewV7()).String()
	n.CreatedAt = s.db.now()
	s.db.d.notes = append(s.db.d.notes, *n)
	cp := *n
	return &cp, nil
}

func (s *Notifications) ForUser(_ context.Context, userID int64, q notification.Query) ([]notification.Notification, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []notification.Notification
	for i := len(s.db.d.notes) - 1; i >= 0; i-- {
		n := s.db.d.notes[i]
		if n.UserID != userID || (q.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Notifications) UnreadCount(_ context.Context, userID int64) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, nt := range s.db.d.notes {
		if nt.UserID == userID && !nt.Read {
			n++
		}
	}
	return n, nil
}

func (s *Notifications) MarkRead(_ context.Context, userID int64, id string) (*notification.Notification, error) {
	defer s.db.lock()()
	i := slices.IndexFunc(s.db.d.notes, func(n notification.Notification) bool {
		return n.ID == id && n.UserID == userID
	})
	if i < 0 {
		return nil, notFound("mark notification %s read", id)
	}
	n := &s.db.d.notes[i]
	if !n.Read {
		now := s.db.now()
		n.Read = true
		n.ReadAt = &now
	}
	cp := *n
	return &cp, nil
}

func (s *Notifications) MarkAllRead(_ context.Context, userID int64) (int, error) {
	defer s.db.lock()()
	now := s.db.now()
	changed := 0
	for i := range s.db.d.notes {
		n := &s.db.d.notes[i]
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			changed++
		}
	}
	return changed, nil
}

func (s *Notifications) ExistsSince(_ context.Context, userID, taskID int64, typ notification.Type, since time.Time) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, n := range s.db.d.notes {
		if n.UserID == userID && n.Type == typ && n.TaskID != nil && *n.TaskID == taskID && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Audit is the in-memory audit.Store.
type Audit struct{ db view }

func (s *Audit) EnsureTable(ctx context.Context) error { return ensureTable(ctx) }

func (s *Audit) Append(_ context.Context, e *audit.Entry) (*audit.Entry, error) {
	defer s.db.lock()()
	if err := s.db.failure("audit.Append"); err != nil {
		return nil, err
	}
	e.ID = uuid.Must(uuid.NewV7()).String()
	e.Timestamp = s.db.now()
	prev := ""
	if n := len(s.db.d.audit); n > 0 {
		prev = s.db.d.audit[n-1].Hash
	}
	audit.Seal(e, prev)
	s.db.d.audit = append(s.db.d.audit, *e)
	cp := *e
	return &cp, nil
}

func (s *Audit) newest(limit int, match func(audit.Entry) bool) []audit.Entry {
	var out []audit.Entry
	for i := len(s.db.d.audit) - 1; i >= 0; i-- {
		if !match(s.db.d.audit[i]) {
			continue
		}
		out = append(out, s.db.d.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *Audit) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.newest(limit, func(audit.Entry) bool { return true }), nil
}

func (s *Audit) ByUser(_ context.Context, userID int64, limit int) ([]audit.Entry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.newest(limit, func(e audit.Entry) bool { return e.UserID == userID }), nil
}

func (s *Audit) Chain(_ context.Context) ([]audit.Entry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return slices.Clone(s.db.d.audit), nil
}
