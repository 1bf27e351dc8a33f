package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskhub/pkg/comment"
	"taskhub/pkg/project"
	"taskhub/pkg/task"
)

// EventCreated is the push event name for a new notification.
const EventCreated = "notification.created"

// Pusher delivers transient real-time messages. Delivery is best-effort.
type Pusher interface {
	SendToUser(ctx context.Context, userID int64, event string, payload any) error
	SendToGroup(ctx context.Context, group string, event string, payload any) error
}

// Throttle decides whether a push for key may go out now.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Recorder observes fan-out outcomes, typically for metrics.
type Recorder interface {
	NotificationCreated(typ Type)
	NotificationFailed(typ Type)
	PushSent(event string)
	PushThrottled(event string)
	PushFailed(event string)
}

// TaskGetter resolves a comment's parent task.
type TaskGetter interface {
	Get(ctx context.Context, id int64) (*task.Task, error)
}

// MemberLister resolves a project's active membership.
type MemberLister interface {
	ActiveMembers(ctx context.Context, projectID int64) ([]project.Member, error)
}

// Notifier turns domain events into durable notifications plus throttled
// real-time pushes. The two effects are independent: a durable write
// failure is returned, a push failure is only logged.
type Notifier struct {
	store    Store
	tasks    TaskGetter
	members  MemberLister
	pusher   Pusher
	throttle Throttle
	rec      Recorder
	log      *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) NotifierOption {
	return func(n *Notifier) { n.rec = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.log = l }
}

// NewNotifier creates a Notifier. throttle may be nil to push every time.
func NewNotifier(store Store, tasks TaskGetter, members MemberLister, pusher Pusher, throttle Throttle, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		store:    store,
		tasks:    tasks,
		members:  members,
		pusher:   pusher,
		throttle: throttle,
		rec:      nopRecorder{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyTaskAssigned notifies the assignee. It is a no-op for an
// unassigned task.
func (n *Notifier) NotifyTaskAssigned(ctx context.Context, t *task.Task) ([]Notification, error) {
	if !t.HasAssignee(0) {
		return nil, nil
	}
	return n.fanOut(ctx, []int64{*t.AssigneeID}, func(userID int64) *Notification {
		return taskNotification(t, userID, TypeTaskAssigned,
			"Task assigned",
			fmt.Sprintf("You have been assigned to %q", t.Title))
	})
}

// NotifyTaskStatusChanged notifies the assignee unless they made the change.
func (n *Notifier) NotifyTaskStatusChanged(ctx context.Context, t *task.Task, actingUserID int64) ([]Notification, error) {
	if !t.HasAssignee(actingUserID) {
		return nil, nil
	}
	return n.fanOut(ctx, []int64{*t.AssigneeID}, func(userID int64) *Notification {
		return taskNotification(t, userID, TypeTaskStatusChanged,
			"Task status changed",
			fmt.Sprintf("%q is now %s", t.Title, t.Status))
	})
}

// NotifyTaskCommented notifies (assignee ∪ active members) \ {author},
// each at most once.
func (n *Notifier) NotifyTaskCommented(ctx context.Context, c *comment.Comment) ([]Notification, error) {
	t, err := n.tasks.Get(ctx, c.TaskID)
	if err != nil {
		return nil, fmt.Errorf("resolve task of comment %d: %w", c.ID, err)
	}
	members, err := n.members.ActiveMembers(ctx, t.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("resolve members of project %d: %w", t.ProjectID, err)
	}

	seen := map[int64]bool{c.AuthorID: true}
	var recipients []int64
	if t.AssigneeID != nil && !seen[*t.AssigneeID] {
		seen[*t.AssigneeID] = true
		recipients = append(recipients, *t.AssigneeID)
	}
	for _, m := range members {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			recipients = append(recipients, m.UserID)
		}
	}

	return n.fanOut(ctx, recipients, func(userID int64) *Notification {
		return taskNotification(t, userID, TypeTaskCommented,
			"New comment",
			fmt.Sprintf("New comment on %q", t.Title))
	})
}

// NotifyMentioned notifies each of userIDs that they were mentioned in c on
// t. The author is left out and repeated ids are notified once.
func (n *Notifier) NotifyMentioned(ctx context.Context, t *task.Task, c *comment.Comment, userIDs []int64) ([]Notification, error) {
	seen := map[int64]bool{c.AuthorID: true}
	var recipients []int64
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	return n.fanOut(ctx, recipients, func(userID int64) *Notification {
		return taskNotification(t, userID, TypeMentionedInComment,
			"You were mentioned",
			fmt.Sprintf("You were mentioned in a comment on %q", t.Title))
	})
}

// NotifyProjectCreated notifies each initial member other than the creator once.
func (n *Notifier) NotifyProjectCreated(ctx context.Context, p *project.Project, memberIDs []int64) ([]Notification, error) {
	seen := map[int64]bool{p.CreatorID: true}
	var recipients []int64
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	return n.fanOut(ctx, recipients, func(userID int64) *Notification {
		return projectNotification(p, userID, TypeProjectCreated,
			"Added to project",
			fmt.Sprintf("You were added to the new project %q", p.Name))
	})
}

// NotifyProjectUpdated notifies every active member except the actor.
func (n *Notifier) NotifyProjectUpdated(ctx context.Context, p *project.Project, actingUserID int64) ([]Notification, error) {
	members, err := n.members.ActiveMembers(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve members of project %d: %w", p.ID, err)
	}
	var recipients []int64
	for _, m := range members {
		if m.UserID != actingUserID {
			recipients = append(recipients, m.UserID)
		}
	}
	return n.fanOut(ctx, recipients, func(userID int64) *Notification {
		return projectNotification(p, userID, TypeProjectUpdated,
			"Project updated",
			fmt.Sprintf("Project %q was updated", p.Name))
	})
}

// NotifyDueDate reminds the assignee that t is due soon.
func (n *Notifier) NotifyDueDate(ctx context.Context, t *task.Task) ([]Notification, error) {
	if !t.HasAssignee(0) || t.DueDate == nil {
		return nil, nil
	}
	return n.fanOut(ctx, []int64{*t.AssigneeID}, func(userID int64) *Notification {
		return taskNotification(t, userID, TypeDueDateReminder,
			"Task due soon",
			fmt.Sprintf("%q is due %s", t.Title, t.DueDate.UTC().Format("2006-01-02 15:04 MST")))
	})
}

// fanOut records one notification per recipient and pushes each one that
// was stored. Record failures are collected and returned together.
func (n *Notifier) fanOut(ctx context.Context, recipients []int64, build func(userID int64) *Notification) ([]Notification, error) {
	var created []Notification
	var errs []error
	for _, userID := range recipients {
		rec, err := n.record(ctx, build(userID))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created = append(created, *rec)
		n.deliver(ctx, rec)
	}
	return created, errors.Join(errs...)
}

// record is the durable effect.
func (n *Notifier) record(ctx context.Context, nt *Notification) (*Notification, error) {
	stored, err := n.store.Create(ctx, nt)
	if err != nil {
		n.rec.NotificationFailed(nt.Type)
		return nil, err
	}
	n.rec.NotificationCreated(stored.Type)
	return stored, nil
}

// deliver is the transient effect. Task notifications are throttled per
// (user, task); nothing here can fail the caller.
func (n *Notifier) deliver(ctx context.Context, nt *Notification) {
	if nt.TaskID != nil && n.throttle != nil {
		key := ThrottleKey(nt.UserID, *nt.TaskID)
		ok, err := n.throttle.Allow(ctx, key)
		if err != nil {
			// an unavailable throttle must not silence pushes
			n.log.Warn("notifier: throttle check failed", "key", key, "err", err)
		} else if !ok {
			n.rec.PushThrottled(EventCreated)
			n.log.Debug("notifier: push throttled", "user_id", nt.UserID, "task_id", *nt.TaskID)
			return
		}
	}
	if err := n.pusher.SendToUser(ctx, nt.UserID, EventCreated, nt); err != nil {
		n.rec.PushFailed(EventCreated)
		n.log.Warn("notifier: push failed", "user_id", nt.UserID, "notification_id", nt.ID, "err", err)
		return
	}
	n.rec.PushSent(EventCreated)
}

// ThrottleKey is the throttle key for pushes about taskID to userID.
func ThrottleKey(userID, taskID int64) string {
	return fmt.Sprintf("push:%d:%d", userID, taskID)
}

func taskNotification(t *task.Task, userID int64, typ Type, title, msg string) *Notification {
	taskID, projectID := t.ID, t.ProjectID
	return &Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   msg,
		TaskID:    &taskID,
		ProjectID: &projectID,
	}
}

func projectNotification(p *project.Project, userID int64, typ Type, title, msg string) *Notification {
	projectID := p.ID
	return &Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   msg,
		ProjectID: &projectID,
	}
}

type nopRecorder struct{}

func (nopRecorder) NotificationCreated(Type) {}
func (nopRecorder) NotificationFailed(Type)  {}
func (nopRecorder) PushSent(string)          {}
func (nopRecorder) PushThrottled(string)     {}
func (nopRecorder) PushFailed(string)        {}
