package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/pkg/comment"
	"taskhub/pkg/notification"
	"taskhub/pkg/project"
	"taskhub/pkg/push"
	"taskhub/pkg/store"
	"taskhub/pkg/store/memstore"
	"taskhub/pkg/task"
	"taskhub/pkg/user"
)

type sent struct {
	userID int64
	event  string
}

type fakePusher struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (p *fakePusher) SendToUser(_ context.Context, userID int64, event string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sent{userID, event})
	return nil
}

func (p *fakePusher) SendToGroup(context.Context, string, string, any) error { return nil }

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type countingRecorder struct {
	created, failed, pushed, throttled, pushFailed int
}

func (r *countingRecorder) NotificationCreated(notification.Type) { r.created++ }
func (r *countingRecorder) NotificationFailed(notification.Type)  { r.failed++ }
func (r *countingRecorder) PushSent(string)                       { r.pushed++ }
func (r *countingRecorder) PushThrottled(string)                  { r.throttled++ }
func (r *countingRecorder) PushFailed(string)                     { r.pushFailed++ }

type env struct {
	db       *memstore.DB
	repos    store.Repos
	pusher   *fakePusher
	rec      *countingRecorder
	now      time.Time
	notifier *notification.Notifier
	users    map[string]int64
	proj     *project.Project
}

func newEnv(t *testing.T, members ...string) *env {
	t.Helper()
	ctx := context.Background()
	db := memstore.New()
	e := &env{
		db:     db,
		repos:  db.Repos(),
		pusher: &fakePusher{},
		rec:    &countingRecorder{},
		now:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:  map[string]int64{},
	}
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		u, err := e.repos.Users.Create(ctx, &user.User{Username: name})
		require.NoError(t, err)
		e.users[name] = u.ID
	}
	p, err := e.repos.Projects.Create(ctx, &project.Project{Name: "launch", CreatorID: e.users["dave"]})
	require.NoError(t, err)
	e.proj = p
	for _, name := range members {
		_, err := e.repos.Projects.UpsertMember(ctx, &project.Member{ProjectID: p.ID, UserID: e.users[name]})
		require.NoError(t, err)
	}

	throttle := push.NewMemoryThrottle(time.Second, func() time.Time { return e.now })
	e.notifier = notification.NewNotifier(e.repos.Notifications, e.repos.Tasks, e.repos.Projects,
		e.pusher, throttle, notification.WithRecorder(e.rec))
	return e
}

func (e *env) task(t *testing.T, assignee string) *task.Task {
	t.Helper()
	tk := &task.Task{ProjectID: e.proj.ID, Title: "ship it", CreatorID: e.users["dave"]}
	if assignee != "" {
		id := e.users[assignee]
		tk.AssigneeID = &id
	}
	created, err := e.repos.Tasks.Create(context.Background(), tk)
	require.NoError(t, err)
	return created
}

func recipients(ns []notification.Notification) []int64 {
	ids := make([]int64, len(ns))
	for i, n := range ns {
		ids[i] = n.UserID
	}
	return ids
}

func TestNotifyTaskCommentedSkipsCommenter(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	tk := e.task(t, "alice")

	got, err := e.notifier.NotifyTaskCommented(context.Background(),
		&comment.Comment{ID: 1, TaskID: tk.ID, AuthorID: e.users["bob"], Content: "looks good"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{e.users["alice"], e.users["carol"]}, recipients(got))
	for _, n := range got {
		assert.Equal(t, notification.TypeTaskCommented, n.Type)
		require.NotNil(t, n.TaskID)
		assert.Equal(t, tk.ID, *n.TaskID)
	}
	assert.Len(t, e.db.Notifications(), 2)
	assert.Equal(t, 2, e.pusher.count())
}

func TestNotifyTaskCommentedWithoutAssignee(t *testing.T) {
	e := newEnv(t, "bob", "carol")
	tk := e.task(t, "")

	got, err := e.notifier.NotifyTaskCommented(context.Background(),
		&comment.Comment{ID: 1, TaskID: tk.ID, AuthorID: e.users["bob"]})
	require.NoError(t, err)
	assert.Equal(t, []int64{e.users["carol"]}, recipients(got))
}

func TestNotifyTaskCommentedAssigneeOutsideProject(t *testing.T) {
	e := newEnv(t, "bob")
	tk := e.task(t, "alice")

	got, err := e.notifier.NotifyTaskCommented(context.Background(),
		&comment.Comment{ID: 1, TaskID: tk.ID, AuthorID: e.users["bob"]})
	require.NoError(t, err)
	assert.Equal(t, []int64{e.users["alice"]}, recipients(got))
}

func TestNotifyTaskAssigned(t *testing.T) {
	e := newEnv(t)

	got, err := e.notifier.NotifyTaskAssigned(context.Background(), e.task(t, ""))
	require.NoError(t, err)
	assert.Empty(t, got, "unassigned task")

	got, err = e.notifier.NotifyTaskAssigned(context.Background(), e.task(t, "carol"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.users["carol"], got[0].UserID)
	assert.Equal(t, notification.TypeTaskAssigned, got[0].Type)
}

func TestNotifyTaskStatusChangedSkipsActor(t *testing.T) {
	e := newEnv(t)
	tk := e.task(t, "alice")

	got, err := e.notifier.NotifyTaskStatusChanged(context.Background(), tk, e.users["alice"])
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.notifier.NotifyTaskStatusChanged(context.Background(), tk, e.users["bob"])
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.users["alice"], got[0].UserID)
}

func TestPushThrottlePerUserAndTask(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	tk := e.task(t, "alice")

	_, err := e.notifier.NotifyTaskAssigned(ctx, tk)
	require.NoError(t, err)
	_, err = e.notifier.NotifyTaskAssigned(ctx, tk)
	require.NoError(t, err)

	assert.Len(t, e.db.Notifications(), 2, "every event is stored")
	assert.Equal(t, 1, e.pusher.count(), "second push inside the window is suppressed")
	assert.Equal(t, 1, e.rec.throttled)

	other := e.task(t, "alice")
	_, err = e.notifier.NotifyTaskAssigned(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, e.pusher.count(), "a different task has its own window")

	e.now = e.now.Add(2 * time.Second)
	_, err = e.notifier.NotifyTaskAssigned(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, 3, e.pusher.count(), "window expired")
}

func TestPushFailureIsSwallowed(t *testing.T) {
	e := newEnv(t)
	e.pusher.err = errors.New("connection reset")

	got, err := e.notifier.NotifyTaskAssigned(context.Background(), e.task(t, "alice"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, e.db.Notifications(), 1)
	assert.Equal(t, 1, e.rec.pushFailed)
}

func TestRecordFailureIsReturned(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	tk := e.task(t, "alice")
	boom := errors.New("disk full")
	e.db.Fail("notifications.Create", boom)

	got, err := e.notifier.NotifyTaskCommented(context.Background(),
		&comment.Comment{ID: 1, TaskID: tk.ID, AuthorID: e.users["bob"]})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got)
	assert.Equal(t, 0, e.pusher.count(), "nothing stored, nothing pushed")
	assert.Equal(t, 2, e.rec.failed)
}

func TestNotifyMentioned(t *testing.T) {
	e := newEnv(t)
	tk := e.task(t, "alice")
	c := &comment.Comment{ID: 1, TaskID: tk.ID, AuthorID: e.users["bob"]}

	got, err := e.notifier.NotifyMentioned(context.Background(), tk, c,
		[]int64{e.users["bob"], e.users["carol"], e.users["carol"], e.users["alice"]})
	require.NoError(t, err)
	assert.Equal(t, []int64{e.users["carol"], e.users["alice"]}, recipients(got))
	assert.Equal(t, notification.TypeMentionedInComment, got[0].Type)
}

func TestNotifyProjectEvents(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "alice", "bob", "dave")

	got, err := e.notifier.NotifyProjectCreated(ctx, e.proj, []int64{e.users["dave"], e.users["alice"]})
	require.NoError(t, err)
	assert.Equal(t, []int64{e.users["alice"]}, recipients(got))
	assert.Nil(t, got[0].TaskID)

	got, err = e.notifier.NotifyProjectCreated(ctx, e.proj, []int64{e.users["bob"], e.users["bob"], e.users["dave"]})
	require.NoError(t, err)
	assert.Equal(t, []int64{e.users["bob"]}, recipients(got), "repeated ids notify once")

	got, err = e.notifier.NotifyProjectUpdated(ctx, e.proj, e.users["dave"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{e.users["alice"], e.users["bob"]}, recipients(got))
}

func TestNotifyDueDate(t *testing.T) {
	e := newEnv(t)
	tk := e.task(t, "alice")

	got, err := e.notifier.NotifyDueDate(context.Background(), tk)
	require.NoError(t, err)
	assert.Empty(t, got, "no due date")

	due := e.now.Add(time.Hour)
	tk.DueDate = &due
	got, err = e.notifier.NotifyDueDate(context.Background(), tk)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "2026-03-01 10:00 UTC")
}
