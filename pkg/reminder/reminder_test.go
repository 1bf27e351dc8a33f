package reminder_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/pkg/notification"
	"taskhub/pkg/project"
	"taskhub/pkg/push"
	"taskhub/pkg/reminder"
	"taskhub/pkg/store"
	"taskhub/pkg/store/memstore"
	"taskhub/pkg/task"
	"taskhub/pkg/user"
)

type nopPusher struct{}

func (nopPusher) SendToUser(context.Context, int64, string, any) error   { return nil }
func (nopPusher) SendToGroup(context.Context, string, string, any) error { return nil }

type fixture struct {
	db    *memstore.DB
	repos store.Repos
	job   *reminder.Job
	now   time.Time
	proj  *project.Project
	user  *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{db: memstore.New(), now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	f.db.SetClock(func() time.Time { return f.now })
	f.repos = f.db.Repos()

	var err error
	f.user, err = f.repos.Users.Create(ctx, &user.User{Username: "alice"})
	require.NoError(t, err)
	f.proj, err = f.repos.Projects.Create(ctx, &project.Project{Name: "p", CreatorID: f.user.ID})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notification.NewNotifier(f.repos.Notifications, f.repos.Tasks, f.repos.Projects,
		nopPusher{}, push.NewMemoryThrottle(time.Second, func() time.Time { return f.now }),
		notification.WithLogger(logger))
	f.job = reminder.New(f.repos.Tasks, f.repos.Notifications, notifier, 24*time.Hour,
		reminder.WithClock(func() time.Time { return f.now }), reminder.WithLogger(logger))
	return f
}

func (f *fixture) task(t *testing.T, due time.Duration, assigned bool) *task.Task {
	t.Helper()
	d := f.now.Add(due)
	tk := &task.Task{ProjectID: f.proj.ID, Title: "t", DueDate: &d}
	if assigned {
		tk.AssigneeID = &f.user.ID
	}
	created, err := f.repos.Tasks.Create(context.Background(), tk)
	require.NoError(t, err)
	return created
}

func TestSweepRemindsOncePerRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	soon := f.task(t, 2*time.Hour, true)
	f.task(t, 72*time.Hour, true) // outside the lead
	f.task(t, time.Hour, false)   // nobody to remind

	sent, err := f.job.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	f.now = f.now.Add(15 * time.Minute)
	sent, err = f.job.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "already reminded")

	later := f.now.Add(3 * time.Hour)
	_, err = f.repos.Tasks.Update(ctx, soon.ID, task.Update{DueDate: &later})
	require.NoError(t, err)

	sent, err = f.job.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "a new due date re-arms the reminder")

	notes := f.db.Notifications()
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, notification.TypeDueDateReminder, n.Type)
		assert.Equal(t, f.user.ID, n.UserID)
	}
}

func TestSweepSkipsCompletedTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.task(t, time.Hour, true)
	_, err := f.repos.Tasks.SetStatus(ctx, tk.ID, task.StatusCompleted)
	require.NoError(t, err)

	sent, err := f.job.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSweepKeepsGoingAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.task(t, time.Hour, true)
	f.db.Fail("notifications.Create", errors.New("down"))

	sent, err := f.job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	_, err := f.job.Start(context.Background(), "every now and then")
	assert.Error(t, err)
	assert.Error(t, reminder.ValidSchedule("61 * * * *"))
	assert.NoError(t, reminder.ValidSchedule("@every 15m"))
}

func TestStartStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped, err := f.job.Start(ctx, "@every 1h")
	require.NoError(t, err)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartLogsSchedule(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	job := reminder.New(f.repos.Tasks, f.repos.Notifications, nil, 24*time.Hour,
		reminder.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	stopped, err := job.Start(ctx, "@every 1h")
	require.NoError(t, err)
	cancel()
	<-stopped

	assert.Equal(t, 1, strings.Count(buf.String(), "reminder: scheduled"))
	assert.Contains(t, buf.String(), "schedule=\"@every 1h\"")
}
