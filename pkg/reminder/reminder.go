// Package reminder periodically reminds assignees about tasks that are due
// soon.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"taskhub/pkg/notification"
	"taskhub/pkg/task"
)

// TaskLister finds open assigned tasks due by a deadline.
type TaskLister interface {
	DueBefore(ctx context.Context, t time.Time) ([]task.Task, error)
}

// History reports whether a reminder was already sent.
type History interface {
	ExistsSince(ctx context.Context, userID, taskID int64, typ notification.Type, since time.Time) (bool, error)
}

// Notifier sends one due-date reminder.
type Notifier interface {
	NotifyDueDate(ctx context.Context, t *task.Task) ([]notification.Notification, error)
}

// Job sweeps for tasks due within Lead and reminds each assignee once per
// task revision.
type Job struct {
	tasks    TaskLister
	history  History
	notifier Notifier
	lead     time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Job.
type Option func(*Job)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Job) { j.log = l }
}

// New creates a Job.
func New(tasks TaskLister, history History, notifier Notifier, lead time.Duration, opts ...Option) *Job {
	j := &Job{
		tasks:    tasks,
		history:  history,
		notifier: notifier,
		lead:     lead,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Sweep sends the reminders that are due and returns how many it sent.
// A failure for one task is logged and does not stop the sweep.
func (j *Job) Sweep(ctx context.Context) (int, error) {
	due, err := j.tasks.DueBefore(ctx, j.now().Add(j.lead))
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}

	sent := 0
	for i := range due {
		t := &due[i]
		if !t.HasAssignee(0) {
			continue
		}
		// UpdatedAt moves on reassignment or a new due date, which re-arms the reminder.
		done, err := j.history.ExistsSince(ctx, *t.AssigneeID, t.ID, notification.TypeDueDateReminder, t.UpdatedAt)
		if err != nil {
			j.log.Warn("reminder: history lookup failed", "task_id", t.ID, "err", err)
			continue
		}
		if done {
			continue
		}
		created, err := j.notifier.NotifyDueDate(ctx, t)
		if err != nil {
			j.log.Warn("reminder: notify failed", "task_id", t.ID, "err", err)
			continue
		}
		sent += len(created)
	}
	if sent > 0 {
		j.log.Info("reminder: sweep complete", "due", len(due), "sent", sent)
	}
	return sent, nil
}

// Start runs Sweep on schedule (standard cron syntax or descriptors such as
// "@every 15m") until ctx is cancelled. The returned channel closes once the
// scheduler has stopped and any running sweep has returned.
func (j *Job) Start(ctx context.Context, schedule string) (<-chan struct{}, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.log.Error("reminder: sweep failed", "err", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", schedule, err)
	}
	c.Start()
	j.log.Info("reminder: scheduled", "schedule", schedule, "lead", j.lead)

	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		close(stopped)
	}()
	return stopped, nil
}

// ValidSchedule reports whether schedule parses as a cron expression.
func ValidSchedule(schedule string) error {
	_, err := cron.ParseStandard(schedule)
	return err
}
