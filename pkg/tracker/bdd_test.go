package tracker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"taskhub/pkg/apperr"
	"taskhub/pkg/notification"
	"taskhub/pkg/push"
	"taskhub/pkg/store/memstore"
	"taskhub/pkg/task"
	"taskhub/pkg/tracker"
)

type dependencyFeature struct {
	svc   *tracker.Service
	actor tracker.Actor
	tasks map[string]int64
}

func (f *dependencyFeature) reset() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memstore.New()
	repos := db.Repos()
	hub := push.NewHub(push.WithLogger(logger))
	notifier := notification.NewNotifier(repos.Notifications, repos.Tasks, repos.Projects, hub,
		push.NewMemoryThrottle(time.Second, nil), notification.WithLogger(logger))
	f.svc = tracker.New(db, repos, notifier, hub, tracker.WithLogger(logger))
	f.tasks = map[string]int64{}
}

func (f *dependencyFeature) aProjectWithTasks(a, b, c string) error {
	ctx := context.Background()
	u, err := f.svc.RegisterUser(ctx, tracker.NewUser{Username: "planner"})
	if err != nil {
		return err
	}
	f.actor = tracker.Actor{UserID: u.ID, Role: u.Role}
	p, err := f.svc.CreateProject(ctx, f.actor, tracker.NewProject{Name: "bdd"})
	if err != nil {
		return err
	}
	for _, title := range []string{a, b, c} {
		t, err := f.svc.CreateTask(ctx, f.actor, p.ID, tracker.NewTask{Title: title})
		if err != nil {
			return err
		}
		f.tasks[title] = t.ID
	}
	return nil
}

func (f *dependencyFeature) isBlockedBy(blocked, blocker string) error {
	_, err := f.svc.AddDependency(context.Background(), f.actor, f.tasks[blocked], f.tasks[blocker])
	return err
}

func (f *dependencyFeature) blockingFailsWithConflict(blocked, blocker string) error {
	_, err := f.svc.AddDependency(context.Background(), f.actor, f.tasks[blocked], f.tasks[blocker])
	if !errors.Is(err, apperr.ErrConflict) {
		return fmt.Errorf("expected conflict, got %v", err)
	}
	return nil
}

func (f *dependencyFeature) removingFailsWithNotFound(blocked, blocker string) error {
	err := f.svc.RemoveDependency(context.Background(), f.actor, f.tasks[blocked], f.tasks[blocker])
	if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("expected not found, got %v", err)
	}
	return nil
}

func (f *dependencyFeature) isCompleted(name string) error {
	_, err := f.svc.UpdateTaskStatus(context.Background(), f.actor, f.tasks[name], task.StatusCompleted)
	return err
}

func (f *dependencyFeature) readiness(name string, want bool) error {
	r, err := f.svc.CanComplete(context.Background(), f.actor, f.tasks[name])
	if err != nil {
		return err
	}
	if r.CanComplete != want {
		return fmt.Errorf("can complete %s: got %v, want %v", name, r.CanComplete, want)
	}
	return nil
}

func initializeDependencyScenario(sc *godog.ScenarioContext) {
	f := &dependencyFeature{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})

	sc.Step(`^a project with tasks "([^"]*)", "([^"]*)" and "([^"]*)"$`, f.aProjectWithTasks)
	sc.Step(`^"([^"]*)" is blocked by "([^"]*)"$`, f.isBlockedBy)
	sc.Step(`^making "([^"]*)" blocked by "([^"]*)" fails with a conflict$`, f.blockingFailsWithConflict)
	sc.Step(`^removing the dependency of "([^"]*)" on "([^"]*)" fails with not found$`, f.removingFailsWithNotFound)
	sc.Step(`^"([^"]*)" is completed$`, f.isCompleted)
	sc.Step(`^"([^"]*)" cannot be completed$`, func(name string) error { return f.readiness(name, false) })
	sc.Step(`^"([^"]*)" can be completed$`, func(name string) error { return f.readiness(name, true) })
}

func TestDependencyFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeDependencyScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
