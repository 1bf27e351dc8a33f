package dependency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/pkg/apperr"
	"taskhub/pkg/dependency"
	"taskhub/pkg/project"
	"taskhub/pkg/store"
	"taskhub/pkg/store/memstore"
	"taskhub/pkg/task"
)

type fixture struct {
	repos store.Repos
	v     *dependency.Validator
	proj  *project.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memstore.New().Repos()
	p, err := repos.Projects.Create(context.Background(), &project.Project{Name: "p", CreatorID: 1})
	require.NoError(t, err)
	return &fixture{
		repos: repos,
		v:     dependency.NewValidator(repos.Dependencies, repos.Tasks),
		proj:  p,
	}
}

func (f *fixture) task(t *testing.T, title string) *task.Task {
	t.Helper()
	tk, err := f.repos.Tasks.Create(context.Background(), &task.Task{ProjectID: f.proj.ID, Title: title, CreatorID: 1})
	require.NoError(t, err)
	return tk
}

func (f *fixture) complete(t *testing.T, tk *task.Task) {
	t.Helper()
	_, err := f.repos.Tasks.SetStatus(context.Background(), tk.ID, task.StatusCompleted)
	require.NoError(t, err)
}

func TestWouldCreateCycleSelf(t *testing.T) {
	f := newFixture(t)
	a := f.task(t, "a")

	cyclic, err := f.v.WouldCreateCycle(context.Background(), a.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, cyclic)

	_, err = f.v.AddDependency(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, dependency.ErrSelfDependency)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestWouldCreateCycleDirectInverse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.task(t, "a"), f.task(t, "b")

	_, err := f.v.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	cyclic, err := f.v.WouldCreateCycle(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, cyclic)
}

func TestAddDependencyAcyclicChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tasks := []*task.Task{f.task(t, "1"), f.task(t, "2"), f.task(t, "3"), f.task(t, "4")}

	// 2 <- 1, 3 <- 2, 4 <- 3, plus the shortcut 4 <- 1.
	pairs := [][2]int{{1, 0}, {2, 1}, {3, 2}, {3, 0}}
	for _, p := range pairs {
		a, b := tasks[p[0]].ID, tasks[p[1]].ID
		cyclic, err := f.v.WouldCreateCycle(ctx, a, b)
		require.NoError(t, err)
		require.False(t, cyclic, "%d blocked by %d", a, b)
		_, err = f.v.AddDependency(ctx, a, b)
		require.NoError(t, err)
	}

	all, err := f.repos.Dependencies.Reachable(ctx, tasks[3].ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestAddDependencyRejectsTransitiveCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b, c, d := f.task(t, "a"), f.task(t, "b"), f.task(t, "c"), f.task(t, "d")

	for _, p := range [][2]int64{{b.ID, a.ID}, {c.ID, b.ID}, {d.ID, c.ID}} {
		_, err := f.v.AddDependency(ctx, p[0], p[1])
		require.NoError(t, err)
	}

	cyclic, err := f.v.WouldCreateCycle(ctx, a.ID, d.ID)
	require.NoError(t, err)
	assert.True(t, cyclic)

	_, err = f.v.AddDependency(ctx, a.ID, d.ID)
	assert.ErrorIs(t, err, dependency.ErrCycle)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	exists, err := f.repos.Dependencies.Exists(ctx, a.ID, d.ID)
	require.NoError(t, err)
	assert.False(t, exists, "rejected edge must not be stored")
}

func TestAddDependencyDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.task(t, "a"), f.task(t, "b")

	_, err := f.v.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.v.AddDependency(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, dependency.ErrDuplicate)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAddDependencyUnknownTask(t *testing.T) {
	f := newFixture(t)
	a := f.task(t, "a")

	_, err := f.v.AddDependency(context.Background(), a.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRemoveDependency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.task(t, "a"), f.task(t, "b")

	err := f.v.RemoveDependency(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "missing edge")

	_, err = f.v.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.v.RemoveDependency(ctx, a.ID, b.ID))

	err = f.v.RemoveDependency(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "already removed")
}

func TestCanCompleteTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b, c := f.task(t, "a"), f.task(t, "b"), f.task(t, "c")

	ok, err := f.v.CanCompleteTask(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok, "no dependencies")

	_, err = f.v.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.v.AddDependency(ctx, a.ID, c.ID)
	require.NoError(t, err)

	ok, err = f.v.CanCompleteTask(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	f.complete(t, b)
	open, err := f.v.OpenBlockers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, c.ID, open[0].ID)

	f.complete(t, c)
	ok, err = f.v.CanCompleteTask(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanCompleteTaskIgnoresDeletedBlocker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.task(t, "a"), f.task(t, "b")

	_, err := f.v.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.repos.Tasks.SoftDelete(ctx, b.ID))

	ok, err := f.v.CanCompleteTask(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDependencyLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t1, t2, t3 := f.task(t, "T1"), f.task(t, "T2"), f.task(t, "T3")

	_, err := f.v.AddDependency(ctx, t2.ID, t1.ID)
	require.NoError(t, err)
	_, err = f.v.AddDependency(ctx, t3.ID, t2.ID)
	require.NoError(t, err)

	_, err = f.v.AddDependency(ctx, t1.ID, t3.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)

	ok, err := f.v.CanCompleteTask(ctx, t2.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	f.complete(t, t1)

	ok, err = f.v.CanCompleteTask(ctx, t2.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
