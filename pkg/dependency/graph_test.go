package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func edges(pairs ...[2]int64) []Dependency {
	out := make([]Dependency, len(pairs))
	for i, p := range pairs {
		out[i] = Dependency{TaskID: p[0], BlockingTaskID: p[1]}
	}
	return out
}

func TestGraphReaches(t *testing.T) {
	g := NewGraph(edges([2]int64{3, 2}, [2]int64{2, 1}, [2]int64{5, 4}))

	assert.True(t, g.Reaches(3, 1))
	assert.True(t, g.Reaches(2, 2), "a node reaches itself")
	assert.False(t, g.Reaches(1, 3), "edges are directed")
	assert.False(t, g.Reaches(3, 4), "disconnected components")
}

func TestGraphReachesTerminatesOnExistingCycle(t *testing.T) {
	// A degenerate edge set must not send the traversal into a loop.
	g := NewGraph(edges([2]int64{1, 2}, [2]int64{2, 3}, [2]int64{3, 1}))
	assert.False(t, g.Reaches(1, 99))
	assert.True(t, g.Reaches(1, 3))
}

func TestGraphReachesDiamond(t *testing.T) {
	g := NewGraph(edges([2]int64{1, 2}, [2]int64{1, 3}, [2]int64{2, 4}, [2]int64{3, 4}))
	assert.True(t, g.Reaches(1, 4))
	assert.False(t, g.Reaches(4, 1))
}

func TestGraphPath(t *testing.T) {
	g := NewGraph(edges([2]int64{3, 2}, [2]int64{2, 1}))

	assert.Equal(t, []int64{3, 2, 1}, g.Path(3, 1))
	assert.Equal(t, []int64{2}, g.Path(2, 2))
	assert.Nil(t, g.Path(1, 3))
}
