package dependency

// Graph is an adjacency view of the blocks relation, keyed by dependent
// task and listing the tasks it is blocked by.
type Graph map[int64][]int64

// NewGraph builds a Graph from edges.
func NewGraph(edges []Dependency) Graph {
	g := make(Graph)
	for _, e := range edges {
		g[e.TaskID] = append(g[e.TaskID], e.BlockingTaskID)
	}
	return g
}

// Reaches reports whether to is reachable from from by following blocked-by
// edges. from == to counts as reachable.
func (g Graph) Reaches(from, to int64) bool {
	visited := make(map[int64]bool)
	stack := []int64{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, next := range g[n] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Path returns one blocked-by path from from to to, inclusive, or nil when
// none exists.
func (g Graph) Path(from, to int64) []int64 {
	prev := map[int64]int64{}
	visited := map[int64]bool{from: true}
	stack := []int64{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			path := []int64{to}
			for n != from {
				n = prev[n]
				path = append(path, n)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, next := range g[n] {
			if !visited[next] {
				visited[next] = true
				prev[next] = n
				stack = append(stack, next)
			}
		}
	}
	return nil
}
