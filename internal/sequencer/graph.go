package sequencer

import (
	"github.com/Iron-Ham/backlog/internal/model"
)

// graph is the dependency graph restricted to one task set.
type graph struct {
	prefix     string
	tasks      []model.Task
	index      map[string]int // canonical id -> position of first task with it
	deps       [][]int        // in-set dependencies, declared order, deduplicated
	dependents []int          // number of in-set tasks depending on each task
}

func newGraph(tasks []model.Task, prefix string) *graph {
	g := &graph{
		prefix:     prefix,
		tasks:      tasks,
		index:      make(map[string]int, len(tasks)),
		deps:       make([][]int, len(tasks)),
		dependents: make([]int, len(tasks)),
	}
	for i, t := range tasks {
		key := model.CanonicalKey(t.ID, prefix)
		if _, dup := g.index[key]; !dup {
			g.index[key] = i
		}
	}
	for i, t := range tasks {
		seen := make(map[int]bool, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			j, ok := g.index[model.CanonicalKey(dep, prefix)]
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j]++
		}
	}
	return g
}

// resolve returns the position of the task with id, if present.
func (g *graph) resolve(id string) (int, bool) {
	i, ok := g.index[model.CanonicalKey(id, g.prefix)]
	return i, ok
}

// isolated reports whether task i has no in-set edges in either direction.
func (g *graph) isolated(i int) bool {
	return len(g.deps[i]) == 0 && g.dependents[i] == 0
}

const (
	unvisited = iota
	visiting
	done
)

// layers computes every task's layer. On a cycle it returns the ids along
// it, starting and ending with the same id.
func (g *graph) layers() ([]int, []string) {
	layer := make([]int, len(g.tasks))
	state := make([]int, len(g.tasks))
	var stack []int

	var visit func(i int) []string
	visit = func(i int) []string {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return g.cyclePath(stack, i)
		}
		state[i] = visiting
		stack = append(stack, i)

		l := 1
		for _, j := range g.deps[i] {
			if cycle := visit(j); cycle != nil {
				return cycle
			}
			l = max(l, layer[j]+1)
		}

		stack = stack[:len(stack)-1]
		state[i] = done
		layer[i] = l
		return nil
	}

	for i := range g.tasks {
		if cycle := visit(i); cycle != nil {
			return nil, cycle
		}
	}
	return layer, nil
}

// cyclePath extracts the cycle closing at i from the DFS stack.
func (g *graph) cyclePath(stack []int, i int) []string {
	start := 0
	for k, v := range stack {
		if v == i {
			start = k
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, v := range stack[start:] {
		path = append(path, g.tasks[v].ID)
	}
	return append(path, g.tasks[i].ID)
}
