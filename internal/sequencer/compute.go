package sequencer

import (
	"slices"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/model"
)

// Sequence is one execution wave. Index starts at 1.
type Sequence struct {
	Index int          `json:"index"`
	Tasks []model.Task `json:"tasks"`
}

// Result partitions a task set into waves plus the tasks that take no part
// in any dependency relationship.
type Result struct {
	Sequences   []Sequence   `json:"sequences"`
	Unsequenced []model.Task `json:"unsequenced"`
}

// IDs returns the task ids of each sequence in order.
func (r Result) IDs() [][]string {
	out := make([][]string, len(r.Sequences))
	for i, s := range r.Sequences {
		ids := make([]string, len(s.Tasks))
		for j, t := range s.Tasks {
			ids[j] = t.ID
		}
		out[i] = ids
	}
	return out
}

// Option adjusts how task ids are matched.
type Option func(*options)

type options struct {
	prefix string
}

// WithTaskPrefix sets the task id prefix. Only ids carrying it, or bare
// numbers, collapse to the same task: under "task", "TASK-7" and "7" name
// task-7 while "doc-7" names nothing in the set. Defaults to
// model.DefaultTaskPrefix.
func WithTaskPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func buildGraph(tasks []model.Task, opts []Option) *graph {
	o := options{prefix: model.DefaultTaskPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return newGraph(tasks, o.prefix)
}

// ComputeSequences layers tasks by their in-set dependencies. Dependencies
// on ids outside the set are ignored. When two tasks share a canonical id
// only the first is addressable as a dependency target.
//
// A dependency cycle yields a *errors.CycleError matching
// errors.ErrDependencyCycle.
func ComputeSequences(tasks []model.Task, opts ...Option) (Result, error) {
	g := buildGraph(tasks, opts)
	layer, cycle := g.layers()
	if cycle != nil {
		return Result{}, errors.NewCycleError(cycle)
	}

	res := Result{Sequences: []Sequence{}, Unsequenced: []model.Task{}}
	var buckets [][]int
	var loose []int
	for i := range tasks {
		if g.isolated(i) {
			loose = append(loose, i)
			continue
		}
		l := layer[i]
		for len(buckets) < l {
			buckets = append(buckets, nil)
		}
		buckets[l-1] = append(buckets[l-1], i)
	}

	for n, bucket := range buckets {
		res.Sequences = append(res.Sequences, Sequence{Index: n + 1, Tasks: g.ordered(bucket)})
	}
	res.Unsequenced = g.ordered(loose)
	return res, nil
}

// ordered returns deep copies of the tasks at positions, sorted by
// hierarchical id. Ties keep input order.
func (g *graph) ordered(positions []int) []model.Task {
	slices.SortStableFunc(positions, func(a, b int) int {
		return model.CompareIDs(g.tasks[a].ID, g.tasks[b].ID)
	})
	out := make([]model.Task, len(positions))
	for k, i := range positions {
		out[k] = g.tasks[i].Clone()
	}
	return out
}

// DetectCycle returns the ids along the first dependency cycle found, with
// the starting id repeated at the end, or nil when the graph is acyclic.
func DetectCycle(tasks []model.Task, opts ...Option) []string {
	_, cycle := buildGraph(tasks, opts).layers()
	return cycle
}
