package sequencer

import (
	"fmt"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/model"
)

// Move is a proposed replacement of one task's dependency list. Applying
// it is up to the caller.
type Move struct {
	TaskID       string   `json:"task_id"`
	Dependencies []string `json:"dependencies"`
}

// PlanMoveToSequence proposes dependencies that place taskID in the
// sequence numbered target: the task comes to depend on every task of
// sequence target-1 and on nothing else in the set. Dependencies on ids
// outside the set are kept. target may be one past the last sequence.
//
// The proposal is checked against the rest of the graph and rejected with
// a *errors.CycleError if it would close a cycle. tasks is not modified.
func PlanMoveToSequence(tasks []model.Task, taskID string, target int, opts ...Option) (Move, error) {
	g := buildGraph(tasks, opts)
	pos, ok := g.resolve(taskID)
	if !ok {
		return Move{}, errors.NewNotFoundError("task", taskID)
	}
	current, err := ComputeSequences(tasks, opts...)
	if err != nil {
		return Move{}, err
	}
	if target < 1 || target > len(current.Sequences)+1 {
		return Move{}, errors.NewValidationError(
			fmt.Sprintf("target sequence must be between 1 and %d", len(current.Sequences)+1)).
			WithField("target").WithValue(target)
	}

	moved := tasks[pos]
	deps := outOfSet(g, moved.Dependencies)
	if target > 1 {
		for _, t := range current.Sequences[target-2].Tasks {
			if !model.SameID(t.ID, moved.ID, g.prefix) {
				deps = append(deps, t.ID)
			}
		}
	}

	proposed := model.CloneTasks(tasks)
	proposed[pos].Dependencies = deps
	if cycle := DetectCycle(proposed, opts...); cycle != nil {
		return Move{}, errors.NewCycleError(cycle)
	}
	return Move{TaskID: moved.ID, Dependencies: deps}, nil
}

// CanMoveToUnsequenced reports whether taskID can be detached from the
// graph. A task that others depend on cannot.
func CanMoveToUnsequenced(tasks []model.Task, taskID string, opts ...Option) bool {
	g := buildGraph(tasks, opts)
	pos, ok := g.resolve(taskID)
	return ok && g.dependents[pos] == 0
}

// PlanMoveToUnsequenced proposes dropping every in-set dependency of
// taskID. It fails with a ValidationError when other tasks depend on it.
func PlanMoveToUnsequenced(tasks []model.Task, taskID string, opts ...Option) (Move, error) {
	g := buildGraph(tasks, opts)
	pos, ok := g.resolve(taskID)
	if !ok {
		return Move{}, errors.NewNotFoundError("task", taskID)
	}
	if n := g.dependents[pos]; n > 0 {
		return Move{}, errors.NewValidationError(
			fmt.Sprintf("%d task(s) depend on %s", n, tasks[pos].ID)).WithField("dependencies")
	}
	return Move{TaskID: tasks[pos].ID, Dependencies: outOfSet(g, tasks[pos].Dependencies)}, nil
}

// outOfSet keeps the dependency ids that name no task in the graph.
func outOfSet(g *graph, deps []string) []string {
	out := []string{}
	for _, d := range deps {
		if _, ok := g.resolve(d); !ok {
			out = append(out, d)
		}
	}
	return out
}
