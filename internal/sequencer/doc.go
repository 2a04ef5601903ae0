// Package sequencer groups tasks into execution waves from their
// dependencies.
//
// A task's layer is 1 when it depends on nothing in the set, otherwise one
// more than the deepest layer among its in-set dependencies. Tasks with no
// in-set dependencies and no in-set dependents are reported separately as
// unsequenced. Dependency ids are matched by canonical key under the task
// prefix, so "task-7", "TASK-7" and "7" name the same task while "doc-7"
// is an out-of-set dependency.
//
// Everything here is pure: inputs are never mutated and results are
// deterministic for a given input order.
package sequencer
