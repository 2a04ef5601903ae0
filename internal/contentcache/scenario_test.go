package contentcache

import (
	"context"
	"reflect"
	"testing"

	"github.com/Iron-Ham/backlog/internal/model"
	"github.com/Iron-Ham/backlog/internal/sequencer"
)

// TestScenario_SequencesFollowWatchedEdits drives the sequencer from live
// cache snapshots while task files are edited on disk.
func TestScenario_SequencesFollowWatchedEdits(t *testing.T) {
	store := newTestStore(t)
	c := newWatchedCache(t, store)
	snap := mustInit(t, c)
	if len(snap.Tasks) != 0 || c.Version() != 0 {
		t.Fatalf("fresh cache: %d tasks at version %d", len(snap.Tasks), c.Version())
	}

	mustSaveTask(t, store, model.Task{ID: "task-1", Title: "Schema", Status: "To Do"})
	mustSaveTask(t, store, model.Task{ID: "task-2", Title: "Migrations", Status: "To Do", Dependencies: []string{"task-1"}})
	waitFor(t, "both tasks", func() bool {
		tasks, _ := c.GetTasks(nil)
		_, one := hasTask(tasks, "task-1")
		two, ok := hasTask(tasks, "task-2")
		return one && ok && len(two.Dependencies) == 1
	})

	tasks, err := c.GetTasks(nil)
	if err != nil {
		t.Fatalf("GetTasks() error = %v", err)
	}
	res, err := sequencer.ComputeSequences(tasks)
	if err != nil {
		t.Fatalf("ComputeSequences() error = %v", err)
	}
	if got, want := res.IDs(), [][]string{{"task-1"}, {"task-2"}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("sequences = %v, want %v", got, want)
	}
	if len(res.Unsequenced) != 0 {
		t.Fatalf("unsequenced = %v, want none", res.Unsequenced)
	}

	if err := store.DeleteTask(context.Background(), "task-1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	waitFor(t, "task-1 removal", func() bool {
		tasks, _ := c.GetTasks(nil)
		_, ok := hasTask(tasks, "task-1")
		return !ok
	})

	tasks, _ = c.GetTasks(nil)
	res, err = sequencer.ComputeSequences(tasks)
	if err != nil {
		t.Fatalf("ComputeSequences() error = %v", err)
	}
	if len(res.Sequences) != 0 {
		t.Errorf("sequences = %v, want none", res.IDs())
	}
	if len(res.Unsequenced) != 1 || res.Unsequenced[0].ID != "task-2" {
		t.Errorf("unsequenced = %v, want [task-2]", res.Unsequenced)
	}
}
