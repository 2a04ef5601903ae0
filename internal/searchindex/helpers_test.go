package searchindex

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/event"
	"github.com/Iron-Ham/backlog/internal/model"
)

// fakeCache is an in-memory CacheSource that publishes on demand.
type fakeCache struct {
	mu        sync.Mutex
	snap      model.Snapshot
	version   uint64
	listeners map[int]func(event.Event)
	nextID    int
	disposed  bool

	initErr   error
	initCalls atomic.Int32
	// gate, when set, holds EnsureInitialized until closed.
	gate chan struct{}
}

func newFakeCache(snap model.Snapshot) *fakeCache {
	return &fakeCache{snap: snap, listeners: make(map[int]func(event.Event))}
}

func (f *fakeCache) EnsureInitialized(ctx context.Context) (model.Snapshot, error) {
	f.initCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return model.Snapshot{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return model.Snapshot{}, f.initErr
	}
	return f.snap.Clone(), nil
}

func (f *fakeCache) Subscribe(listener func(event.Event)) func() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return func() {}
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	ready := event.NewReadyEvent(f.version, f.snap.Clone())
	f.mu.Unlock()

	listener(ready)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeCache) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// publish bumps the version and delivers a tasks event.
func (f *fakeCache) publish(snap model.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.version++
	e := event.NewTasksChangedEvent(f.version, snap.Clone())
	f.mu.Unlock()
	f.deliver(e)
}

func (f *fakeCache) deliver(e event.Event) {
	f.mu.Lock()
	var ls []func(event.Event)
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(e)
	}
}

// milestoneFunc adapts a function to MilestoneLoader.
type milestoneFunc func(context.Context) ([]model.Milestone, error)

func (fn milestoneFunc) ListMilestones(ctx context.Context) ([]model.Milestone, error) {
	return fn(ctx)
}

func staticMilestones(ms ...model.Milestone) MilestoneLoader {
	return milestoneFunc(func(context.Context) ([]model.Milestone, error) { return ms, nil })
}

func fixture() model.Snapshot {
	return model.Snapshot{
		Tasks: []model.Task{
			{ID: "task-1", Title: "Set up CI", Status: "Done", Priority: model.PriorityHigh,
				Body: "Configure the build pipeline."},
			{ID: "task-2", Title: "Write parser", Status: "In Progress", Priority: model.PriorityMedium,
				Dependencies: []string{"task-1"}, Body: "Parse the **frontmatter** block."},
			{ID: "task-12", Title: "Fuzzy search", Status: "done",
				Body: "Rank results with fzf."},
		},
		Documents: []model.Document{
			{ID: "doc-1", Title: "Architecture", Body: "Layers and packages.", Path: "doc-1 - Architecture.md"},
		},
		Decisions: []model.Decision{
			{ID: "decision-1", Title: "Use YAML frontmatter", Status: model.DecisionAccepted,
				Body: "Frontmatter is parsed with yaml.v3."},
		},
	}
}

func fixtureMilestones() []model.Milestone {
	return []model.Milestone{{ID: "m-1", Title: "First release", Description: "Ship the watcher."}}
}

func newTestIndex(t *testing.T) (*Index, *fakeCache) {
	t.Helper()
	fc := newFakeCache(fixture())
	x := New(fc, staticMilestones(fixtureMilestones()...))
	t.Cleanup(x.Dispose)
	if err := x.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}
	return x, fc
}

func mustSearch(t *testing.T, x *Index, opts SearchOptions) []Result {
	t.Helper()
	results, err := x.Search(opts)
	if err != nil {
		t.Fatalf("Search(%+v) error = %v", opts, err)
	}
	return results
}

func resultIDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID()
	}
	return out
}

func containsID(results []Result, id string) bool {
	for _, r := range results {
		if r.ID() == id {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")
