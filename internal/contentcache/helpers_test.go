package contentcache

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/event"
	"github.com/Iron-Ham/backlog/internal/filesystem"
	"github.com/Iron-Ham/backlog/internal/model"
)

const waitTimeout = 5 * time.Second

// newTestStore returns a store rooted in a fresh temp directory with its
// structure in place.
func newTestStore(t *testing.T) *filesystem.Store {
	t.Helper()
	s := filesystem.NewStore(filepath.Join(t.TempDir(), "backlog"))
	if err := s.EnsureBacklogStructure(context.Background()); err != nil {
		t.Fatalf("EnsureBacklogStructure() error = %v", err)
	}
	return s
}

// newWatchedCache builds a cache using the directory-tree watcher with a
// short debounce and registers cleanup.
func newWatchedCache(t *testing.T, store Store, opts ...Option) *Cache {
	t.Helper()
	base := []Option{WithForceTree(true), WithDebounce(10 * time.Millisecond)}
	c := New(store, append(base, opts...)...)
	t.Cleanup(c.Dispose)
	return c
}

func mustInit(t *testing.T, c *Cache) model.Snapshot {
	t.Helper()
	snap, err := c.EnsureInitialized(context.Background())
	if err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}
	return snap
}

func mustSaveTask(t *testing.T, s *filesystem.Store, task model.Task) string {
	t.Helper()
	path, err := s.SaveTask(context.Background(), task)
	if err != nil {
		t.Fatalf("SaveTask(%s) error = %v", task.ID, err)
	}
	return path
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle gives the watcher time to deliver anything still in flight.
func settle() {
	time.Sleep(150 * time.Millisecond)
}

func hasTask(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if model.SameID(t.ID, id, model.DefaultTaskPrefix) {
			return t, true
		}
	}
	return model.Task{}, false
}

// recorder collects delivered events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) listen(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(eventType string) int {
	n := 0
	for _, e := range r.all() {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func (r *recorder) last(eventType string) (event.ContentEvent, bool) {
	events := r.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType() == eventType {
			ce, ok := events[i].(event.ContentEvent)
			return ce, ok
		}
	}
	return nil, false
}

// assertMonotonic fails if versions across events do not strictly
// increase.
func (r *recorder) assertMonotonic(t *testing.T) {
	t.Helper()
	var last uint64
	for i, e := range r.all() {
		ce, ok := e.(event.ContentEvent)
		if !ok {
			continue
		}
		if i > 0 && ce.ContentVersion() <= last {
			t.Errorf("event %d (%s) version %d not greater than %d", i, e.EventType(), ce.ContentVersion(), last)
		}
		last = ce.ContentVersion()
	}
}

// gatedStore blocks ListTasks until released and counts bulk loads.
type gatedStore struct {
	*filesystem.Store
	listCalls atomic.Int32
	gate      chan struct{}

	failDocuments atomic.Int32 // number of upcoming ListDocuments calls to fail
}

func newGatedStore(t *testing.T) *gatedStore {
	return &gatedStore{Store: newTestStore(t), gate: make(chan struct{})}
}

func (s *gatedStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	s.listCalls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Store.ListTasks(ctx)
}

func (s *gatedStore) ListDocuments(ctx context.Context) ([]model.Document, error) {
	if s.failDocuments.Load() > 0 {
		s.failDocuments.Add(-1)
		return nil, errors.New("disk on fire")
	}
	return s.Store.ListDocuments(ctx)
}
