package contentcache

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/gobwas/glob"
	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/event"
	"github.com/Iron-Ham/backlog/internal/logging"
	"github.com/Iron-Ham/backlog/internal/model"
)

// Store is the filesystem collaborator the cache loads from.
type Store interface {
	EnsureBacklogStructure(ctx context.Context) error
	ListTasks(ctx context.Context) ([]model.Task, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	ListDecisions(ctx context.Context) ([]model.Decision, error)
	ListMilestones(ctx context.Context) ([]model.Milestone, error)

	// LoadTask returns (nil, nil) when no task with id exists.
	LoadTask(ctx context.Context, id string) (*model.Task, error)

	FileExists(path string) bool
	ReadFile(path string) ([]byte, error)
	ParseTask(path string, content []byte) (*model.Task, error)
	ParseDocument(path string, content []byte) (*model.Document, error)
	ParseDecision(path string, content []byte) (*model.Decision, error)

	TasksDir() string
	DocsDir() string
	DecisionsDir() string
	TaskPrefix() string
}

// Cache is the live in-memory view of a backlog. Reads are synchronous
// and return copies; every mutation runs on a single work queue.
type Cache struct {
	store  Store
	opts   options
	logger *logging.Logger
	ignore []glob.Glob

	queue *workQueue
	bus   *event.Bus
	group singleflight.Group

	// subMu orders subscriber registration against the transition to
	// initialized, so each subscriber sees exactly one initial ready.
	subMu sync.Mutex

	mu          sync.RWMutex
	tasks       []model.Task
	documents   []model.Document
	decisions   []model.Decision
	version     uint64
	initialized bool
	disposed    bool
	watchers    []*kindWatcher

	disposeOnce sync.Once
}

// New creates a Cache over store. Nothing is loaded until
// EnsureInitialized.
func New(store Store, opts ...Option) *Cache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.WithComponent("contentcache")
	return &Cache{
		store:  store,
		opts:   o,
		logger: logger,
		ignore: compileIgnore(o.ignore, logger),
		queue:  newWorkQueue(logger),
		bus:    event.NewBus(logger),
	}
}

// EnsureInitialized performs the bulk load on first use and arms the
// watchers. Concurrent callers share one load. A failed load leaves the
// cache uninitialized so a later call retries.
func (c *Cache) EnsureInitialized(ctx context.Context) (model.Snapshot, error) {
	c.mu.RLock()
	initialized, disposed := c.initialized, c.disposed
	var snap model.Snapshot
	if initialized {
		snap = c.snapshotLocked()
	}
	c.mu.RUnlock()

	if initialized {
		return snap, nil
	}
	if disposed {
		return model.Snapshot{}, errors.NewCacheError("ensure initialized", errors.ErrCacheDisposed)
	}

	// The load is shared: one caller giving up must not end it for the
	// others, so the flight waits without the caller's cancellation and
	// each caller waits on its own context.
	flight := c.group.DoChan("init", func() (any, error) {
		return nil, c.queue.Do(context.WithoutCancel(ctx), "bulk load", c.bulkLoad)
	})
	var err error
	select {
	case res := <-flight:
		err = res.Err
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, errors.ErrCacheDisposed) {
			return model.Snapshot{}, errors.NewCacheError("ensure initialized", errors.ErrCacheDisposed)
		}
		return model.Snapshot{}, err
	}
	return c.GetSnapshot()
}

// bulkLoad runs on the queue. A unit queued behind a successful load finds
// the cache initialized and does nothing.
func (c *Cache) bulkLoad(ctx context.Context) error {
	c.mu.RLock()
	done := c.initialized
	c.mu.RUnlock()
	if done {
		return nil
	}

	tasks, documents, decisions, err := c.loadAll(ctx)
	if err != nil {
		return err
	}

	c.subMu.Lock()
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.subMu.Unlock()
		c.logger.Debug("discarding bulk load for disposed cache")
		return errors.ErrCacheDisposed
	}
	c.tasks, c.documents, c.decisions = tasks, documents, decisions
	c.initialized = true
	ready := event.NewReadyEvent(c.version, c.snapshotLocked())
	c.mu.Unlock()
	c.subMu.Unlock()

	c.logger.Info("content loaded",
		"tasks", len(tasks),
		"documents", len(documents),
		"decisions", len(decisions),
	)
	c.bus.Publish(ready)

	if c.opts.watch {
		c.armWatchers(ctx)
	}
	return nil
}

func (c *Cache) loadAll(ctx context.Context) ([]model.Task, []model.Document, []model.Decision, error) {
	if err := c.store.EnsureBacklogStructure(ctx); err != nil {
		return nil, nil, nil, bulkLoadError("ensure structure", err)
	}
	tasks, err := c.store.ListTasks(ctx)
	if err != nil {
		return nil, nil, nil, bulkLoadError("list tasks", err)
	}
	documents, err := c.store.ListDocuments(ctx)
	if err != nil {
		return nil, nil, nil, bulkLoadError("list documents", err)
	}
	decisions, err := c.store.ListDecisions(ctx)
	if err != nil {
		return nil, nil, nil, bulkLoadError("list decisions", err)
	}

	tasks = model.CloneTasks(tasks)
	documents = model.CloneDocuments(documents)
	decisions = model.CloneDecisions(decisions)
	model.SortTasks(tasks)
	model.SortDocuments(documents)
	model.SortDecisions(decisions)
	return tasks, documents, decisions, nil
}

func bulkLoadError(op string, cause error) error {
	return errors.NewCacheError(op, fmt.Errorf("%w: %w", errors.ErrBulkLoadFailed, cause)).WithRetryable(true)
}

// Refresh reloads every collection from the store, bumps the version once
// and emits ready. An uninitialized cache is initialized instead.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.RLock()
	initialized, disposed := c.initialized, c.disposed
	c.mu.RUnlock()
	if disposed {
		return errors.NewCacheError("refresh", errors.ErrCacheDisposed)
	}
	if !initialized {
		_, err := c.EnsureInitialized(ctx)
		return err
	}

	return c.queue.Do(ctx, "refresh", func(ctx context.Context) error {
		tasks, documents, decisions, err := c.loadAll(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		if c.disposed {
			c.mu.Unlock()
			return errors.ErrCacheDisposed
		}
		c.tasks, c.documents, c.decisions = tasks, documents, decisions
		c.version++
		ready := event.NewReadyEvent(c.version, c.snapshotLocked())
		c.mu.Unlock()

		c.bus.Publish(ready)
		return nil
	})
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func notInitialized(op string) error {
	return errors.NewCacheError(op, errors.ErrCacheNotInitialized).AsPrecondition()
}

// snapshotLocked returns a deep copy of the collections. Callers hold mu.
func (c *Cache) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		Tasks:     model.CloneTasks(c.tasks),
		Documents: model.CloneDocuments(c.documents),
		Decisions: model.CloneDecisions(c.decisions),
	}
}

// GetSnapshot returns a copy of all three collections.
func (c *Cache) GetSnapshot() (model.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return model.Snapshot{}, notInitialized("get snapshot")
	}
	return c.snapshotLocked(), nil
}

// GetTasks returns the tasks passing filter. A nil filter returns all.
func (c *Cache) GetTasks(filter *model.TaskFilter) ([]model.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return nil, notInitialized("get tasks")
	}
	out := make([]model.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// GetTask returns the task whose id matches id in any of its spellings.
func (c *Cache) GetTask(id string) (model.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return model.Task{}, notInitialized("get task")
	}
	for _, t := range c.tasks {
		if c.sameTask(t.ID, id) {
			return t.Clone(), nil
		}
	}
	return model.Task{}, errors.NewNotFoundError("task", id)
}

// GetDocuments returns all documents.
func (c *Cache) GetDocuments() ([]model.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return nil, notInitialized("get documents")
	}
	return model.CloneDocuments(c.documents), nil
}

// GetDecisions returns all decisions.
func (c *Cache) GetDecisions() ([]model.Decision, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return nil, notInitialized("get decisions")
	}
	return model.CloneDecisions(c.decisions), nil
}

// Version returns the current content version. It is zero after the
// initial load and increases by one with every change.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Initialized reports whether the bulk load has completed.
func (c *Cache) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// subscriber serializes delivery to one listener and drops anything not
// newer than what it already delivered.
type subscriber struct {
	mu        sync.Mutex
	listener  func(event.Event)
	last      uint64
	delivered bool
}

func (s *subscriber) deliverLocked(e event.Event) {
	ce, ok := e.(event.ContentEvent)
	if ok {
		if s.delivered && ce.ContentVersion() <= s.last {
			return
		}
		s.last, s.delivered = ce.ContentVersion(), true
	}
	s.listener(event.CloneContent(e))
}

func (s *subscriber) deliver(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliverLocked(e)
}

// Subscribe registers listener for content events and returns a function
// that removes it. On an initialized cache the listener receives a ready
// event with the current snapshot before Subscribe returns. Otherwise
// initialization starts in the background and ready follows when it
// completes.
//
// Listeners run on the cache's work queue and must not call Refresh or
// otherwise wait on the queue.
func (c *Cache) Subscribe(listener func(event.Event)) func() {
	sub := &subscriber{listener: listener}
	sub.mu.Lock()

	c.subMu.Lock()
	c.mu.RLock()
	disposed, initialized := c.disposed, c.initialized
	var ready event.Event
	if initialized {
		ready = event.NewReadyEvent(c.version, c.snapshotLocked())
	}
	c.mu.RUnlock()

	if disposed {
		c.subMu.Unlock()
		sub.mu.Unlock()
		return func() {}
	}
	id := c.bus.SubscribeAll(sub.deliver)
	c.subMu.Unlock()

	if ready != nil {
		c.safeReplay(sub, ready)
	}
	sub.mu.Unlock()

	if !initialized {
		go func() {
			if _, err := c.EnsureInitialized(context.Background()); err != nil {
				c.logger.Warn("background initialization failed", "error", err)
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.bus.Unsubscribe(id) })
	}
}

// safeReplay delivers the initial ready event, keeping a panicking
// listener from unwinding into the caller of Subscribe.
func (c *Cache) safeReplay(sub *subscriber, ready event.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked on ready replay", "panic", r)
		}
	}()
	sub.deliverLocked(ready)
}

// -----------------------------------------------------------------------------
// Mutation (queue goroutine only)
// -----------------------------------------------------------------------------

// upsert replaces the element matching item, or appends it. changed is
// false when an identical element is already present.
func upsert[T any](items []T, item T, match func(T) bool) (next []T, changed bool) {
	i := slices.IndexFunc(items, match)
	if i < 0 {
		return append(slices.Clone(items), item), true
	}
	if reflect.DeepEqual(items[i], item) {
		return items, false
	}
	next = slices.Clone(items)
	next[i] = item
	return next, true
}

// remove drops every element matching match.
func remove[T any](items []T, match func(T) bool) (next []T, changed bool) {
	next = slices.DeleteFunc(slices.Clone(items), match)
	return next, len(next) != len(items)
}

// commit applies mutate under the write lock. When it reports a change the
// version is bumped and the event built by newEvent is published.
func (c *Cache) commit(mutate func() bool, newEvent func(uint64, model.Snapshot) event.Event) {
	c.mu.Lock()
	if c.disposed || !c.initialized || !mutate() {
		c.mu.Unlock()
		return
	}
	c.version++
	e := newEvent(c.version, c.snapshotLocked())
	c.mu.Unlock()

	c.bus.Publish(e)
}

func tasksEvent(v uint64, s model.Snapshot) event.Event { return event.NewTasksChangedEvent(v, s) }
func documentsEvent(v uint64, s model.Snapshot) event.Event {
	return event.NewDocumentsChangedEvent(v, s)
}
func decisionsEvent(v uint64, s model.Snapshot) event.Event {
	return event.NewDecisionsChangedEvent(v, s)
}

// sameTask matches task ids under the store's prefix.
func (c *Cache) sameTask(a, b string) bool {
	return model.SameID(a, b, c.store.TaskPrefix())
}

func (c *Cache) upsertTask(t model.Task) {
	c.commit(func() bool {
		next, changed := upsert(c.tasks, t, func(x model.Task) bool { return c.sameTask(x.ID, t.ID) })
		if changed {
			model.SortTasks(next)
			c.tasks = next
		}
		return changed
	}, tasksEvent)
}

func (c *Cache) removeTask(id string) {
	c.commit(func() bool {
		next, changed := remove(c.tasks, func(x model.Task) bool { return c.sameTask(x.ID, id) })
		if changed {
			c.tasks = next
		}
		return changed
	}, tasksEvent)
}

func (c *Cache) upsertDocument(d model.Document) {
	c.commit(func() bool {
		next, changed := upsert(c.documents, d, func(x model.Document) bool { return x.ID == d.ID })
		if changed {
			model.SortDocuments(next)
			c.documents = next
		}
		return changed
	}, documentsEvent)
}

// removeDocuments drops the documents whose relative path satisfies match.
func (c *Cache) removeDocuments(match func(relPath string) bool) {
	c.commit(func() bool {
		next, changed := remove(c.documents, func(x model.Document) bool { return match(x.Path) })
		if changed {
			c.documents = next
		}
		return changed
	}, documentsEvent)
}

func (c *Cache) upsertDecision(d model.Decision) {
	c.commit(func() bool {
		next, changed := upsert(c.decisions, d, func(x model.Decision) bool { return x.ID == d.ID })
		if changed {
			model.SortDecisions(next)
			c.decisions = next
		}
		return changed
	}, decisionsEvent)
}

func (c *Cache) removeDecision(id string) {
	c.commit(func() bool {
		next, changed := remove(c.decisions, func(x model.Decision) bool { return x.ID == id })
		if changed {
			c.decisions = next
		}
		return changed
	}, decisionsEvent)
}

// -----------------------------------------------------------------------------
// Disposal
// -----------------------------------------------------------------------------

// Dispose closes every watcher, drops all subscribers and stops the work
// queue. It is safe to call more than once. A disposed cache never re-arms
// watchers; EnsureInitialized keeps returning the last snapshot if there
// was one.
func (c *Cache) Dispose() {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		c.disposed = true
		watchers := c.watchers
		c.watchers = nil
		c.mu.Unlock()

		for _, w := range watchers {
			w.close()
		}
		c.queue.Close()
		c.bus.Clear()
		c.logger.Debug("content cache disposed")
	})
}
