package searchindex

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/event"
	"github.com/Iron-Ham/backlog/internal/logging"
	"github.com/Iron-Ham/backlog/internal/model"
)

// CacheSource is the part of the content cache the index consumes.
// *contentcache.Cache implements it.
type CacheSource interface {
	EnsureInitialized(ctx context.Context) (model.Snapshot, error)
	Subscribe(listener func(event.Event)) func()
}

// MilestoneLoader lists milestones from disk.
type MilestoneLoader interface {
	ListMilestones(ctx context.Context) ([]model.Milestone, error)
}

// state is one built generation of the index.
type state struct {
	version  uint64
	entities []*entity
}

// Index answers fuzzy queries over the cache's latest snapshot.
type Index struct {
	cache      CacheSource
	milestones MilestoneLoader
	opts       options
	logger     *logging.Logger

	group   singleflight.Group
	guard   event.VersionGuard
	current atomic.Pointer[state]

	mu          sync.Mutex
	unsubscribe func()
	disposed    bool
}

// New creates an index over cache. milestones may be nil, in which case
// the index carries no milestones.
func New(cache CacheSource, milestones MilestoneLoader, opts ...Option) *Index {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Index{
		cache:      cache,
		milestones: milestones,
		opts:       o,
		logger:     o.logger.WithComponent("searchindex"),
	}
}

// EnsureInitialized initializes the cache, builds the first index and
// subscribes for updates. Concurrent callers share one attempt, which a
// single caller's cancellation does not abort; a failed attempt can be
// retried.
func (x *Index) EnsureInitialized(ctx context.Context) error {
	if x.current.Load() != nil {
		return nil
	}
	flight := x.group.DoChan("init", func() (any, error) {
		return nil, x.initialize(context.WithoutCancel(ctx))
	})
	select {
	case res := <-flight:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *Index) initialize(ctx context.Context) error {
	if x.current.Load() != nil {
		return nil
	}
	x.mu.Lock()
	disposed := x.disposed
	x.mu.Unlock()
	if disposed {
		return errors.NewCacheError("search index init", errors.ErrCacheDisposed)
	}

	if _, err := x.cache.EnsureInitialized(ctx); err != nil {
		return err
	}

	// The cache is initialized, so Subscribe replays ready synchronously
	// and the first build happens before it returns.
	unsubscribe := x.cache.Subscribe(x.onEvent)

	x.mu.Lock()
	if x.disposed {
		x.mu.Unlock()
		unsubscribe()
		return errors.NewCacheError("search index init", errors.ErrCacheDisposed)
	}
	x.unsubscribe = unsubscribe
	x.mu.Unlock()

	if x.current.Load() == nil {
		// Subscribe on a disposed cache delivers nothing.
		return errors.NewCacheError("search index init", errors.ErrCacheDisposed)
	}
	x.logger.Debug("search index initialized", "entities", len(x.current.Load().entities))
	return nil
}

// onEvent rebuilds from any content event newer than the last applied one.
// It runs on the cache's queue, one event at a time.
func (x *Index) onEvent(e event.Event) {
	ce, ok := e.(event.ContentEvent)
	if !ok || !x.guard.Accept(ce.ContentVersion()) {
		return
	}
	x.rebuild(ce.ContentVersion(), ce.ContentSnapshot())
}

// rebuild replaces the whole index. A disposed index stays empty.
func (x *Index) rebuild(version uint64, snap model.Snapshot) {
	milestones := x.loadMilestones()
	next := &state{
		version:  version,
		entities: buildEntities(snap, milestones, x.opts.taskPrefix),
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.disposed {
		return
	}
	x.current.Store(next)
	x.logger.Debug("search index rebuilt", "version", version,
		"tasks", len(snap.Tasks), "documents", len(snap.Documents),
		"decisions", len(snap.Decisions), "milestones", len(milestones))
}

// loadMilestones treats a failed load as no milestones.
func (x *Index) loadMilestones() []model.Milestone {
	if x.milestones == nil {
		return nil
	}
	ms, err := x.milestones.ListMilestones(context.Background())
	if err != nil {
		x.logger.Warn("failed to load milestones", "error", err)
		return nil
	}
	return ms
}

// Version returns the cache version the index was last built from, and
// false before the first build.
func (x *Index) Version() (uint64, bool) {
	s := x.current.Load()
	if s == nil {
		return 0, false
	}
	return s.version, true
}

// Dispose unsubscribes from the cache and drops the index. It is safe to
// call on an index that was never initialized, and more than once.
func (x *Index) Dispose() {
	x.mu.Lock()
	x.disposed = true
	unsubscribe := x.unsubscribe
	x.unsubscribe = nil
	x.current.Store(nil)
	x.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	x.guard.Reset()
}
