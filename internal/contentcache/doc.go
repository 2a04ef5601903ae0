// Package contentcache keeps a live, in-memory copy of a backlog's tasks,
// documents and decisions.
//
// A [Cache] bulk-loads the corpus once through its [Store], then watches
// each entity directory and applies every change through a single work
// queue. Readers get deep copies; subscribers get versioned events:
//
//	cache := contentcache.New(store, contentcache.WithLogger(logger))
//	defer cache.Dispose()
//
//	if _, err := cache.EnsureInitialized(ctx); err != nil {
//	    return err
//	}
//	unsubscribe := cache.Subscribe(func(e event.Event) { ... })
//	defer unsubscribe()
//
// # Watching
//
// Where fsnotify can watch a tree natively the cache uses one recursive
// registration per entity kind. Elsewhere it keeps a tree of per-directory
// registrations, adding subtrees as directories appear and dropping them
// as they vanish. Structural changes and entity updates share the work
// queue, so they never interleave.
//
// A watch-triggered re-read that fails to parse is handled by the
// configured [ResyncPolicy]. The default, [BestEffortResync], waits for the
// next notification for that path.
package contentcache
