// Package event provides the pub-sub plumbing between the content cache
// and its consumers.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [ContentEvent]: Events carrying a cache snapshot and the version it was produced at
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [VersionGuard]: Drops events whose version is not newer than the last applied
//
// # Content Events
//
//   - [ReadyEvent] (content.ready): initial load or forced refresh; replayed to new subscribers
//   - [TasksChangedEvent] (content.tasks)
//   - [DocumentsChangedEvent] (content.documents)
//   - [DecisionsChangedEvent] (content.decisions)
//
// Versions are strictly increasing per cache instance. Consumers must
// ignore events whose version is not greater than the last one applied:
//
//	var guard event.VersionGuard
//	unsubscribe := cache.Subscribe(func(e event.Event) {
//	    ce, ok := e.(event.ContentEvent)
//	    if !ok || !guard.Accept(ce.ContentVersion()) {
//	        return
//	    }
//	    rebuild(ce.ContentSnapshot())
//	})
//	defer unsubscribe()
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously and protected against panics - a panicking handler will not
// prevent other handlers from being called.
package event
