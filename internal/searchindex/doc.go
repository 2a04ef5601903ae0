// Package searchindex maintains a fuzzy search index over a content cache.
//
// The index is derived state. It subscribes to the cache and rebuilds
// itself wholesale whenever the cache version advances, reloading
// milestones from disk on every rebuild since the cache does not watch
// them. Each rebuild is swapped in atomically, so a Search never sees a
// half-built index.
//
// Matching uses fzf's V2 algorithm over four weighted fields: title, body
// (markdown stripped), every spelling of the entity id, and every spelling
// of a task's dependency ids. Higher scores rank first.
package searchindex
