package event

import "sync"

// VersionGuard drops stale or duplicate content events. A consumer calls
// Accept with each event's version and only applies the event when Accept
// returns true.
type VersionGuard struct {
	mu   sync.Mutex
	last uint64
	seen bool
}

// Accept reports whether version is newer than every version accepted (or
// marked) so far, and records it if so. The first call always succeeds.
func (g *VersionGuard) Accept(version uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen && version <= g.last {
		return false
	}
	g.last = version
	g.seen = true
	return true
}

// Mark records version as applied without the newer-than check. Used after
// a consumer builds from a snapshot it fetched directly.
func (g *VersionGuard) Mark(version uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = version
	g.seen = true
}

// Last returns the most recent accepted version and whether any was seen.
func (g *VersionGuard) Last() (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.seen
}

// Reset forgets all history.
func (g *VersionGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = 0
	g.seen = false
}
