package event

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/backlog/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription is one registered handler. A nil type set matches every
// event.
type subscription struct {
	id      string
	types   map[string]struct{}
	handler Handler
}

func (s subscription) wants(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Bus is a synchronous pub-sub event bus. Handlers run in registration
// order on the publishing goroutine; the content cache publishes from its
// work queue, so every handler sees events in version order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription // replaced, never mutated in place
	logger *logging.Logger
}

// NewBus creates a new event bus. Handler panics are reported to logger;
// a nil logger discards them.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler for the given event types, or for every
// event when no type is given. It returns an id for Unsubscribe.
func (b *Bus) Subscribe(handler Handler, eventTypes ...string) string {
	sub := subscription{id: uuid.NewString(), handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(slices.Clip(b.subs), sub)
	return sub.id
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(handler)
}

// Unsubscribe removes a subscription by id and reports whether it existed.
// A Publish already in progress may still call the handler once.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subs, func(s subscription) bool { return s.id == id })
	if i < 0 {
		return false
	}
	b.subs = slices.Delete(slices.Clone(b.subs), i, i+1)
	return true
}

// Publish calls every matching handler and returns how many ran to
// completion. A panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) int {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	eventType := e.EventType()
	delivered := 0
	for _, sub := range subs {
		if !sub.wants(eventType) {
			continue
		}
		var pc panics.Catcher
		pc.Try(func() { sub.handler(e) })
		if r := pc.Recovered(); r != nil {
			b.logger.Error("event handler panicked",
				"event", eventType, "subscription", sub.id, "panic", r.Value, "stack", string(r.Stack))
			continue
		}
		delivered++
	}
	return delivered
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
