// Package event defines the change events published by the content cache.
package event

import (
	"time"

	"github.com/Iron-Ham/backlog/internal/model"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "content.ready", "content.tasks")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Content event types.
const (
	TypeReady     = "content.ready"
	TypeTasks     = "content.tasks"
	TypeDocuments = "content.documents"
	TypeDecisions = "content.decisions"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// ContentEvent is implemented by every event the content cache emits.
// Each carries the full post-change snapshot and the cache version it was
// produced at.
type ContentEvent interface {
	Event
	ContentVersion() uint64
	ContentSnapshot() model.Snapshot
}

// -----------------------------------------------------------------------------
// Content Events
// -----------------------------------------------------------------------------

// ReadyEvent is emitted once the cache finishes its initial load or a forced
// refresh, and is replayed synchronously to every new subscriber.
type ReadyEvent struct {
	baseEvent
	Version  uint64
	Snapshot model.Snapshot
}

// NewReadyEvent creates a ReadyEvent.
func NewReadyEvent(version uint64, snapshot model.Snapshot) ReadyEvent {
	return ReadyEvent{
		baseEvent: newBaseEvent(TypeReady),
		Version:   version,
		Snapshot:  snapshot,
	}
}

func (e ReadyEvent) ContentVersion() uint64          { return e.Version }
func (e ReadyEvent) ContentSnapshot() model.Snapshot { return e.Snapshot }

// TasksChangedEvent is emitted when the task collection changed.
type TasksChangedEvent struct {
	baseEvent
	Version  uint64
	Snapshot model.Snapshot
	Tasks    []model.Task
}

// NewTasksChangedEvent creates a TasksChangedEvent.
func NewTasksChangedEvent(version uint64, snapshot model.Snapshot) TasksChangedEvent {
	return TasksChangedEvent{
		baseEvent: newBaseEvent(TypeTasks),
		Version:   version,
		Snapshot:  snapshot,
		Tasks:     snapshot.Tasks,
	}
}

func (e TasksChangedEvent) ContentVersion() uint64          { return e.Version }
func (e TasksChangedEvent) ContentSnapshot() model.Snapshot { return e.Snapshot }

// DocumentsChangedEvent is emitted when the document collection changed.
type DocumentsChangedEvent struct {
	baseEvent
	Version   uint64
	Snapshot  model.Snapshot
	Documents []model.Document
}

// NewDocumentsChangedEvent creates a DocumentsChangedEvent.
func NewDocumentsChangedEvent(version uint64, snapshot model.Snapshot) DocumentsChangedEvent {
	return DocumentsChangedEvent{
		baseEvent: newBaseEvent(TypeDocuments),
		Version:   version,
		Snapshot:  snapshot,
		Documents: snapshot.Documents,
	}
}

func (e DocumentsChangedEvent) ContentVersion() uint64          { return e.Version }
func (e DocumentsChangedEvent) ContentSnapshot() model.Snapshot { return e.Snapshot }

// DecisionsChangedEvent is emitted when the decision collection changed.
type DecisionsChangedEvent struct {
	baseEvent
	Version   uint64
	Snapshot  model.Snapshot
	Decisions []model.Decision
}

// NewDecisionsChangedEvent creates a DecisionsChangedEvent.
func NewDecisionsChangedEvent(version uint64, snapshot model.Snapshot) DecisionsChangedEvent {
	return DecisionsChangedEvent{
		baseEvent: newBaseEvent(TypeDecisions),
		Version:   version,
		Snapshot:  snapshot,
		Decisions: snapshot.Decisions,
	}
}

func (e DecisionsChangedEvent) ContentVersion() uint64          { return e.Version }
func (e DecisionsChangedEvent) ContentSnapshot() model.Snapshot { return e.Snapshot }

// CloneContent returns a copy of a content event whose snapshot (and
// collection payload) no longer share memory with the original, so each
// listener may mutate what it receives. Non-content events are returned
// unchanged.
func CloneContent(e Event) Event {
	switch ev := e.(type) {
	case ReadyEvent:
		ev.Snapshot = ev.Snapshot.Clone()
		return ev
	case TasksChangedEvent:
		ev.Snapshot = ev.Snapshot.Clone()
		ev.Tasks = ev.Snapshot.Tasks
		return ev
	case DocumentsChangedEvent:
		ev.Snapshot = ev.Snapshot.Clone()
		ev.Documents = ev.Snapshot.Documents
		return ev
	case DecisionsChangedEvent:
		ev.Snapshot = ev.Snapshot.Clone()
		ev.Decisions = ev.Snapshot.Decisions
		return ev
	default:
		return e
	}
}
