// Package model defines the backlog entities held by the content cache:
// tasks, documents, decisions and milestones, plus the immutable Snapshot
// handed to consumers.
//
// Entities are plain values. Every slice-bearing type has a Clone method so
// the cache can copy at its boundary; callers are free to mutate whatever
// they receive.
package model

import (
	"slices"
	"strings"
)

// -----------------------------------------------------------------------------
// Enums
// -----------------------------------------------------------------------------

// Priority is the optional task priority.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalizes a priority string. Unknown values map to
// PriorityNone.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityNone
	}
}

// DecisionStatus is the lifecycle state of an architecture decision.
type DecisionStatus string

const (
	DecisionProposed   DecisionStatus = "proposed"
	DecisionAccepted   DecisionStatus = "accepted"
	DecisionRejected   DecisionStatus = "rejected"
	DecisionSuperseded DecisionStatus = "superseded"
)

// ParseDecisionStatus normalizes a decision status, defaulting to proposed.
func ParseDecisionStatus(s string) DecisionStatus {
	switch DecisionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionAccepted:
		return DecisionAccepted
	case DecisionRejected:
		return DecisionRejected
	case DecisionSuperseded:
		return DecisionSuperseded
	default:
		return DecisionProposed
	}
}

// EntityType tags the four searchable entity kinds.
type EntityType string

const (
	EntityTask      EntityType = "task"
	EntityDocument  EntityType = "document"
	EntityDecision  EntityType = "decision"
	EntityMilestone EntityType = "milestone"
)

// AllEntityTypes returns every entity type in display order.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityTask, EntityDocument, EntityDecision, EntityMilestone}
}

// -----------------------------------------------------------------------------
// Entities
// -----------------------------------------------------------------------------

// Task is a unit of work stored as one markdown file in the tasks directory.
type Task struct {
	// ID is stable and hierarchical: "task-3", "task-3.1" for subtasks.
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`

	// Status is free-form and compared case-insensitively.
	Status   string   `yaml:"status" json:"status"`
	Assignee []string `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Labels   []string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Dependencies lists task ids. They may reference tasks that are not
	// present in the current set.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Priority     Priority `yaml:"priority,omitempty" json:"priority,omitempty"`

	Milestone    string `yaml:"milestone,omitempty" json:"milestone,omitempty"`
	ParentTaskID string `yaml:"parent_task_id,omitempty" json:"parent_task_id,omitempty"`
	Ordinal      *int   `yaml:"ordinal,omitempty" json:"ordinal,omitempty"`
	CreatedDate  string `yaml:"created_date,omitempty" json:"created_date,omitempty"`
	UpdatedDate  string `yaml:"updated_date,omitempty" json:"updated_date,omitempty"`

	// Body is the raw markdown following the frontmatter.
	Body string `yaml:"-" json:"body"`
	// FilePath is the absolute path the task was loaded from.
	FilePath string `yaml:"-" json:"file_path,omitempty"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Assignee = slices.Clone(t.Assignee)
	c.Labels = slices.Clone(t.Labels)
	c.Dependencies = slices.Clone(t.Dependencies)
	if t.Ordinal != nil {
		o := *t.Ordinal
		c.Ordinal = &o
	}
	return c
}

// HasAssignee reports whether name is one of the task's assignees.
// Leading "@" is ignored on both sides.
func (t Task) HasAssignee(name string) bool {
	want := strings.TrimPrefix(strings.TrimSpace(name), "@")
	for _, a := range t.Assignee {
		if strings.EqualFold(strings.TrimPrefix(a, "@"), want) {
			return true
		}
	}
	return false
}

// Document is free-form project documentation. Documents may be nested in
// subdirectories of the docs root.
type Document struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	CreatedDate string   `yaml:"created_date,omitempty" json:"created_date,omitempty"`
	UpdatedDate string   `yaml:"updated_date,omitempty" json:"updated_date,omitempty"`

	Body string `yaml:"-" json:"body"`
	// Path is the file location relative to the docs root.
	Path string `yaml:"-" json:"path,omitempty"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	c := d
	c.Tags = slices.Clone(d.Tags)
	return c
}

// Decision is an architecture decision record.
type Decision struct {
	ID     string         `yaml:"id" json:"id"`
	Title  string         `yaml:"title" json:"title"`
	Status DecisionStatus `yaml:"status" json:"status"`
	Date   string         `yaml:"date,omitempty" json:"date,omitempty"`

	Body string `yaml:"-" json:"body"`
}

// Clone returns a copy of the decision.
func (d Decision) Clone() Decision { return d }

// Milestone groups tasks toward a release or goal. Milestones are not
// watched by the cache; the search index reloads them on every rebuild.
type Milestone struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Body string `yaml:"-" json:"body"`
}

// -----------------------------------------------------------------------------
// Filtering
// -----------------------------------------------------------------------------

// TaskFilter narrows GetTasks results. Zero-valued fields do not filter.
type TaskFilter struct {
	// Status matches case-insensitively.
	Status string
	// Assignee matches if it is one of the task's assignees.
	Assignee string
}

// Matches reports whether the task passes the filter. A nil filter matches
// everything.
func (f *TaskFilter) Matches(t Task) bool {
	if f == nil {
		return true
	}
	if f.Status != "" && !strings.EqualFold(strings.TrimSpace(t.Status), strings.TrimSpace(f.Status)) {
		return false
	}
	if f.Assignee != "" && !t.HasAssignee(f.Assignee) {
		return false
	}
	return true
}
