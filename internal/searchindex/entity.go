package searchindex

import (
	"strings"

	"github.com/Iron-Ham/backlog/internal/filesystem"
	"github.com/Iron-Ham/backlog/internal/model"
)

// Field keys reported in Match.Key.
const (
	KeyTitle        = "title"
	KeyBody         = "body"
	KeyID           = "id"
	KeyDependencies = "dependencies"
)

// fieldWeights sum to 1.
var fieldWeights = map[string]float64{
	KeyTitle:        0.35,
	KeyBody:         0.35,
	KeyID:           0.2,
	KeyDependencies: 0.1,
}

// field is one searchable key of an entity. A key may carry several values;
// the best scoring one wins.
type field struct {
	key    string
	values []string
}

// entity is the immutable search form of one cached item.
type entity struct {
	typ       model.EntityType
	task      *model.Task
	document  *model.Document
	decision  *model.Decision
	milestone *model.Milestone

	// Task-only filter attributes.
	status   string
	priority string

	fields []field
}

func (e *entity) result() Result {
	return Result{
		Type:      e.typ,
		Task:      cloneTask(e.task),
		Document:  cloneDocument(e.document),
		Decision:  cloneDecision(e.decision),
		Milestone: cloneMilestone(e.milestone),
	}
}

// buildEntities flattens a snapshot and milestones into search entities, in
// snapshot order followed by milestones.
func buildEntities(snap model.Snapshot, milestones []model.Milestone, prefix string) []*entity {
	out := make([]*entity, 0, len(snap.Tasks)+len(snap.Documents)+len(snap.Decisions)+len(milestones))

	for _, t := range snap.Tasks {
		t := t.Clone()
		var deps []string
		for _, d := range t.Dependencies {
			deps = append(deps, model.IDVariants(d, prefix)...)
		}
		out = append(out, &entity{
			typ:      model.EntityTask,
			task:     &t,
			status:   t.Status,
			priority: string(t.Priority),
			fields: []field{
				{KeyTitle, []string{t.Title}},
				{KeyBody, []string{filesystem.PlainText(t.Body)}},
				{KeyID, model.IDVariants(t.ID, prefix)},
				{KeyDependencies, deps},
			},
		})
	}
	for _, d := range snap.Documents {
		d := d.Clone()
		out = append(out, &entity{
			typ:      model.EntityDocument,
			document: &d,
			fields: []field{
				{KeyTitle, []string{d.Title}},
				{KeyBody, []string{filesystem.PlainText(d.Body)}},
				{KeyID, []string{d.ID}},
			},
		})
	}
	for _, d := range snap.Decisions {
		d := d.Clone()
		out = append(out, &entity{
			typ:      model.EntityDecision,
			decision: &d,
			fields: []field{
				{KeyTitle, []string{d.Title}},
				{KeyBody, []string{filesystem.PlainText(d.Body)}},
				{KeyID, []string{d.ID}},
			},
		})
	}
	for _, m := range milestones {
		m := m
		body := strings.TrimSpace(m.Description + "\n" + filesystem.PlainText(m.Body))
		out = append(out, &entity{
			typ:       model.EntityMilestone,
			milestone: &m,
			fields: []field{
				{KeyTitle, []string{m.Title}},
				{KeyBody, []string{body}},
				{KeyID, []string{m.ID}},
			},
		})
	}
	return out
}

func cloneTask(t *model.Task) *model.Task {
	if t == nil {
		return nil
	}
	c := t.Clone()
	return &c
}

func cloneDocument(d *model.Document) *model.Document {
	if d == nil {
		return nil
	}
	c := d.Clone()
	return &c
}

func cloneDecision(d *model.Decision) *model.Decision {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func cloneMilestone(m *model.Milestone) *model.Milestone {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
