package model

import (
	"slices"
	"strings"
)

// Snapshot is a point-in-time view of the cache's three collections.
// Tasks and decisions are ordered by hierarchical id, documents by title.
type Snapshot struct {
	Tasks     []Task     `json:"tasks"`
	Documents []Document `json:"documents"`
	Decisions []Decision `json:"decisions"`
}

// Clone deep copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Tasks:     CloneTasks(s.Tasks),
		Documents: CloneDocuments(s.Documents),
		Decisions: CloneDecisions(s.Decisions),
	}
}

// CloneTasks deep copies a task slice. The result is never nil.
func CloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// CloneDocuments deep copies a document slice. The result is never nil.
func CloneDocuments(in []Document) []Document {
	out := make([]Document, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

// CloneDecisions copies a decision slice. The result is never nil.
func CloneDecisions(in []Decision) []Decision {
	out := make([]Decision, len(in))
	copy(out, in)
	return out
}

// SortTasks orders tasks in place by hierarchical id.
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int { return CompareIDs(a.ID, b.ID) })
}

// SortDecisions orders decisions in place by hierarchical id.
func SortDecisions(decisions []Decision) {
	slices.SortStableFunc(decisions, func(a, b Decision) int { return CompareIDs(a.ID, b.ID) })
}

// SortDocuments orders documents in place by title, case-insensitively,
// falling back to id.
func SortDocuments(docs []Document) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return CompareIDs(a.ID, b.ID)
	})
}
