package searchindex

import (
	"slices"
	"strings"

	"github.com/junegunn/fzf/src/util"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/model"
)

// Filters narrow task results. Values within one filter are alternatives;
// separate filters must all hold. Comparison ignores case.
type Filters struct {
	Status   []string
	Priority []string
}

func (f Filters) active() bool {
	return len(f.Status) > 0 || len(f.Priority) > 0
}

// SearchOptions describes one query.
type SearchOptions struct {
	// Query is matched fuzzily. Blank returns every allowed entity in index
	// order without scores.
	Query string
	// Limit caps the result count. Zero or negative means no cap.
	Limit int
	// Types restricts entity kinds. Empty means all four.
	Types   []model.EntityType
	Filters Filters
}

// Match locates the query inside one field of a result.
type Match struct {
	Key string `json:"key"`
	// Indices are inclusive rune offset spans into Value.
	Indices [][2]int `json:"indices"`
	Value   string   `json:"value"`
}

// Result is one hit. Exactly one of the entity pointers is set, matching
// Type. Score is nil for blank queries.
type Result struct {
	Type      model.EntityType `json:"type"`
	Task      *model.Task      `json:"task,omitempty"`
	Document  *model.Document  `json:"document,omitempty"`
	Decision  *model.Decision  `json:"decision,omitempty"`
	Milestone *model.Milestone `json:"milestone,omitempty"`
	Score     *float64         `json:"score"`
	Matches   []Match          `json:"matches,omitempty"`
}

// ID returns the id of whichever entity the result holds.
func (r Result) ID() string {
	switch {
	case r.Task != nil:
		return r.Task.ID
	case r.Document != nil:
		return r.Document.ID
	case r.Decision != nil:
		return r.Decision.ID
	case r.Milestone != nil:
		return r.Milestone.ID
	}
	return ""
}

// Title returns the title of whichever entity the result holds.
func (r Result) Title() string {
	switch {
	case r.Task != nil:
		return r.Task.Title
	case r.Document != nil:
		return r.Document.Title
	case r.Decision != nil:
		return r.Decision.Title
	case r.Milestone != nil:
		return r.Milestone.Title
	}
	return ""
}

// Search runs a query against the current index. It fails with a
// precondition error before EnsureInitialized has completed.
func (x *Index) Search(opts SearchOptions) ([]Result, error) {
	s := x.current.Load()
	if s == nil {
		return nil, errors.NewCacheError("search", errors.ErrIndexNotInitialized).AsPrecondition()
	}

	allow := allowedTypes(opts.Types)
	keep := func(e *entity) bool {
		return allow[e.typ] && passes(e, opts.Filters)
	}

	var out []Result
	if pattern := patternRunes(opts.Query); len(pattern) == 0 {
		for _, e := range s.entities {
			if keep(e) {
				out = append(out, e.result())
			}
		}
	} else {
		out = x.rank(s.entities, pattern, keep)
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if out == nil {
		out = []Result{}
	}
	return out, nil
}

// rank scores every entity and returns matching ones best first. Equal
// scores keep index order.
func (x *Index) rank(entities []*entity, pattern []rune, keep func(*entity) bool) []Result {
	slab := slabPool.Get().(*util.Slab)
	defer slabPool.Put(slab)

	idPatterns := x.idPatterns(pattern)

	var out []Result
	for _, e := range entities {
		score, matches := scoreEntity(e, pattern, idPatterns, slab)
		if score <= 0 || !keep(e) {
			continue
		}
		r := e.result()
		r.Score = &score
		r.Matches = matches
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b Result) int {
		switch {
		case *a.Score > *b.Score:
			return -1
		case *a.Score < *b.Score:
			return 1
		}
		return 0
	})
	return out
}

// idPatterns returns the patterns tried against id fields: the query
// itself plus, when it reads as a task id, its other spellings. A query
// of "task-012" thereby finds "task-12".
func (x *Index) idPatterns(pattern []rune) [][]rune {
	out := [][]rune{pattern}
	q := string(pattern)
	if strings.ContainsAny(q, " \t") {
		return out
	}
	for _, v := range model.IDVariants(q, x.opts.taskPrefix) {
		if v != q {
			out = append(out, []rune(v))
		}
	}
	return out
}

// scoreEntity sums the weighted best match of each field.
func scoreEntity(e *entity, pattern []rune, idPatterns [][]rune, slab *util.Slab) (float64, []Match) {
	var total float64
	var matches []Match
	for _, f := range e.fields {
		patterns := [][]rune{pattern}
		if f.key == KeyID || f.key == KeyDependencies {
			patterns = idPatterns
		}

		var best fuzzyResult
		var bestValue string
		for _, v := range f.values {
			for _, p := range patterns {
				if r := fuzzyMatch(v, p, slab); r.score > best.score {
					best, bestValue = r, v
				}
			}
		}
		if best.score == 0 {
			continue
		}
		total += fieldWeights[f.key] * float64(best.score)
		matches = append(matches, Match{Key: f.key, Indices: toRanges(best.positions), Value: bestValue})
	}
	return total, matches
}

func allowedTypes(types []model.EntityType) map[model.EntityType]bool {
	if len(types) == 0 {
		types = model.AllEntityTypes()
	}
	allow := make(map[model.EntityType]bool, len(types))
	for _, t := range types {
		allow[model.EntityType(strings.ToLower(string(t)))] = true
	}
	return allow
}

// passes applies task filters. Any active filter excludes non-task
// entities, and a priority filter excludes tasks without a priority.
func passes(e *entity, f Filters) bool {
	if !f.active() {
		return true
	}
	if e.typ != model.EntityTask {
		return false
	}
	if len(f.Status) > 0 && !containsFold(f.Status, e.status) {
		return false
	}
	if len(f.Priority) > 0 && (e.priority == "" || !containsFold(f.Priority, e.priority)) {
		return false
	}
	return true
}

func containsFold(values []string, s string) bool {
	s = strings.TrimSpace(s)
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), s)
	})
}
