package searchindex

import (
	"context"
	"reflect"
	"testing"

	"github.com/junegunn/fzf/src/util"

	"github.com/Iron-Ham/backlog/internal/contentcache"
	"github.com/Iron-Ham/backlog/internal/filesystem"
	"github.com/Iron-Ham/backlog/internal/model"
)

func TestSearch_BlankQuery(t *testing.T) {
	x, _ := newTestIndex(t)
	all := []string{"task-1", "task-2", "task-12", "doc-1", "decision-1", "m-1"}

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"everything in index order", SearchOptions{}, all},
		{"whitespace counts as blank", SearchOptions{Query: "   \t"}, all},
		{"limit truncates", SearchOptions{Limit: 4}, all[:4]},
		{"limit above size", SearchOptions{Limit: 100}, all},
		{"types restrict", SearchOptions{Types: []model.EntityType{model.EntityDecision, model.EntityMilestone}}, []string{"decision-1", "m-1"}},
		{"documents only", SearchOptions{Types: []model.EntityType{model.EntityDocument}}, []string{"doc-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := mustSearch(t, x, tt.opts)
			if got := resultIDs(results); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
			for _, r := range results {
				if r.Score != nil || r.Matches != nil {
					t.Errorf("%s: blank query should carry no score or matches", r.ID())
				}
			}
		})
	}
}

func TestSearch_ResultTypes(t *testing.T) {
	x, _ := newTestIndex(t)
	for _, r := range mustSearch(t, x, SearchOptions{}) {
		var set int
		for _, p := range []bool{r.Task != nil, r.Document != nil, r.Decision != nil, r.Milestone != nil} {
			if p {
				set++
			}
		}
		if set != 1 {
			t.Errorf("%s: %d entity pointers set, want 1", r.ID(), set)
		}
		if r.Type == model.EntityTask && r.Task == nil {
			t.Errorf("%s: task result without task", r.ID())
		}
	}
}

func TestSearch_IDSpellings(t *testing.T) {
	x, _ := newTestIndex(t)

	for _, q := range []string{"12", "task-12", "TASK-12", "task-012"} {
		t.Run(q, func(t *testing.T) {
			results := mustSearch(t, x, SearchOptions{Query: q})
			if len(results) == 0 || results[0].ID() != "task-12" {
				t.Fatalf("Search(%q) = %v, want task-12 first", q, resultIDs(results))
			}
			var idMatch bool
			for _, m := range results[0].Matches {
				if m.Key == KeyID {
					idMatch = true
				}
			}
			if !idMatch {
				t.Errorf("Search(%q) should report an id match", q)
			}
		})
	}
}

func TestSearch_DependencySpellings(t *testing.T) {
	x, _ := newTestIndex(t)
	results := mustSearch(t, x, SearchOptions{Query: "task-1"})

	for _, r := range results {
		if r.ID() != "task-2" {
			continue
		}
		for _, m := range r.Matches {
			if m.Key == KeyDependencies && m.Value == "task-1" {
				return
			}
		}
		t.Fatalf("task-2 matches = %+v, want a dependencies match on task-1", r.Matches)
	}
	t.Fatalf("task-2 not found via its dependency; got %v", resultIDs(results))
}

func TestSearch_Ranking(t *testing.T) {
	x, _ := newTestIndex(t)
	results := mustSearch(t, x, SearchOptions{Query: "parser"})
	if len(results) == 0 || results[0].ID() != "task-2" {
		t.Fatalf("results = %v, want task-2 first", resultIDs(results))
	}

	top := results[0]
	if top.Score == nil || *top.Score <= 0 {
		t.Fatalf("score = %v, want positive", top.Score)
	}
	var title *Match
	for i := range top.Matches {
		if top.Matches[i].Key == KeyTitle {
			title = &top.Matches[i]
		}
	}
	if title == nil {
		t.Fatal("expected a title match")
	}
	if title.Value != "Write parser" || !reflect.DeepEqual(title.Indices, [][2]int{{6, 11}}) {
		t.Errorf("title match = %+v, want [6,11] in %q", *title, "Write parser")
	}

	for i := 1; i < len(results); i++ {
		if *results[i].Score > *results[i-1].Score {
			t.Errorf("results not sorted by score at %d", i)
		}
	}
}

func TestSearch_NoMatch(t *testing.T) {
	x, _ := newTestIndex(t)
	results := mustSearch(t, x, SearchOptions{Query: "zzqxj"})
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty non-nil", results)
	}
}

func TestSearch_Filters(t *testing.T) {
	x, _ := newTestIndex(t)

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"status ignores case", SearchOptions{Filters: Filters{Status: []string{"DONE"}}}, []string{"task-1", "task-12"}},
		{"status alternatives", SearchOptions{Filters: Filters{Status: []string{"done", "in progress"}}}, []string{"task-1", "task-2", "task-12"}},
		{"status and priority", SearchOptions{Filters: Filters{Status: []string{"Done"}, Priority: []string{"high"}}}, []string{"task-1"}},
		{"priority skips unset", SearchOptions{Filters: Filters{Priority: []string{"HIGH", "medium"}}}, []string{"task-1", "task-2"}},
		{"no task satisfies both", SearchOptions{Filters: Filters{Status: []string{"In Progress"}, Priority: []string{"high"}}}, []string{}},
		{"filter with query", SearchOptions{Query: "fuzzy", Filters: Filters{Status: []string{"done"}}}, []string{"task-12"}},
		{"filter with non-task types", SearchOptions{Types: []model.EntityType{model.EntityDocument}, Filters: Filters{Status: []string{"done"}}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resultIDs(mustSearch(t, x, tt.opts))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearch_ResultsAreCopies(t *testing.T) {
	x, _ := newTestIndex(t)
	first := mustSearch(t, x, SearchOptions{Types: []model.EntityType{model.EntityTask}})
	first[1].Task.Dependencies[0] = "mutated"
	first[1].Task.Title = "mutated"

	again := mustSearch(t, x, SearchOptions{Types: []model.EntityType{model.EntityTask}})
	if again[1].Task.Title != "Write parser" || again[1].Task.Dependencies[0] != "task-1" {
		t.Errorf("index shares memory with results: %+v", again[1].Task)
	}
}

func TestToRanges(t *testing.T) {
	tests := []struct {
		in   []int
		want [][2]int
	}{
		{nil, nil},
		{[]int{3}, [][2]int{{3, 3}}},
		{[]int{0, 1, 2, 5, 6, 9}, [][2]int{{0, 2}, {5, 6}, {9, 9}}},
	}
	for _, tt := range tests {
		if got := toRanges(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("toRanges(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIndex_OverContentCache(t *testing.T) {
	ctx := context.Background()
	store := filesystem.NewStore(t.TempDir())
	if err := store.EnsureBacklogStructure(ctx); err != nil {
		t.Fatalf("EnsureBacklogStructure() error = %v", err)
	}
	for _, task := range fixture().Tasks {
		if _, err := store.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask() error = %v", err)
		}
	}
	if _, err := store.SaveMilestone(ctx, fixtureMilestones()[0]); err != nil {
		t.Fatalf("SaveMilestone() error = %v", err)
	}

	cache := contentcache.New(store, contentcache.WithWatch(false))
	defer cache.Dispose()
	x := New(cache, store, WithTaskPrefix(store.TaskPrefix()))
	defer x.Dispose()
	if err := x.EnsureInitialized(ctx); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}

	if got := resultIDs(mustSearch(t, x, SearchOptions{Query: "12"})); len(got) == 0 || got[0] != "task-12" {
		t.Errorf("Search(12) = %v, want task-12 first", got)
	}
	if got := resultIDs(mustSearch(t, x, SearchOptions{Types: []model.EntityType{model.EntityMilestone}})); !reflect.DeepEqual(got, []string{"m-1"}) {
		t.Errorf("milestones = %v, want [m-1]", got)
	}

	if _, err := store.SaveTask(ctx, model.Task{ID: "task-3", Title: "Ship watcher", Status: "To Do"}); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !containsID(mustSearch(t, x, SearchOptions{Query: "watcher"}), "task-3") {
		t.Error("index did not rebuild after cache refresh")
	}
	if v, _ := x.Version(); v != cache.Version() {
		t.Errorf("index version %d, cache version %d", v, cache.Version())
	}
}

func TestFuzzyMatch_IgnoresCase(t *testing.T) {
	slab := slabPool.Get().(*util.Slab)
	defer slabPool.Put(slab)

	tests := []struct {
		text  string
		query string
		want  [][2]int
	}{
		{"Fuzzy search", "fuzzy", [][2]int{{0, 4}}},
		{"fuzzy search", "FUZZY", [][2]int{{0, 4}}},
		{"Rotate credentials", "rotate", [][2]int{{0, 5}}},
		{"Ship watcher", "ship watcher", [][2]int{{0, 11}}},
		{"Write Parser", "parser", [][2]int{{6, 11}}},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.query, func(t *testing.T) {
			res := fuzzyMatch(tt.text, patternRunes(tt.query), slab)
			if res.score <= 0 {
				t.Fatalf("score = %d, want positive", res.score)
			}
			if got := toRanges(res.positions); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ranges = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearch_CapitalizedTitles(t *testing.T) {
	x, _ := newTestIndex(t)
	for _, q := range []string{"fuzzy", "architecture", "first release", "yaml"} {
		if len(mustSearch(t, x, SearchOptions{Query: q})) == 0 {
			t.Errorf("Search(%q) found nothing", q)
		}
	}
	results := mustSearch(t, x, SearchOptions{Query: "fuzzy"})
	if results[0].ID() != "task-12" {
		t.Errorf("Search(fuzzy) = %v, want task-12 first", resultIDs(results))
	}
}

func TestBuildEntities_TaskFields(t *testing.T) {
	snap := model.Snapshot{Tasks: []model.Task{{
		ID: "task-4", Title: "Tag", Body: "Body", Dependencies: []string{"task-1"},
		Labels: []string{"zebra"}, Assignee: []string{"@alice"}, Milestone: "m-1",
	}}}
	entities := buildEntities(snap, nil, model.DefaultTaskPrefix)
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
	var keys []string
	for _, f := range entities[0].fields {
		keys = append(keys, f.key)
	}
	if want := []string{KeyTitle, KeyBody, KeyID, KeyDependencies}; !reflect.DeepEqual(keys, want) {
		t.Errorf("indexed fields = %v, want %v", keys, want)
	}
}
