package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/backlog/internal/model"
	"github.com/Iron-Ham/backlog/internal/searchindex"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Fuzzy search tasks, documents, decisions and milestones",
	Long: `Fuzzy search across titles, bodies and ids. Without a query, every
entity passing the filters is listed.

Examples:
  backlog search parser
  backlog search 12 --type task
  backlog search --status "in progress" --priority high`,
	RunE: runSearch,
}

var (
	searchTypes    []string
	searchStatus   []string
	searchPriority []string
	searchLimit    int
	searchJSON     bool
	searchNoColor  bool
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "Entity types: task, document, decision, milestone")
	searchCmd.Flags().StringSliceVar(&searchStatus, "status", nil, "Task status filter (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchPriority, "priority", nil, "Task priority filter (repeatable)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (default from search.default_limit)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print JSON")
	searchCmd.Flags().BoolVar(&searchNoColor, "no-color", false, "Disable match highlighting")
}

func parseEntityTypes(values []string) ([]model.EntityType, error) {
	valid := model.AllEntityTypes()
	var out []model.EntityType
	for _, v := range values {
		t := model.EntityType(strings.ToLower(strings.TrimSpace(v)))
		if !slices.Contains(valid, t) {
			return nil, fmt.Errorf("unknown type %q (want task, document, decision or milestone)", v)
		}
		out = append(out, t)
	}
	return out, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	types, err := parseEntityTypes(searchTypes)
	if err != nil {
		return err
	}

	env, err := openBacklog()
	if err != nil {
		return err
	}
	defer env.close()

	cache := env.newCache(false)
	defer cache.Dispose()
	index := env.newIndex(cache)
	defer index.Dispose()
	if err := index.EnsureInitialized(cmd.Context()); err != nil {
		return fmt.Errorf("failed to build search index: %w", err)
	}

	limit := searchLimit
	if limit <= 0 {
		limit = env.cfg.Search.DefaultLimit
	}
	results, err := index.Search(searchindex.SearchOptions{
		Query: strings.Join(args, " "),
		Limit: limit,
		Types: types,
		Filters: searchindex.Filters{
			Status:   searchStatus,
			Priority: searchPriority,
		},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		return printJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	p := newPalette(out, !searchNoColor)
	tw := newTable(out)
	for _, r := range results {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.1f", *r.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Type, r.ID(), score, truncateTitle(p.highlight(r.Title(), titleRanges(r))))
	}
	return tw.Flush()
}

// titleRanges returns the matched spans of the result's title, if the
// title was among the matched fields.
func titleRanges(r searchindex.Result) [][2]int {
	for _, m := range r.Matches {
		if m.Key == searchindex.KeyTitle && m.Value == r.Title() {
			return m.Indices
		}
	}
	return nil
}
