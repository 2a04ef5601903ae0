package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Iron-Ham/backlog/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// writeTaskRows prints one aligned row per task, each line starting with
// prefix.
func writeTaskRows(w io.Writer, prefix string, tasks []model.Task) error {
	tw := newTable(w)
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", prefix, t.ID, t.Status, orDash(string(t.Priority)), truncateTitle(t.Title))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
