package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/backlog/internal/event"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print backlog changes as they happen",
	Long: `Load the backlog, then print one line per change until interrupted.
Each line carries the content version and collection sizes after the change.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchJSON bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print one JSON object per line")
}

// changeLine is the printed form of a content event.
type changeLine struct {
	Event     string `json:"event"`
	Version   uint64 `json:"version"`
	Tasks     int    `json:"tasks"`
	Documents int    `json:"documents"`
	Decisions int    `json:"decisions"`
}

func newChangeLine(e event.ContentEvent) changeLine {
	snap := e.ContentSnapshot()
	return changeLine{
		Event:     e.EventType(),
		Version:   e.ContentVersion(),
		Tasks:     len(snap.Tasks),
		Documents: len(snap.Documents),
		Decisions: len(snap.Decisions),
	}
}

// changePrinter serializes event output; events arrive on the cache's
// queue goroutine.
type changePrinter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func (p *changePrinter) print(e event.Event) {
	ce, ok := e.(event.ContentEvent)
	if !ok {
		return
	}
	line := newChangeLine(ce)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = json.NewEncoder(p.w).Encode(line)
		return
	}
	fmt.Fprintf(p.w, "v%d %s: %d tasks, %d documents, %d decisions\n",
		line.Version, line.Event, line.Tasks, line.Documents, line.Decisions)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openBacklog()
	if err != nil {
		return err
	}
	defer env.close()

	cache := env.newCache(true)
	defer cache.Dispose()
	if _, err := cache.EnsureInitialized(ctx); err != nil {
		return fmt.Errorf("failed to load backlog: %w", err)
	}

	printer := &changePrinter{w: cmd.OutOrStdout(), json: watchJSON}
	unsubscribe := cache.Subscribe(printer.print)
	defer unsubscribe()

	env.logger.Info("watching backlog", "dir", env.dir)
	<-ctx.Done()
	return nil
}
