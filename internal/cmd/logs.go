package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/backlog/internal/config"
	"github.com/Iron-Ham/backlog/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the backlog debug log",
	Long: `View and filter <backlog>/.cache/debug.log.

Examples:
  # Show the last 50 entries
  backlog logs

  # Only watcher activity for tasks
  backlog logs --component watch --kind tasks

  # Follow the log while another terminal runs 'backlog watch'
  backlog logs -f

  # Warnings and errors from the last hour
  backlog logs --level warn --since 1h

  # Search for specific patterns
  backlog logs --grep "failed|panicked"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsGrep      string
	logsComponent string
	logsKind      string
	logsNoColor   bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only entries from this component (contentcache, watch, searchindex, ...)")
	logsCmd.Flags().StringVar(&logsKind, "kind", "", "Only entries for this entity kind (tasks, documents, decisions)")
	logsCmd.Flags().BoolVar(&logsNoColor, "no-color", false, "Disable ANSI colors")
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Extra     map[string]any `json:"-"`
}

// UnmarshalJSON captures fields beyond the known ones in Extra.
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"time", "level", "msg", "component", "kind"} {
		delete(all, known)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logFilter holds the parsed filter flags.
type logFilter struct {
	minLevel  int
	since     time.Time
	grep      *regexp.Regexp
	component string
	kind      string
}

func (f logFilter) passes(e *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(e.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && e.Time.Before(f.since) {
		return false
	}
	if f.component != "" && e.Component != f.component {
		return false
	}
	if f.kind != "" && e.Kind != f.kind {
		return false
	}
	if f.grep != nil {
		text := e.Msg
		for _, v := range e.Extra {
			text += " " + fmt.Sprint(v)
		}
		if !f.grep.MatchString(text) {
			return false
		}
	}
	return true
}

func newLogFilter(now time.Time) (logFilter, error) {
	f := logFilter{minLevel: -1, component: logsComponent, kind: logsKind}
	if logsLevel != "" {
		f.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = now.Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// logFormatter renders entries for the terminal.
type logFormatter struct {
	p *palette
}

func (f logFormatter) format(e *logEntry) string {
	var sb strings.Builder
	sb.WriteString(f.p.muted.Render("[" + e.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	sb.WriteString(f.p.level(e.Level).Render("[" + strings.ToUpper(e.Level) + "]"))
	if e.Component != "" {
		source := e.Component
		if e.Kind != "" {
			source += "/" + e.Kind
		}
		sb.WriteString(" ")
		sb.WriteString(f.p.field.Render(source))
	}
	sb.WriteString(" ")
	sb.WriteString(e.Msg)

	for _, key := range slices.Sorted(maps.Keys(e.Extra)) {
		sb.WriteString(" ")
		sb.WriteString(f.p.field.Render(key + "="))
		sb.WriteString(fmt.Sprint(e.Extra[key]))
	}
	return sb.String()
}

// render parses one raw line. Lines that are not JSON pass through as-is.
func (f logFormatter) render(line string, filter logFilter) (string, bool) {
	var e logEntry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return line, true
	}
	if !filter.passes(&e) {
		return "", false
	}
	return f.format(&e), true
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	logPath := filepath.Join(cfg.Backlog.ResolveDir(cwd), logDirName, "debug.log")
	out := cmd.OutOrStdout()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No log found at %s\n", logPath)
		return nil
	}

	filter, err := newLogFilter(time.Now())
	if err != nil {
		return err
	}
	formatter := logFormatter{p: newPalette(out, !logsNoColor)}

	if logsFollow {
		return followLogs(cmd.Context(), out, logPath, formatter, filter)
	}
	return displayLogs(out, logPath, logsTail, formatter, filter)
}

// displayLogs prints the last tail matching entries.
func displayLogs(out io.Writer, logPath string, tail int, f logFormatter, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if s, ok := f.render(line, filter); ok {
			lines = append(lines, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

// followLogs prints entries appended after the call until ctx ends.
func followLogs(ctx context.Context, out io.Writer, logPath string, f logFormatter, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", logPath)

	reader := bufio.NewReader(file)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}

		line := strings.TrimSpace(partial)
		partial = ""
		if line == "" {
			continue
		}
		if s, ok := f.render(line, filter); ok {
			fmt.Fprintln(out, s)
		}
	}
}
