package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/backlog/internal/filesystem"
	"github.com/Iron-Ham/backlog/internal/model"
)

// syncBuffer is a bytes.Buffer safe for the watch command, which writes
// from the cache's queue goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// resetCommands restores every flag to its default and drops contexts left
// over from earlier executions.
func resetCommands(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SetContext(nil)
	for _, sub := range c.Commands() {
		resetCommands(sub)
	}
}

// executeCommandContext runs the root command with fresh global state and
// returns captured output.
func executeCommandContext(ctx context.Context, out *syncBuffer, args ...string) error {
	viper.Reset()
	bindGlobalFlags()
	resetCommands(rootCmd)

	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func executeCommand(args ...string) (string, error) {
	var out syncBuffer
	err := executeCommandContext(context.Background(), &out, args...)
	return out.String(), err
}

// setupBacklog isolates the user config, creates a backlog in a temp
// directory and returns its path.
func setupBacklog(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	dir := filepath.Join(t.TempDir(), "backlog")
	if out, err := executeCommand("init", "--dir", dir); err != nil {
		t.Fatalf("init failed: %v\nOutput: %s", err, out)
	}
	return dir
}

// seedTasks writes task-1 <- task-2 and a loose task-3.
func seedTasks(t *testing.T, dir string) *filesystem.Store {
	t.Helper()
	store := filesystem.NewStore(dir)
	tasks := []model.Task{
		{ID: "task-1", Title: "Set up CI", Status: "Done", Priority: "high"},
		{ID: "task-2", Title: "Write parser", Status: "In Progress", Dependencies: []string{"task-1"}, Assignee: []string{"@alice"}},
		{ID: "task-3", Title: "Document flags", Status: "To Do"},
	}
	for _, task := range tasks {
		if _, err := store.SaveTask(context.Background(), task); err != nil {
			t.Fatalf("SaveTask(%s) error = %v", task.ID, err)
		}
	}
	return store
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "backlog" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "backlog")
	}

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "tasks", "search", "sequences", "watch", "logs", "config"} {
		if !slices.Contains(names, want) {
			t.Errorf("expected subcommand %q not found in %v", want, names)
		}
	}
}

func TestInitCommand(t *testing.T) {
	dir := setupBacklog(t)

	for _, sub := range []string{filesystem.TasksDirName, filesystem.DocsDirName, filesystem.DecisionsDirName, filesystem.MilestonesDirName} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("%s was not created: %v", sub, err)
		}
	}

	// Running again leaves the structure alone.
	if out, err := executeCommand("init", "--dir", dir); err != nil {
		t.Fatalf("second init failed: %v\nOutput: %s", err, out)
	}
}

func TestTasksCommand(t *testing.T) {
	dir := setupBacklog(t)

	out, err := executeCommand("tasks", "--dir", dir)
	if err != nil {
		t.Fatalf("tasks failed: %v", err)
	}
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("empty backlog output = %q", out)
	}

	seedTasks(t, dir)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", nil, []string{"task-1", "task-2", "task-3"}, nil},
		{"status", []string{"--status", "done"}, []string{"task-1"}, []string{"task-2", "task-3"}},
		{"assignee", []string{"-a", "@alice"}, []string{"task-2"}, []string{"task-1", "task-3"}},
		{"json", []string{"--json", "-s", "in progress"}, []string{`"id": "task-2"`}, []string{`"id": "task-1"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(append([]string{"tasks", "--dir", dir}, tt.args...)...)
			if err != nil {
				t.Fatalf("tasks failed: %v\nOutput: %s", err, out)
			}
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestSearchCommand(t *testing.T) {
	dir := setupBacklog(t)
	seedTasks(t, dir)

	out, err := executeCommand("search", "parser", "--dir", dir, "--type", "task")
	if err != nil {
		t.Fatalf("search failed: %v\nOutput: %s", err, out)
	}
	if !strings.Contains(out, "task-2") || strings.Contains(out, "task-3") {
		t.Errorf("search parser output:\n%s", out)
	}

	out, err = executeCommand("search", "--dir", dir, "--status", "done", "--json")
	if err != nil {
		t.Fatalf("filtered search failed: %v", err)
	}
	if !strings.Contains(out, `"task-1"`) || strings.Contains(out, `"task-2"`) {
		t.Errorf("status filtered output:\n%s", out)
	}

	if _, err := executeCommand("search", "x", "--dir", dir, "--type", "epic"); err == nil {
		t.Error("unknown --type should fail")
	}
}

func TestSequencesCommand(t *testing.T) {
	dir := setupBacklog(t)
	seedTasks(t, dir)

	out, err := executeCommand("sequences", "--dir", dir)
	if err != nil {
		t.Fatalf("sequences failed: %v\nOutput: %s", err, out)
	}
	seq1 := strings.Index(out, "Sequence 1")
	seq2 := strings.Index(out, "Sequence 2")
	loose := strings.Index(out, "Unsequenced")
	if seq1 < 0 || seq2 < 0 || loose < 0 {
		t.Fatalf("missing sections:\n%s", out)
	}
	if i := strings.Index(out, "task-1"); i < seq1 || i > seq2 {
		t.Errorf("task-1 not in sequence 1:\n%s", out)
	}
	if i := strings.Index(out, "task-3"); i < loose {
		t.Errorf("task-3 not unsequenced:\n%s", out)
	}
}

func TestSequencesPlanCommand(t *testing.T) {
	dir := setupBacklog(t)
	store := seedTasks(t, dir)

	out, err := executeCommand("sequences", "plan", "task-3", "2", "--dir", dir)
	if err != nil {
		t.Fatalf("plan failed: %v\nOutput: %s", err, out)
	}
	if !strings.Contains(out, "task-3 dependencies: task-1") {
		t.Errorf("plan output = %q", out)
	}
	task, err := store.LoadTask(context.Background(), "task-3")
	if err != nil || task == nil {
		t.Fatalf("LoadTask() = %v, %v", task, err)
	}
	if len(task.Dependencies) != 0 {
		t.Errorf("plan without --apply wrote dependencies %v", task.Dependencies)
	}

	if out, err := executeCommand("sequences", "plan", "task-3", "2", "--apply", "--dir", dir); err != nil {
		t.Fatalf("plan --apply failed: %v\nOutput: %s", err, out)
	}
	task, err = store.LoadTask(context.Background(), "task-3")
	if err != nil || task == nil {
		t.Fatalf("LoadTask() = %v, %v", task, err)
	}
	if !slices.Equal(task.Dependencies, []string{"task-1"}) {
		t.Errorf("applied dependencies = %v, want [task-1]", task.Dependencies)
	}

	errCases := [][]string{
		{"sequences", "plan", "task-9", "1"},
		{"sequences", "plan", "task-1", "9"},
		{"sequences", "plan", "task-1", "later"},
		{"sequences", "plan", "task-1", "unsequenced"},
	}
	for _, args := range errCases {
		if _, err := executeCommand(append(args, "--dir", dir)...); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
}

func TestWatchCommand(t *testing.T) {
	dir := setupBacklog(t)
	store := seedTasks(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- executeCommandContext(ctx, &out, "watch", "--dir", dir)
	}()

	waitForOutput(t, &out, "content.ready: 3 tasks")

	if _, err := store.SaveTask(context.Background(), model.Task{ID: "task-4", Title: "Ship it", Status: "To Do"}); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}
	waitForOutput(t, &out, "content.tasks: 4 tasks")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, out.String())
}

func TestConfigCommands(t *testing.T) {
	dir := setupBacklog(t)

	out, err := executeCommand("config", "show", "--dir", dir)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "debounce_ms: 50") || !strings.Contains(out, "(none - using defaults)") {
		t.Errorf("default config output:\n%s", out)
	}

	if out, err := executeCommand("config", "set", "watch.debounce_ms", "100", "--dir", dir); err != nil {
		t.Fatalf("config set failed: %v\nOutput: %s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("project config not written: %v", err)
	}

	out, err = executeCommand("config", "--dir", dir)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, "debounce_ms: 100") {
		t.Errorf("config after set:\n%s", out)
	}

	if _, err := executeCommand("config", "set", "watch.debounce_ms", "99999", "--dir", dir); err == nil {
		t.Error("out of range value should fail")
	}
	if _, err := executeCommand("config", "set", "tui.theme", "dark", "--dir", dir); err == nil {
		t.Error("unknown key should fail")
	}
	if _, err := executeCommand("config", "init", "--dir", dir); err == nil {
		t.Error("config init should refuse to overwrite an existing file")
	}
}

func TestLogsCommand(t *testing.T) {
	dir := setupBacklog(t)

	lines := strings.Join([]string{
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"watcher armed","component":"watch","kind":"tasks","root":"/b/tasks"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"failed to load milestones","component":"searchindex","error":"boom"}`,
		`not json at all`,
	}, "\n") + "\n"
	logDir := filepath.Join(dir, logDirName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(logDir, "debug.log"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", nil, []string{"watcher armed", "watch/tasks", "root=/b/tasks", "failed to load milestones", "not json at all"}, nil},
		{"level", []string{"--level", "warn"}, []string{"failed to load milestones"}, []string{"watcher armed"}},
		{"component", []string{"--component", "watch"}, []string{"watcher armed"}, []string{"milestones"}},
		{"grep extra", []string{"--grep", "boom"}, []string{"failed to load milestones"}, []string{"watcher armed"}},
		{"tail", []string{"-n", "1"}, []string{"not json at all"}, []string{"watcher armed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"logs", "--no-color", "--dir", dir}, tt.args...)
			out, err := executeCommand(args...)
			if err != nil {
				t.Fatalf("logs failed: %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q:\n%s", s, out)
				}
			}
		})
	}

	if _, err := executeCommand("logs", "--dir", dir, "--since", "soon"); err == nil {
		t.Error("invalid --since should fail")
	}
}
