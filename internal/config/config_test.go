package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Backlog.Dir != "backlog" {
		t.Errorf("Backlog.Dir = %q, want %q", cfg.Backlog.Dir, "backlog")
	}
	if cfg.Backlog.TaskPrefix != "task" {
		t.Errorf("Backlog.TaskPrefix = %q, want %q", cfg.Backlog.TaskPrefix, "task")
	}

	if !cfg.Watch.Enabled {
		t.Error("Watch.Enabled should be true by default")
	}
	if cfg.Watch.DebounceMs != 50 {
		t.Errorf("Watch.DebounceMs = %d, want 50", cfg.Watch.DebounceMs)
	}
	if cfg.Watch.ForceTree {
		t.Error("Watch.ForceTree should be false by default")
	}
	if cfg.Watch.ResyncPolicy != "best_effort" {
		t.Errorf("Watch.ResyncPolicy = %q, want best_effort", cfg.Watch.ResyncPolicy)
	}
	if len(cfg.Watch.Ignore) == 0 {
		t.Error("Watch.Ignore should carry editor noise patterns by default")
	}

	if cfg.Search.DefaultLimit != 50 {
		t.Errorf("Search.DefaultLimit = %d, want 50", cfg.Search.DefaultLimit)
	}

	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestWatchConfig_Debounce(t *testing.T) {
	tests := []struct {
		ms       int
		expected time.Duration
	}{
		{50, 50 * time.Millisecond},
		{1000, time.Second},
		{0, 0},
	}

	for _, tt := range tests {
		cfg := WatchConfig{DebounceMs: tt.ms}
		if got := cfg.Debounce(); got != tt.expected {
			t.Errorf("Debounce() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
	}
}

func TestBacklogConfig_ResolveDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	base := filepath.FromSlash("/work/project")

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"default when empty", "", filepath.Join(base, "backlog")},
		{"relative", "docs/backlog", filepath.Join(base, "docs", "backlog")},
		{"absolute", filepath.FromSlash("/srv/backlog"), filepath.FromSlash("/srv/backlog")},
		{"home", "~", home},
		{"under home", "~/notes/backlog", filepath.Join(home, "notes", "backlog")},
		{"cleaned", "./backlog/../backlog", filepath.Join(base, "backlog")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BacklogConfig{Dir: tt.dir}
			if got := b.ResolveDir(base); got != tt.want {
				t.Errorf("ResolveDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), filepath.Join("/custom/config", "backlog"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		if got, want := ConfigDir(), filepath.Join(home, ".config", "backlog"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigFile(), filepath.Join("/custom/config", "backlog", "config.yaml"); got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
	if got, want := ProjectConfigFile("/p/backlog"), filepath.Join("/p/backlog", "config.yaml"); got != want {
		t.Errorf("ProjectConfigFile() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Get() with only defaults = %+v, want %+v", cfg, Default())
	}
}

func TestLoad_FromFileAndEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backlog:\n  task_prefix: issue\nwatch:\n  debounce_ms: 200\n  ignore: [\"*.bak\"]\nsearch:\n  default_limit: 10\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	t.Setenv("BACKLOG_LOGGING_LEVEL", "debug")
	viper.SetEnvPrefix("BACKLOG")
	viper.SetEnvKeyReplacer(EnvKeyReplacer())
	viper.AutomaticEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backlog.TaskPrefix != "issue" {
		t.Errorf("TaskPrefix = %q, want issue", cfg.Backlog.TaskPrefix)
	}
	if cfg.Backlog.Dir != "backlog" {
		t.Errorf("Dir = %q, want default", cfg.Backlog.Dir)
	}
	if cfg.Watch.Debounce() != 200*time.Millisecond {
		t.Errorf("Debounce() = %v, want 200ms", cfg.Watch.Debounce())
	}
	if !reflect.DeepEqual(cfg.Watch.Ignore, []string{"*.bak"}) {
		t.Errorf("Ignore = %v, want [*.bak]", cfg.Watch.Ignore)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("DefaultLimit = %d, want 10", cfg.Search.DefaultLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from env", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("search.default_limit", 0)

	_, err := Load()
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Load() error = %v (%T), want ValidationErrors", err, err)
	}
	if len(errs) != 1 || errs[0].Field != "search.default_limit" {
		t.Errorf("errors = %v", errs)
	}
	if cfg := Get(); cfg.Search.DefaultLimit != 50 {
		t.Error("Get() should fall back to defaults when invalid")
	}
}
