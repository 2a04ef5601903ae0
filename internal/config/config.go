package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete backlog configuration
type Config struct {
	Backlog BacklogConfig `mapstructure:"backlog" yaml:"backlog"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// BacklogConfig locates the backlog on disk
type BacklogConfig struct {
	// Dir is the backlog root (default: "backlog").
	// Relative paths resolve against the working directory; ~ expands to the
	// home directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// TaskPrefix is the prefix of task ids and file names (default: "task")
	TaskPrefix string `mapstructure:"task_prefix" yaml:"task_prefix"`
}

// WatchConfig controls the content cache's file watchers
type WatchConfig struct {
	// Enabled arms file watchers after the initial load (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DebounceMs coalesces notifications for one path within this window,
	// in milliseconds (default: 50, 0 = no debounce)
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	// Ignore lists glob patterns matched against file base names. Matching
	// paths never reach the cache.
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// ForceTree uses per-directory watches even where the platform offers
	// native recursive watching (default: false)
	ForceTree bool `mapstructure:"force_tree" yaml:"force_tree"`
	// ResyncPolicy decides what a failed re-read does: "best_effort" waits
	// for the next notification, "strict" logs it as a queue failure
	// (default: "best_effort")
	ResyncPolicy string `mapstructure:"resync_policy" yaml:"resync_policy"`
}

// SearchConfig controls search defaults
type SearchConfig struct {
	// DefaultLimit caps results when a query does not set a limit (default: 50)
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes a debug log under <backlog>/.cache (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Backlog: BacklogConfig{
			Dir:        "backlog",
			TaskPrefix: "task",
		},
		Watch: WatchConfig{
			Enabled:      true,
			DebounceMs:   50,
			Ignore:       []string{"*.swp", "*~", ".#*", "*.tmp"},
			ForceTree:    false,
			ResyncPolicy: "best_effort",
		},
		Search: SearchConfig{
			DefaultLimit: 50,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// Debounce returns the debounce window as a time.Duration
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// ResolveDir returns the absolute backlog root.
// If Dir starts with ~, it expands to the user's home directory.
// If Dir is relative, it's resolved relative to baseDir.
func (b *BacklogConfig) ResolveDir(baseDir string) string {
	path := b.Dir
	if path == "" {
		path = "backlog"
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Backlog defaults
	viper.SetDefault("backlog.dir", defaults.Backlog.Dir)
	viper.SetDefault("backlog.task_prefix", defaults.Backlog.TaskPrefix)

	// Watch defaults
	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	viper.SetDefault("watch.ignore", defaults.Watch.Ignore)
	viper.SetDefault("watch.force_tree", defaults.Watch.ForceTree)
	viper.SetDefault("watch.resync_policy", defaults.Watch.ResyncPolicy)

	// Search defaults
	viper.SetDefault("search.default_limit", defaults.Search.DefaultLimit)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// the loaded one is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// EnvPrefix prefixes environment overrides: BACKLOG_WATCH_DEBOUNCE_MS
// sets watch.debounce_ms.
const EnvPrefix = "BACKLOG"

// EnvKeyReplacer maps nested keys to environment variable names.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "backlog")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".backlog"
	}
	return filepath.Join(home, ".config", "backlog")
}

// ConfigFile returns the path to the user config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ProjectConfigFile returns the path of the per-backlog config file, which
// takes precedence over the user config file.
func ProjectConfigFile(backlogDir string) string {
	return filepath.Join(backlogDir, "config.yaml")
}
