package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/backlog/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify backlog configuration",
	Long: `View or modify backlog configuration.

Without arguments, displays the effective configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the backlog's config file",
	Long: `Set a configuration value in <backlog>/config.yaml (or the user
config file with --global). Values are parsed as YAML, so lists are
written as [a, b].

Keys use dot notation, e.g.:
  backlog config set watch.debounce_ms 100
  backlog config set watch.ignore '["*.tmp", "*~"]'
  backlog config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default values",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file paths",
	RunE:  runConfigPath,
}

var configGlobal bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configCmd.PersistentFlags().BoolVar(&configGlobal, "global", false, "Use the user config file instead of the backlog's")
}

// configKeys lists every key config set accepts.
var configKeys = []string{
	"backlog.task_prefix",
	"watch.enabled",
	"watch.debounce_ms",
	"watch.ignore",
	"watch.force_tree",
	"watch.resync_policy",
	"search.default_limit",
	"logging.enabled",
	"logging.level",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// targetConfigFile is the file config set and config init write to.
func targetConfigFile() (string, error) {
	if configGlobal {
		return config.ConfigFile(), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	b := config.BacklogConfig{Dir: viper.GetString("backlog.dir")}
	return config.ProjectConfigFile(b.ResolveDir(cwd)), nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if !slices.Contains(configKeys, key) {
		return fmt.Errorf("unknown configuration key: %s\nvalid keys: %s", key, strings.Join(configKeys, ", "))
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	path, err := targetConfigFile()
	if err != nil {
		return err
	}
	doc, err := readConfigDoc(path)
	if err != nil {
		return err
	}
	setNested(doc, strings.Split(key, "."), value)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	// The file on its own, over defaults, must still be a valid config.
	check := config.Default()
	if err := yaml.Unmarshal(data, check); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if errs := check.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\nConfig saved to %s\n", key, value, path)
	return nil
}

// readConfigDoc parses a config file into a generic document. A missing
// file reads as empty.
func readConfigDoc(path string) (map[string]any, error) {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func setNested(doc map[string]any, parts []string, value any) {
	for _, part := range parts[:len(parts)-1] {
		next, ok := doc[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			doc[part] = next
		}
		doc = next
	}
	doc[parts[len(parts)-1]] = value
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := targetConfigFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'backlog config set' to modify values", path)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	content := "# backlog configuration\n# Environment overrides: BACKLOG_<SECTION>_<KEY>, e.g. BACKLOG_WATCH_DEBOUNCE_MS\n" + string(data)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintln(out, "Active config: (none - using defaults)")
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(projectConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_WATCH_DEBOUNCE_MS)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
