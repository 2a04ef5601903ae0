package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/backlog/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Query and watch a markdown task backlog",
	Long: `backlog reads a directory of markdown tasks, documents and decisions,
keeps a live in-memory view of it and answers queries over that view:
filtered task lists, fuzzy search and dependency sequences.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is <backlog>/config.yaml, then $HOME/.config/backlog/config.yaml)")
	rootCmd.PersistentFlags().StringP("dir", "d", "", "backlog directory (default \"backlog\")")
	bindGlobalFlags()
}

// bindGlobalFlags routes the global flags through viper so they override
// config files and the environment.
func bindGlobalFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("backlog.dir", rootCmd.PersistentFlags().Lookup("dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// BACKLOG_WATCH_DEBOUNCE_MS for watch.debounce_ms
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(projectConfigDir())
		viper.AddConfigPath(config.ConfigDir())
	}

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// projectConfigDir is the backlog directory as known before any config
// file has been read: flag, environment or default.
func projectConfigDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	b := config.BacklogConfig{Dir: viper.GetString("backlog.dir")}
	return filepath.Dir(config.ProjectConfigFile(b.ResolveDir(cwd)))
}
