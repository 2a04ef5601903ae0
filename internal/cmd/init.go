package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backlog directory structure",
	Long: `Create the backlog directory and its tasks, docs, decisions and
milestones subdirectories. Existing content is left untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	env, err := openBacklog()
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.store.EnsureBacklogStructure(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize backlog: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backlog initialized at %s\n", env.dir)
	return nil
}
