package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/backlog/internal/model"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	Long: `List tasks in hierarchical id order.

Examples:
  # Everything
  backlog tasks

  # Only finished work assigned to alice
  backlog tasks --status done --assignee @alice`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

var (
	tasksStatus   string
	tasksAssignee string
	tasksJSON     bool
)

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.Flags().StringVarP(&tasksStatus, "status", "s", "", "Only tasks with this status (case-insensitive)")
	tasksCmd.Flags().StringVarP(&tasksAssignee, "assignee", "a", "", "Only tasks assigned to this person")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Print JSON")
}

func runTasks(cmd *cobra.Command, args []string) error {
	env, err := openBacklog()
	if err != nil {
		return err
	}
	defer env.close()

	cache := env.newCache(false)
	defer cache.Dispose()
	if _, err := cache.EnsureInitialized(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load backlog: %w", err)
	}

	tasks, err := cache.GetTasks(&model.TaskFilter{Status: tasksStatus, Assignee: tasksAssignee})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tasksJSON {
		return printJSON(out, tasks)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}
	return writeTaskRows(out, "", tasks)
}
