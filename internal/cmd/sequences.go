package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/model"
	"github.com/Iron-Ham/backlog/internal/sequencer"
)

var sequencesCmd = &cobra.Command{
	Use:   "sequences",
	Short: "Show tasks grouped into dependency waves",
	Long: `Group tasks into sequences: every task lands in the earliest sequence
after all of its dependencies. Tasks with no dependencies and no dependents
are listed as unsequenced.`,
	Args: cobra.NoArgs,
	RunE: runSequences,
}

var sequencesPlanCmd = &cobra.Command{
	Use:   "plan <task-id> <sequence|unsequenced>",
	Short: "Propose dependencies that move a task to another sequence",
	Long: `Propose the dependency list that places a task in the given sequence,
or detaches it from the graph. Nothing is written unless --apply is set.

Examples:
  backlog sequences plan task-7 2
  backlog sequences plan task-7 unsequenced --apply`,
	Args: cobra.ExactArgs(2),
	RunE: runSequencesPlan,
}

var (
	sequencesJSON bool
	planApply     bool
)

func init() {
	rootCmd.AddCommand(sequencesCmd)
	sequencesCmd.AddCommand(sequencesPlanCmd)

	sequencesCmd.PersistentFlags().BoolVar(&sequencesJSON, "json", false, "Print JSON")
	sequencesPlanCmd.Flags().BoolVar(&planApply, "apply", false, "Write the new dependencies to the task file")
}

func loadTasks(cmd *cobra.Command, env *backlogEnv) ([]model.Task, error) {
	cache := env.newCache(false)
	defer cache.Dispose()
	if _, err := cache.EnsureInitialized(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to load backlog: %w", err)
	}
	return cache.GetTasks(nil)
}

func runSequences(cmd *cobra.Command, args []string) error {
	env, err := openBacklog()
	if err != nil {
		return err
	}
	defer env.close()

	tasks, err := loadTasks(cmd, env)
	if err != nil {
		return err
	}
	res, err := sequencer.ComputeSequences(tasks, env.sequencerPrefix())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sequencesJSON {
		return printJSON(out, res)
	}
	return writeSequences(out, res)
}

func writeSequences(w io.Writer, res sequencer.Result) error {
	p := newPalette(w, true)
	for _, s := range res.Sequences {
		fmt.Fprintln(w, p.header.Render(fmt.Sprintf("Sequence %d", s.Index)))
		if err := writeTaskRows(w, "  ", s.Tasks); err != nil {
			return err
		}
	}
	if len(res.Unsequenced) > 0 {
		fmt.Fprintln(w, p.header.Render("Unsequenced"))
		if err := writeTaskRows(w, "  ", res.Unsequenced); err != nil {
			return err
		}
	}
	if len(res.Sequences) == 0 && len(res.Unsequenced) == 0 {
		fmt.Fprintln(w, "No tasks found.")
	}
	return nil
}

func runSequencesPlan(cmd *cobra.Command, args []string) error {
	id, target := args[0], args[1]

	env, err := openBacklog()
	if err != nil {
		return err
	}
	defer env.close()

	tasks, err := loadTasks(cmd, env)
	if err != nil {
		return err
	}

	var move sequencer.Move
	if strings.EqualFold(target, "unsequenced") {
		move, err = sequencer.PlanMoveToUnsequenced(tasks, id, env.sequencerPrefix())
	} else {
		n, convErr := strconv.Atoi(target)
		if convErr != nil {
			return errors.NewValidationError("sequence must be a number or \"unsequenced\"").
				WithField("sequence").WithValue(target)
		}
		move, err = sequencer.PlanMoveToSequence(tasks, id, n, env.sequencerPrefix())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sequencesJSON {
		if err := printJSON(out, move); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s dependencies: %s\n", move.TaskID, orDash(strings.Join(move.Dependencies, ", ")))
	}
	if !planApply {
		return nil
	}

	task, err := env.store.LoadTask(cmd.Context(), move.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		return errors.NewNotFoundError("task", move.TaskID)
	}
	task.Dependencies = move.Dependencies
	if _, err := env.store.SaveTask(cmd.Context(), *task); err != nil {
		return fmt.Errorf("failed to save %s: %w", move.TaskID, err)
	}
	if !sequencesJSON {
		fmt.Fprintf(out, "Updated %s\n", move.TaskID)
	}
	return nil
}
