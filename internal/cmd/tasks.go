package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/petrelhq/petrel/internal/config"
	"github.com/petrelhq/petrel/pkg/analyticstask"
	"github.com/petrelhq/petrel/pkg/phase"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and manage registered analytics tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tasks, newest first",
	Long: `List task assignments from the node-local registry.

--match filters by job id glob, e.g. 'churn-*' or '**-q3'.

Example:
  petrel tasks list
  petrel tasks list --match 'churn-*'`,
	RunE: runTasksList,
}

var tasksStopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Mark a task stopped",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksStop,
}

var tasksFailCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Mark a task failed after checkpointing its progress",
	Long: `Transition a task to its terminal failed state.

The task's current progress snapshot is checkpointed to the state store
before the failure is reported, so a later reassignment resumes from the
last observed progress rather than from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runTasksFail,
}

var (
	tasksListMatch  string
	tasksFailReason string
)

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksStopCmd)
	tasksCmd.AddCommand(tasksFailCmd)

	tasksListCmd.Flags().StringVar(&tasksListMatch, "match", "", "Glob filter on job ids")
	tasksFailCmd.Flags().StringVar(&tasksFailReason, "reason", "", "Failure reason (required)")
	_ = tasksFailCmd.MarkFlagRequired("reason")
}

func runTasksList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if tasksListMatch != "" && !doublestar.ValidatePattern(tasksListMatch) {
		return exitError(foundry.ExitInvalidArgument, "Invalid --match pattern",
			errors.New("bad glob: "+tasksListMatch))
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	records, err := taskRegistry(cfg).Store().List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list tasks", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tJOB\tALLOC\tSTATE\tUPDATED")
	for _, rec := range records {
		if tasksListMatch != "" {
			ok, _ := doublestar.Match(tasksListMatch, rec.JobID)
			if !ok {
				continue
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.TaskID, rec.JobID, rec.AllocationID, rec.State,
			rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runTasksStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	taskID := args[0]

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	registry := taskRegistry(cfg)
	rec, err := registry.Store().Get(taskID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Unknown task", err)
	}

	err = registry.UpdateTaskState(ctx, taskID, rec.AllocationID, analyticstask.TaskState{
		State:        analyticstask.StateStopped,
		AllocationID: rec.AllocationID,
	})
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to stop task", err)
	}

	fmt.Printf("task %s stopped\n", taskID)
	return nil
}

func runTasksFail(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	taskID := args[0]

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	registry := taskRegistry(cfg)
	rec, err := registry.Store().Get(taskID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Unknown task", err)
	}

	backend, closeBackend, err := stateBackend(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open state store", err)
	}
	defer closeBackend()

	var progress []phase.Progress
	hit, err := backend.SearchStateDoc(ctx, phase.DocID(rec.JobID))
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to read progress", err)
	}
	if hit != nil {
		doc, err := phase.ParseStoredProgress(hit.Body)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid progress document", err)
		}
		progress = doc.Progress
	}

	task, err := analyticstask.New(analyticstask.Params{
		JobID:        rec.JobID,
		TaskID:       rec.TaskID,
		AllocationID: rec.AllocationID,
		Progress:     progress,
	}, backend, registry, &taskregistry.Node{})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to create task", err)
	}

	if err := task.SetFailed(ctx, errors.New(tasksFailReason)); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to mark task failed", err)
	}

	fmt.Printf("task %s failed: %s\n", taskID, tasksFailReason)
	return nil
}
