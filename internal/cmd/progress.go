package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrelhq/petrel/internal/config"
	"github.com/petrelhq/petrel/internal/observability"
	"github.com/petrelhq/petrel/pkg/analyticstask"
	"github.com/petrelhq/petrel/pkg/phase"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Report and checkpoint phase progress",
}

var progressSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Record a phase's percent complete and checkpoint it",
	Long: `Record an observed percent for one phase of a running task and write the
updated snapshot through to the state store.

Phase executors call this as they make progress. The write preserves the
progress document's physical index when one already exists.

Example:
  petrel progress set --task-id analytics-churn-q3-7f3a --phase reindexing --percent 40`,
	RunE: runProgressSet,
}

var (
	progressTaskID  string
	progressPhase   string
	progressPercent int
)

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressSetCmd)

	progressSetCmd.Flags().StringVar(&progressTaskID, "task-id", "", "Registry task id (required)")
	progressSetCmd.Flags().StringVar(&progressPhase, "phase", "", "Phase name (required)")
	progressSetCmd.Flags().IntVar(&progressPercent, "percent", 0, "Percent complete, 0-100")

	_ = progressSetCmd.MarkFlagRequired("task-id")
	_ = progressSetCmd.MarkFlagRequired("phase")
}

func runProgressSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := (phase.Progress{Name: progressPhase, Percent: progressPercent}).Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid phase progress", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	registry := taskRegistry(cfg)
	rec, err := registry.Store().Get(progressTaskID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Unknown task", err)
	}

	backend, closeBackend, err := stateBackend(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open state store", err)
	}
	defer closeBackend()

	// Rehydrate the controller from the persisted snapshot so one phase
	// update does not zero the others.
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

	if err := task.SetPhaseProgress(ctx, progressPhase, progressPercent); err != nil {
		observability.CLILogger.Error("Failed to checkpoint progress",
			zap.String("task_id", progressTaskID),
			zap.String("phase", progressPhase),
			zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to checkpoint progress", err)
	}

	// Keep the registry's lifecycle state in step with the phase being worked.
	if err := task.UpdateState(ctx, analyticstask.StateForPhase(progressPhase)); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to report task state", err)
	}

	fmt.Printf("job %s: %s = %d%%\n", rec.JobID, progressPhase, progressPercent)
	return nil
}
