package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrelhq/petrel/internal/config"
	"github.com/petrelhq/petrel/internal/observability"
	"github.com/petrelhq/petrel/pkg/analyticstask"
	"github.com/petrelhq/petrel/pkg/manifest"
	"github.com/petrelhq/petrel/pkg/phase"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume an analytics job from a manifest",
	Long: `Register a task assignment for the job defined in the manifest, seed its
progress from the last persisted snapshot, report the starting state to the
task registry, and write an initial checkpoint.

Phase executors attach separately and report progress with 'petrel progress set'.

Example:
  petrel start --job jobs/churn-q3.yaml`,
	RunE: runStart,
}

var startJobPath string

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVarP(&startJobPath, "job", "j", "", "Path to job manifest (required)")

	_ = startCmd.MarkFlagRequired("job")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(startJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", startJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	backend, closeBackend, err := stateBackend(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open state store", err)
	}
	defer closeBackend()

	registry := taskRegistry(cfg)

	// Seed from the last persisted snapshot, if any.
	var progress []phase.Progress
	hit, err := backend.SearchStateDoc(ctx, phase.DocID(m.Job.ID))
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

	rec, err := registry.RegisterTask(m.Job.ID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to register task", err)
	}

	task, err := analyticstask.New(analyticstask.Params{
		JobID:           m.Job.ID,
		TaskID:          rec.TaskID,
		AllocationID:    rec.AllocationID,
		Progress:        progress,
		PersistInterval: cfg.Task.PersistInterval,
	}, backend, registry, &taskregistry.Node{})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to create task", err)
	}

	startingState := task.StartingState()
	observability.CLILogger.Info("Starting analytics job",
		zap.String("job_id", m.Job.ID),
		zap.String("task_id", rec.TaskID),
		zap.Int64("allocation_id", rec.AllocationID),
		zap.String("analysis", m.Analysis.Type),
		zap.String("starting_state", string(startingState)))

	if err := task.UpdateState(ctx, analyticstask.StateStarting); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to report starting state", err)
	}

	if err := task.PersistProgress(ctx, func() {
		observability.CLILogger.Debug("Initial checkpoint written",
			zap.String("job_id", m.Job.ID))
	}); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to write initial checkpoint", err)
	}

	fmt.Printf("task %s registered for job %s (allocation %d, resume: %s)\n",
		rec.TaskID, m.Job.ID, rec.AllocationID, startingState)
	return nil
}
