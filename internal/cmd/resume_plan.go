package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrelhq/petrel/internal/config"
	"github.com/petrelhq/petrel/internal/observability"
	"github.com/petrelhq/petrel/pkg/analyticstask"
	"github.com/petrelhq/petrel/pkg/phase"
)

var resumePlanCmd = &cobra.Command{
	Use:   "resume-plan",
	Short: "Show where a job would resume after a restart",
	Long: `Read the job's persisted progress document and print the starting-state
decision: first_time, resuming_reindexing, resuming_analyzing, or finished.

Example:
  petrel resume-plan --job-id churn-q3
  petrel resume-plan --job-id churn-q3 --json`,
	RunE: runResumePlan,
}

var (
	resumePlanJobID string
	resumePlanJSON  bool
)

func init() {
	rootCmd.AddCommand(resumePlanCmd)

	resumePlanCmd.Flags().StringVar(&resumePlanJobID, "job-id", "", "Analytics job id (required)")
	resumePlanCmd.Flags().BoolVar(&resumePlanJSON, "json", false, "Emit the decision as JSON")

	_ = resumePlanCmd.MarkFlagRequired("job-id")
}

func runResumePlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	backend, closeBackend, err := stateBackend(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open state store", err)
	}
	defer closeBackend()

	hit, err := backend.SearchStateDoc(ctx, phase.DocID(resumePlanJobID))
	if err != nil {
		observability.CLILogger.Error("Failed to locate progress document",
			zap.String("job_id", resumePlanJobID),
			zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to read progress", err)
	}

	var progress []phase.Progress
	index := ""
	if hit != nil {
		doc, err := phase.ParseStoredProgress(hit.Body)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid progress document", err)
		}
		progress = doc.Progress
		index = hit.Index
	}

	state := analyticstask.DetermineStartingState(resumePlanJobID, progress)

	if resumePlanJSON {
		out := struct {
			JobID         string                      `json:"job_id"`
			StartingState analyticstask.StartingState `json:"starting_state"`
			Index         string                      `json:"index,omitempty"`
			Progress      []phase.Progress            `json:"progress,omitempty"`
		}{resumePlanJobID, state, index, progress}
		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("job %s: %s\n", resumePlanJobID, state)
	for _, p := range progress {
		fmt.Printf("  %-16s %3d%%\n", p.Name, p.Percent)
	}
	return nil
}
