package analyticstask

import (
	"context"

	"github.com/petrelhq/petrel/pkg/phase"
)

// State is the task lifecycle state exposed to the cluster task registry.
//
// NOTE: These values travel over the registry wire format and are part of
// the stable contract.
type State string

const (
	StateStarting   State = "starting"
	StateReindexing State = "reindexing"
	StateAnalyzing  State = "analyzing"
	StateStopped    State = "stopped"
	StateFailed     State = "failed"
)

// StateForPhase maps a progress phase to the lifecycle state a running task
// reports while working through it. Reindexing has its own state; every
// later phase counts as analysis.
func StateForPhase(name string) State {
	if name == phase.Reindexing {
		return StateReindexing
	}
	return StateAnalyzing
}

// TaskState is the status payload reported to the registry.
type TaskState struct {
	State State `json:"state"`

	// AllocationID identifies the task generation the report belongs to.
	// The registry rejects reports from stale allocations.
	AllocationID int64 `json:"allocation_id"`

	// Reason carries the human-readable failure message for StateFailed.
	Reason string `json:"reason,omitempty"`
}

// Registry accepts task status updates from the controller. Implementations
// live outside this package; taskregistry provides the node-local one.
type Registry interface {
	UpdateTaskState(ctx context.Context, taskID string, allocationID int64, state TaskState) error
}

// Manager is the owning process collaborator; it supplies the node
// shutdown signal the failure path consults.
type Manager interface {
	IsNodeShuttingDown() bool
}
