package taskregistry

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/petrelhq/petrel/pkg/analyticstask"
)

// Registry implements the controller's status-update collaborator on top
// of the on-disk Store.
type Registry struct {
	store *Store
	node  string
}

var _ analyticstask.Registry = (*Registry)(nil)

// NewRegistry creates a registry rooted at the given directory. node names
// the local node in task records; empty defaults to the hostname.
func NewRegistry(root string, node string) *Registry {
	if node == "" {
		node, _ = os.Hostname()
	}
	return &Registry{store: NewStore(root), node: node}
}

func (r *Registry) Store() *Store {
	return r.store
}

// RegisterTask records a new task assignment for a job and returns its
// record. The allocation id starts at 1 and bumps on every reassignment.
func (r *Registry) RegisterTask(jobID string) (*TaskRecord, error) {
	now := time.Now().UTC()
	rec := &TaskRecord{
		TaskID:       "analytics-" + jobID + "-" + uuid.New().String(),
		JobID:        jobID,
		AllocationID: 1,
		Node:         r.node,
		State:        string(analyticstask.StateStarting),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.Write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReassignTask bumps a task's allocation id for a fresh assignment,
// invalidating status reports from the previous generation.
func (r *Registry) ReassignTask(taskID string) (*TaskRecord, error) {
	rec, err := r.store.Get(taskID)
	if err != nil {
		return nil, err
	}
	rec.AllocationID++
	rec.Node = r.node
	rec.State = string(analyticstask.StateStarting)
	rec.Reason = ""
	rec.EndedAt = nil
	rec.UpdatedAt = time.Now().UTC()
	if err := r.store.Write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateTaskState accepts a status report from the controller.
//
// Reports carrying an allocation id older than the record's current one are
// rejected: the task has been reassigned and the reporter no longer owns it.
func (r *Registry) UpdateTaskState(ctx context.Context, taskID string, allocationID int64, state analyticstask.TaskState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := r.store.Get(taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}
	if allocationID != rec.AllocationID {
		return fmt.Errorf("stale allocation id %d for task %s (current %d)",
			allocationID, taskID, rec.AllocationID)
	}

	rec.State = string(state.State)
	rec.Reason = state.Reason
	rec.UpdatedAt = time.Now().UTC()
	if state.State == analyticstask.StateFailed || state.State == analyticstask.StateStopped {
		ended := rec.UpdatedAt
		rec.EndedAt = &ended
	}

	if err := r.store.Write(rec); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	return nil
}

// Node tracks the local node's shutdown signal for the controller's
// failure path.
type Node struct {
	shuttingDown atomic.Bool
}

var _ analyticstask.Manager = (*Node)(nil)

// SignalShutdown marks the node as shutting down. Idempotent.
func (n *Node) SignalShutdown() {
	n.shuttingDown.Store(true)
}

// IsNodeShuttingDown reports whether shutdown has been signalled.
func (n *Node) IsNodeShuttingDown() bool {
	return n.shuttingDown.Load()
}
