package taskregistry

import (
	"context"
	"strings"
	"testing"

	"github.com/petrelhq/petrel/pkg/analyticstask"
)

func TestRegistry_RegisterTask(t *testing.T) {
	r := NewRegistry(t.TempDir(), "node-a")

	rec, err := r.RegisterTask("churn-model")
	if err != nil {
		t.Fatalf("RegisterTask() error: %v", err)
	}
	if !strings.HasPrefix(rec.TaskID, "analytics-churn-model-") {
		t.Fatalf("unexpected task id: %q", rec.TaskID)
	}
	if rec.AllocationID != 1 {
		t.Fatalf("allocation_id = %d, want 1", rec.AllocationID)
	}
	if rec.State != string(analyticstask.StateStarting) {
		t.Fatalf("state = %q, want starting", rec.State)
	}
	if rec.Node != "node-a" {
		t.Fatalf("node = %q, want node-a", rec.Node)
	}
}

func TestRegistry_UpdateTaskState(t *testing.T) {
	r := NewRegistry(t.TempDir(), "node-a")
	ctx := context.Background()

	rec, err := r.RegisterTask("churn-model")
	if err != nil {
		t.Fatalf("RegisterTask() error: %v", err)
	}

	err = r.UpdateTaskState(ctx, rec.TaskID, rec.AllocationID, analyticstask.TaskState{
		State:        analyticstask.StateFailed,
		AllocationID: rec.AllocationID,
		Reason:       "native process died",
	})
	if err != nil {
		t.Fatalf("UpdateTaskState() error: %v", err)
	}

	got, err := r.Store().Get(rec.TaskID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != string(analyticstask.StateFailed) {
		t.Fatalf("state = %q, want failed", got.State)
	}
	if got.Reason != "native process died" {
		t.Fatalf("reason = %q", got.Reason)
	}
	if got.EndedAt == nil {
		t.Fatal("ended_at not set for terminal state")
	}
}

func TestRegistry_UpdateTaskStateRejectsStaleAllocation(t *testing.T) {
	r := NewRegistry(t.TempDir(), "node-a")
	ctx := context.Background()

	rec, err := r.RegisterTask("churn-model")
	if err != nil {
		t.Fatalf("RegisterTask() error: %v", err)
	}
	if _, err := r.ReassignTask(rec.TaskID); err != nil {
		t.Fatalf("ReassignTask() error: %v", err)
	}

	// A report from the pre-reassignment generation must be rejected.
	err = r.UpdateTaskState(ctx, rec.TaskID, rec.AllocationID, analyticstask.TaskState{
		State:        analyticstask.StateFailed,
		AllocationID: rec.AllocationID,
		Reason:       "stale",
	})
	if err == nil {
		t.Fatal("expected stale allocation id to be rejected")
	}

	got, err := r.Store().Get(rec.TaskID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State == string(analyticstask.StateFailed) {
		t.Fatal("stale report overwrote current state")
	}
}

func TestRegistry_ReassignTaskBumpsAllocation(t *testing.T) {
	r := NewRegistry(t.TempDir(), "node-a")

	rec, err := r.RegisterTask("churn-model")
	if err != nil {
		t.Fatalf("RegisterTask() error: %v", err)
	}
	re, err := r.ReassignTask(rec.TaskID)
	if err != nil {
		t.Fatalf("ReassignTask() error: %v", err)
	}
	if re.AllocationID != rec.AllocationID+1 {
		t.Fatalf("allocation_id = %d, want %d", re.AllocationID, rec.AllocationID+1)
	}
	if re.State != string(analyticstask.StateStarting) {
		t.Fatalf("state = %q, want starting after reassignment", re.State)
	}
	if re.EndedAt != nil {
		t.Fatal("ended_at should clear on reassignment")
	}
}

func TestNode_ShutdownSignal(t *testing.T) {
	n := &Node{}
	if n.IsNodeShuttingDown() {
		t.Fatal("fresh node reports shutting down")
	}
	n.SignalShutdown()
	if !n.IsNodeShuttingDown() {
		t.Fatal("signal not observed")
	}
	n.SignalShutdown()
	if !n.IsNodeShuttingDown() {
		t.Fatal("signal not idempotent")
	}
}
