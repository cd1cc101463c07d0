// Package analyticstask implements the runtime controller for one analytics
// job execution: resume decisions, durable progress checkpoints, and the
// terminal failure path coordinated with the cluster task registry.
package analyticstask

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/petrelhq/petrel/pkg/phase"
	"github.com/petrelhq/petrel/pkg/statedoc"
)

// Params identifies one task execution.
type Params struct {
	// JobID is the analytics job this task executes.
	JobID string

	// TaskID is the registry task id.
	TaskID string

	// AllocationID is the registry generation for this assignment.
	AllocationID int64

	// Progress seeds the tracker when resuming; nil starts from zero.
	Progress []phase.Progress

	// PersistInterval bounds how often observed phase progress is written
	// through to the state store. Zero disables throttled persistence
	// (every observation persists).
	PersistInterval time.Duration
}

// Task controls the lifecycle of one running analytics job.
//
// The task serializes progress persistence internally: overlapping persist
// calls for the same job would race on locating the existing document, so
// at most one runs at a time.
type Task struct {
	jobID        string
	taskID       string
	allocationID int64

	backend  statedoc.Backend
	registry Registry
	manager  Manager

	tracker *phase.Tracker

	// persistMu is the single in-flight guard for the locate-then-write
	// protocol.
	persistMu sync.Mutex

	// persistLimit throttles write-through of observed phase progress.
	// Nil means unthrottled.
	persistLimit *rate.Limiter

	mu      sync.Mutex
	stopped bool
	failed  bool
}

// New creates a task controller. backend, registry, and manager are the
// injected collaborators; they must be non-nil.
func New(params Params, backend statedoc.Backend, registry Registry, manager Manager) (*Task, error) {
	if params.JobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if backend == nil || registry == nil || manager == nil {
		return nil, fmt.Errorf("task collaborators must be non-nil")
	}

	t := &Task{
		jobID:        params.JobID,
		taskID:       params.TaskID,
		allocationID: params.AllocationID,
		backend:      backend,
		registry:     registry,
		manager:      manager,
		tracker:      phase.NewTrackerFromSnapshot(params.Progress),
	}
	if params.PersistInterval > 0 {
		t.persistLimit = rate.NewLimiter(rate.Every(params.PersistInterval), 1)
	}
	return t, nil
}

// JobID returns the analytics job id this task executes.
func (t *Task) JobID() string {
	return t.jobID
}

// AllocationID returns the registry generation for this assignment.
func (t *Task) AllocationID() int64 {
	return t.allocationID
}

// Progress returns the task's current progress in canonical phase order.
func (t *Task) Progress() []phase.Progress {
	return t.tracker.Snapshot()
}

// StartingState resolves where this task must resume from, based on the
// progress it was seeded with.
func (t *Task) StartingState() StartingState {
	return DetermineStartingState(t.jobID, t.Progress())
}

// UpdateState reports a non-terminal lifecycle state to the registry.
func (t *Task) UpdateState(ctx context.Context, state State) error {
	return t.registry.UpdateTaskState(ctx, t.taskID, t.allocationID,
		TaskState{State: state, AllocationID: t.allocationID})
}

// SetPhaseProgress records an observed percent for a phase and, rate
// permitting, writes the snapshot through to the state store. Persistence
// errors here are returned but do not stop the observation from being
// recorded.
func (t *Task) SetPhaseProgress(ctx context.Context, name string, percent int) error {
	t.tracker.Set(name, percent)
	if t.persistLimit != nil && !t.persistLimit.Allow() {
		return nil
	}
	return t.PersistProgress(ctx, nil)
}

// PersistProgress durably checkpoints the current progress snapshot.
//
// Protocol, strictly in order: search the state backend for an existing
// progress document for this job across all physical indices; write the
// serialized snapshot to the found document's index, or to the default
// write alias when none exists; then invoke onComplete exactly once. Any
// search or write error aborts the remaining steps, skips the callback,
// and is returned.
func (t *Task) PersistProgress(ctx context.Context, onComplete func()) error {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	docID := phase.DocID(t.jobID)

	hit, err := t.backend.SearchStateDoc(ctx, docID)
	if err != nil {
		return fmt.Errorf("locate progress doc for job %s: %w", t.jobID, err)
	}

	target := statedoc.WriteAlias
	if hit != nil {
		target = hit.Index
	}

	body, err := phase.MarshalStoredProgress(t.Progress())
	if err != nil {
		return err
	}
	if err := t.backend.IndexStateDoc(ctx, target, docID, body); err != nil {
		return fmt.Errorf("persist progress doc for job %s: %w", t.jobID, err)
	}

	if onComplete != nil {
		onComplete()
	}
	return nil
}

// SetFailed transitions the task to its terminal failed state.
//
// On a healthy node it checkpoints progress and then reports the failure
// (with taskErr's message) to the registry; either step's error propagates
// and is not retried here. On a node that is shutting down both steps are
// skipped entirely: neither can complete reliably, and reassignment will
// re-derive state from the last persisted snapshot.
func (t *Task) SetFailed(ctx context.Context, taskErr error) error {
	if t.manager.IsNodeShuttingDown() {
		return nil
	}

	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()

	if err := t.PersistProgress(ctx, nil); err != nil {
		return fmt.Errorf("persist progress for failed task %s: %w", t.taskID, err)
	}

	reason := ""
	if taskErr != nil {
		reason = taskErr.Error()
	}
	if err := t.registry.UpdateTaskState(ctx, t.taskID, t.allocationID,
		TaskState{State: StateFailed, AllocationID: t.allocationID, Reason: reason}); err != nil {
		return fmt.Errorf("report failed state for task %s: %w", t.taskID, err)
	}
	return nil
}

// MarkStopped flags the task as stopped and reports the terminal state.
func (t *Task) MarkStopped(ctx context.Context) error {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return t.UpdateState(ctx, StateStopped)
}

// IsStopped reports whether the task was asked to stop.
func (t *Task) IsStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// IsFailed reports whether the task entered the terminal failed state.
func (t *Task) IsFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}
