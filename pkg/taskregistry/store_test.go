package taskregistry

import (
	"testing"
	"time"
)

func TestStore_WriteGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	rec := &TaskRecord{
		TaskID:       "analytics-churn-model-abc",
		JobID:        "churn-model",
		AllocationID: 3,
		Node:         "node-a",
		State:        "analyzing",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("analytics-churn-model-abc")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.JobID != rec.JobID {
		t.Fatalf("job_id mismatch: got=%q want=%q", got.JobID, rec.JobID)
	}
	if got.AllocationID != 3 {
		t.Fatalf("allocation_id mismatch: got=%d want=3", got.AllocationID)
	}
	if got.State != rec.State {
		t.Fatalf("state mismatch: got=%q want=%q", got.State, rec.State)
	}
	if got.EndedAt != nil {
		t.Fatalf("ended_at should be unset for a live task")
	}
}

func TestStore_WriteRejectsEmptyTaskID(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Write(&TaskRecord{JobID: "j"}); err == nil {
		t.Fatal("expected error for empty task_id")
	}
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	t1 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 20, 13, 0, 0, 0, time.UTC)

	if err := s.Write(&TaskRecord{TaskID: "task-1", JobID: "job-1", State: "starting", CreatedAt: t1, UpdatedAt: t1}); err != nil {
		t.Fatalf("Write task-1: %v", err)
	}
	if err := s.Write(&TaskRecord{TaskID: "task-2", JobID: "job-2", State: "starting", CreatedAt: t2, UpdatedAt: t2}); err != nil {
		t.Fatalf("Write task-2: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected task count: %d", len(got))
	}
	if got[0].TaskID != "task-2" {
		t.Fatalf("expected newest first, got[0]=%q", got[0].TaskID)
	}
}

func TestStore_ListEmptyRoot(t *testing.T) {
	s := NewStore(t.TempDir())
	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}
}
