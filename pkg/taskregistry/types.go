package taskregistry

import "time"

// TaskRecord is the persistent record written to task.json for each
// registered analytics task assignment.
//
// The schema is designed for backward-compatible extension (additive fields).
type TaskRecord struct {
	TaskID string `json:"task_id"`
	JobID  string `json:"job_id"`

	// AllocationID is the assignment generation. It increments every time
	// the task is reassigned to a node; status reports carrying an older
	// generation are rejected.
	AllocationID int64 `json:"allocation_id"`

	Node  string `json:"node,omitempty"`
	State string `json:"state"`

	// Reason carries the failure message for failed tasks.
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
