// Package phase defines the canonical analytics phases and the progress
// model shared by the task controller and the stored-progress document
// format.
//
// The phase order is part of the stable on-disk contract: stored progress
// documents list phases in this order, and the resume decision scans them
// in this order. Reordering or renaming phases is a breaking format change.
package phase

import (
	"fmt"
	"sync/atomic"
)

// Phase names, in canonical execution order.
const (
	Reindexing     = "reindexing"
	LoadingData    = "loading_data"
	Analyzing      = "analyzing"
	WritingResults = "writing_results"
)

// Order is the canonical, total ordering of analytics phases.
var Order = []string{Reindexing, LoadingData, Analyzing, WritingResults}

// Progress is an immutable record of one phase and its percent complete.
//
// Percent is in [0, 100]; 100 means the phase is fully complete. Equality
// is structural.
type Progress struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

func (p Progress) String() string {
	return fmt.Sprintf("%s: %d%%", p.Name, p.Percent)
}

// Validate rejects progress records that are malformed at the boundary:
// unknown phase names or percents outside [0, 100].
func (p Progress) Validate() error {
	known := false
	for _, name := range Order {
		if p.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown phase name: %q", p.Name)
	}
	if p.Percent < 0 || p.Percent > 100 {
		return fmt.Errorf("phase %s: percent out of range: %d", p.Name, p.Percent)
	}
	return nil
}

// ValidateSequence validates every record in a progress sequence.
//
// An empty sequence is valid; it means the job is finished or was never
// tracked.
func ValidateSequence(progress []Progress) error {
	for _, p := range progress {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Tracker accumulates per-phase percent values for a running task.
//
// Counters are atomic so phase executors on other goroutines can report
// progress without coordinating with the controller.
type Tracker struct {
	reindexing     atomic.Int32
	loadingData    atomic.Int32
	analyzing      atomic.Int32
	writingResults atomic.Int32
}

// NewTracker returns a tracker with all phases at zero.
func NewTracker() *Tracker {
	return &Tracker{}
}

// NewTrackerFromSnapshot returns a tracker seeded from a previously
// persisted snapshot, e.g. when resuming a job after a restart.
func NewTrackerFromSnapshot(progress []Progress) *Tracker {
	t := NewTracker()
	for _, p := range progress {
		t.Set(p.Name, p.Percent)
	}
	return t
}

func (t *Tracker) counter(name string) *atomic.Int32 {
	switch name {
	case Reindexing:
		return &t.reindexing
	case LoadingData:
		return &t.loadingData
	case Analyzing:
		return &t.analyzing
	case WritingResults:
		return &t.writingResults
	default:
		return nil
	}
}

// Set records the percent for a phase. Unknown phases are ignored.
func (t *Tracker) Set(name string, percent int) {
	if c := t.counter(name); c != nil {
		c.Store(int32(percent))
	}
}

// Get returns the current percent for a phase, or zero for unknown phases.
func (t *Tracker) Get(name string) int {
	if c := t.counter(name); c != nil {
		return int(c.Load())
	}
	return 0
}

// Snapshot returns the current progress of all phases in canonical order.
func (t *Tracker) Snapshot() []Progress {
	out := make([]Progress, 0, len(Order))
	for _, name := range Order {
		out = append(out, Progress{Name: name, Percent: t.Get(name)})
	}
	return out
}
