package analyticstask

import (
	"github.com/petrelhq/petrel/pkg/phase"
)

// StartingState is the lifecycle stage a job must resume from after a
// restart, derived from its last persisted progress.
type StartingState string

const (
	// StartingStateFirstTime means the job never began: every phase is at zero.
	StartingStateFirstTime StartingState = "first_time"

	// StartingStateResumingReindexing means the reindexing phase did not
	// finish. Reindexing is not resumable mid-phase and restarts from scratch.
	StartingStateResumingReindexing StartingState = "resuming_reindexing"

	// StartingStateResumingAnalyzing means reindexing finished but a later
	// phase did not. All post-reindex phases resume as one unit.
	StartingStateResumingAnalyzing StartingState = "resuming_analyzing"

	// StartingStateFinished means every phase completed, or no progress was
	// ever recorded.
	StartingStateFinished StartingState = "finished"
)

// DetermineStartingState decides where execution resumes given the job's
// last known progress, scanned in canonical phase order.
//
// An empty sequence means nothing to resume. An all-zero sequence means the
// job never began; this is checked before the incomplete-phase scan so it is
// not mistaken for an interrupted reindex. Otherwise the first phase below
// 100 decides: reindexing restarts from scratch, anything later resumes via
// the analytics process. Input is assumed well formed; malformed documents
// are rejected when parsed at the store boundary.
func DetermineStartingState(jobID string, progress []phase.Progress) StartingState {
	if len(progress) == 0 {
		return StartingStateFinished
	}

	allZero := true
	for _, p := range progress {
		if p.Percent > 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return StartingStateFirstTime
	}

	for _, p := range progress {
		if p.Percent >= 100 {
			continue
		}
		if p.Name == phase.Reindexing {
			return StartingStateResumingReindexing
		}
		return StartingStateResumingAnalyzing
	}

	return StartingStateFinished
}
