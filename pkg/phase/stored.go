package phase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StoredProgress is the durable document wrapping a progress sequence.
//
// The wire shape is a single "progress" field holding the ordered phase
// sequence. It is the payload written to the state document backend under
// the id produced by DocID.
type StoredProgress struct {
	Progress []Progress `json:"progress"`
}

// docIDSuffix terminates every progress document id.
const docIDSuffix = "-progress"

// docIDPrefix namespaces progress documents within the shared state store.
const docIDPrefix = "analytics-"

// DocID returns the deterministic state document id for a job's progress.
func DocID(jobID string) string {
	return docIDPrefix + jobID + docIDSuffix
}

// JobIDFromDocID recovers the job id from a progress document id. The
// second return is false if the id does not match the progress pattern.
func JobIDFromDocID(docID string) (string, bool) {
	if !strings.HasPrefix(docID, docIDPrefix) || !strings.HasSuffix(docID, docIDSuffix) {
		return "", false
	}
	jobID := strings.TrimSuffix(strings.TrimPrefix(docID, docIDPrefix), docIDSuffix)
	if jobID == "" {
		return "", false
	}
	return jobID, true
}

// MarshalStoredProgress serializes a progress sequence into the stored
// document body.
func MarshalStoredProgress(progress []Progress) ([]byte, error) {
	b, err := json.Marshal(StoredProgress{Progress: progress})
	if err != nil {
		return nil, fmt.Errorf("marshal stored progress: %w", err)
	}
	return b, nil
}

// ParseStoredProgress parses a stored document body and validates the
// sequence at the boundary.
func ParseStoredProgress(body []byte) (*StoredProgress, error) {
	var doc StoredProgress
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse stored progress: %w", err)
	}
	if err := ValidateSequence(doc.Progress); err != nil {
		return nil, fmt.Errorf("invalid stored progress: %w", err)
	}
	return &doc, nil
}
