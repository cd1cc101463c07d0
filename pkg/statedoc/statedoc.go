// Package statedoc provides durable storage for analytics state documents.
//
// Documents live in named physical locations ("state indices"). A mutable
// write alias points at whichever physical index receives new documents;
// over a job's lifetime an existing document may sit in an older index the
// alias no longer targets. Callers that must preserve a document's location
// search first and then write to wherever the document was found.
package statedoc

import (
	"context"
	"errors"
)

// WriteAlias is the well-known default write target. When no existing
// document is found for an id, writes go through this alias.
const WriteAlias = "state-write"

// Sentinel errors for backend operations.
var (
	// ErrUnknownLocation indicates a write targeted an alias or index that
	// does not exist.
	ErrUnknownLocation = errors.New("unknown state location")

	// ErrBackendUnavailable indicates the backing store could not be reached.
	ErrBackendUnavailable = errors.New("state backend unavailable")
)

// Hit is a document found by a search, together with the physical index it
// was found in.
type Hit struct {
	// Index is the physical index holding the document, never an alias.
	Index string

	// ID is the document id.
	ID string

	// Body is the raw document payload.
	Body []byte
}

// Backend reads and writes state documents.
//
// SearchStateDoc returns (nil, nil) when no document exists for the id.
// IndexStateDoc upserts (full replace); target may be a physical index
// name or an alias, and the write lands in the resolved physical index.
type Backend interface {
	SearchStateDoc(ctx context.Context, docID string) (*Hit, error)
	IndexStateDoc(ctx context.Context, target, docID string, body []byte) error
}
