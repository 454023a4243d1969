package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("store: document not found")

	// ErrVersionMismatch is returned by conditional writes when the stored
	// version has moved past the caller's expected version. The write has no
	// effect. Callers branch on this error, never on message text.
	ErrVersionMismatch = errors.New("store: version mismatch")

	// ErrExists is returned by Create when the document already exists.
	ErrExists = errors.New("store: document already exists")
)

// Document is a versioned record as read from a backend.
type Document struct {
	ID      string
	Version int64
	Fields  map[string]any
}

// Clone returns a deep-enough copy of the document's field map so callers can
// mutate it without aliasing store-internal state.
func (d Document) Clone() map[string]any {
	out := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		out[k] = v
	}
	return out
}

// DocumentStore is the atomic conditional-write collaborator. Implementations
// must guarantee that Put is atomic across service instances: compare the
// stored version, and only on equality replace the fields and bump the
// version by one.
type DocumentStore interface {
	// Get reads a document and its current version.
	Get(ctx context.Context, id string) (Document, error)

	// Put conditionally replaces the document body. It returns the new version
	// on success, ErrVersionMismatch when expectedVersion is stale, and
	// ErrNotFound when the document does not exist.
	Put(ctx context.Context, id string, expectedVersion int64, fields map[string]any) (int64, error)

	// Create inserts a new document at version 1.
	Create(ctx context.Context, id string, fields map[string]any) (int64, error)
}
