package mutation

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/Natural-Highs/authcore/store"
)

// MaxConflictRetries bounds consecutive automatic retries for one logical
// edit. Past it the caller must reload the authoritative record; this bounds
// live-lock under high contention.
const MaxConflictRetries = 3

// ErrReloadRequired is returned once a logical edit has conflicted
// MaxConflictRetries times in a row. The only way forward is a full reload.
var ErrReloadRequired = errors.New("mutation: too many consecutive conflicts, reload required")

// ConflictError reports that the stored version moved past the caller's
// expected version. The write had no effect. Callers branch with errors.As;
// the struct carries everything a resolution prompt needs.
type ConflictError struct {
	RecordID        string
	ExpectedVersion int64
	StoredVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mutation: conflict on %q: expected version %d, stored version %d",
		e.RecordID, e.ExpectedVersion, e.StoredVersion)
}

// UpdateFunc transforms a record's field map into its proposed next state.
// It receives a private copy and must not retain it.
type UpdateFunc func(fields map[string]any) map[string]any

// Group names one field group of a multi-group update.
type Group struct {
	Name   string
	Update UpdateFunc
}

// Result reports a successful conditional write.
type Result struct {
	NewVersion    int64
	UpdatedFields map[string]any
}

// Resolution is the caller's answer to a conflict: discard local work and
// reload, or re-apply on top of the authoritative record.
type Resolution uint8

const (
	// ResolutionReload discards the local change; the caller's retry counter
	// resets to zero.
	ResolutionReload Resolution = iota
	// ResolutionRebase re-fetches the authoritative record and re-applies the
	// local change on top — an explicit overwrite; the retry counter increments.
	ResolutionRebase
)

// Coordinator wraps a document store with compare-and-swap semantics. It is
// stateless; per-edit retry counts travel with the caller.
type Coordinator struct {
	store store.DocumentStore
}

// NewCoordinator builds a Coordinator over s.
func NewCoordinator(s store.DocumentStore) *Coordinator {
	return &Coordinator{store: s}
}

// Apply performs one conditional write. If the stored version does not equal
// expectedVersion it aborts with *ConflictError and no side effects;
// otherwise the update and the version bump land as a single atomic store
// operation.
func (c *Coordinator) Apply(ctx context.Context, recordID string, expectedVersion int64, update UpdateFunc) (Result, error) {
	doc, err := c.store.Get(ctx, recordID)
	if err != nil {
		return Result{}, err
	}
	if doc.Version != expectedVersion {
		return Result{}, &ConflictError{
			RecordID:        recordID,
			ExpectedVersion: expectedVersion,
			StoredVersion:   doc.Version,
		}
	}

	fields := update(doc.Clone())

	newVersion, err := c.store.Put(ctx, recordID, expectedVersion, fields)
	if errors.Is(err, store.ErrVersionMismatch) {
		// Lost the race between read and write; fetch the winner's version so
		// the conflict report is accurate.
		stored := doc.Version
		if current, getErr := c.store.Get(ctx, recordID); getErr == nil {
			stored = current.Version
		}
		return Result{}, &ConflictError{
			RecordID:        recordID,
			ExpectedVersion: expectedVersion,
			StoredVersion:   stored,
		}
	}
	if err != nil {
		return Result{}, err
	}

	return Result{NewVersion: newVersion, UpdatedFields: fields}, nil
}

// ApplyGroups applies field groups strictly sequentially, threading each
// returned version into the next group's expected version. Groups are never
// reordered or parallelized. On conflict the already-applied prefix stands;
// the error names the group that conflicted.
func (c *Coordinator) ApplyGroups(ctx context.Context, recordID string, expectedVersion int64, groups []Group) (Result, error) {
	var last Result
	version := expectedVersion
	for _, g := range groups {
		res, err := c.Apply(ctx, recordID, version, g.Update)
		if err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				return last, fmt.Errorf("group %q: %w", g.Name, conflict)
			}
			return last, fmt.Errorf("group %q: %w", g.Name, err)
		}
		last = res
		version = res.NewVersion
	}
	return last, nil
}

// Rebase re-fetches the authoritative record and re-applies update on top of
// it — the explicit-overwrite resolution. The caller increments its retry
// counter before calling and must stop at MaxConflictRetries.
func (c *Coordinator) Rebase(ctx context.Context, recordID string, update UpdateFunc) (Result, error) {
	doc, err := c.store.Get(ctx, recordID)
	if err != nil {
		return Result{}, err
	}
	return c.Apply(ctx, recordID, doc.Version, update)
}

// Changed reports whether applying update to current would alter any field.
// Callers must skip Apply entirely for no-op edits: an unchanged write would
// burn a version number and widen the spurious-conflict surface.
func Changed(current map[string]any, update UpdateFunc) bool {
	copied := make(map[string]any, len(current))
	for k, v := range current {
		copied[k] = v
	}
	return !reflect.DeepEqual(current, update(copied))
}
