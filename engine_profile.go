package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cenkalti/backoff/v4"

	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/store"
)

// ProfileUpdateRequest is one logical edit against a versioned record. The
// retry counter travels with the request: the engine keeps no per-edit state,
// so concurrent edits from many browser tabs cannot interfere through it.
type ProfileUpdateRequest struct {
	RecordID        string
	ExpectedVersion int64
	Groups          []mutation.Group
	// Attempt counts consecutive conflicts already suffered by this logical
	// edit. At MaxRetries the engine refuses the write and demands a reload.
	Attempt int
}

// ProfileUpdateResult reports the outcome of an applied (or skipped) edit.
type ProfileUpdateResult struct {
	NewVersion    int64
	UpdatedFields map[string]any
	// NoOp is true when every group left the record byte-for-byte unchanged
	// and no write was issued. NewVersion then equals the expected version.
	NoOp bool
}

// ConflictResolutionRequest carries the caller's answer to a ConflictError.
type ConflictResolutionRequest struct {
	RecordID   string
	Resolution mutation.Resolution
	Groups     []mutation.Group
	Attempt    int
}

// LoadProfile reads a record, subject to the read-path grace decision.
func (e *Engine) LoadProfile(ctx context.Context, recordID string) (store.Document, error) {
	if !e.ready() {
		return store.Document{}, ErrEngineNotReady
	}
	if err := e.AuthorizeRead(ctx); err != nil {
		return store.Document{}, err
	}

	doc, err := e.documents.Get(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Document{}, errors.Join(ErrRecordNotFound, err)
	}
	if err != nil {
		return store.Document{}, err
	}
	return doc, nil
}

// CreateProfile creates a record at version 1.
func (e *Engine) CreateProfile(ctx context.Context, recordID string, fields map[string]any) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if err := e.AuthorizeWrite(ctx); err != nil {
		return 0, err
	}

	version, err := e.documents.Create(ctx, recordID, fields)
	if err != nil {
		return 0, err
	}

	e.emitAudit(ctx, auditEventProfileCreated, true, subjectFromContext(ctx), recordID, nil, nil)
	return version, nil
}

// UpdateProfile applies one logical edit under compare-and-swap. Groups are
// applied strictly in order, each landing as its own version increment. Edits
// that would change nothing are skipped without consuming a version.
func (e *Engine) UpdateProfile(ctx context.Context, req ProfileUpdateRequest) (ProfileUpdateResult, error) {
	if !e.ready() {
		return ProfileUpdateResult{}, ErrEngineNotReady
	}
	if err := e.AuthorizeWrite(ctx); err != nil {
		return ProfileUpdateResult{}, err
	}
	if req.Attempt >= e.maxRetries() {
		e.metricInc(MetricProfileRetryExhausted)
		e.emitAudit(ctx, auditEventProfileRetryExhausted, false, subjectFromContext(ctx), req.RecordID, ErrReloadRequired, nil)
		return ProfileUpdateResult{}, ErrReloadRequired
	}
	if len(req.Groups) == 0 {
		return ProfileUpdateResult{NewVersion: req.ExpectedVersion, NoOp: true}, nil
	}

	noop, err := e.wouldBeNoOp(ctx, req)
	if err != nil {
		return ProfileUpdateResult{}, err
	}
	if noop {
		e.metricInc(MetricProfileNoopSkipped)
		e.emitAudit(ctx, auditEventProfileNoopSkipped, true, subjectFromContext(ctx), req.RecordID, nil, nil)
		return ProfileUpdateResult{NewVersion: req.ExpectedVersion, NoOp: true}, nil
	}

	res, err := e.coordinator.ApplyGroups(ctx, req.RecordID, req.ExpectedVersion, req.Groups)
	if err != nil {
		var conflict *mutation.ConflictError
		if errors.As(err, &conflict) {
			e.metricInc(MetricProfileConflict)
			e.emitAudit(ctx, auditEventProfileConflict, false, subjectFromContext(ctx), req.RecordID, err, func() map[string]string {
				return map[string]string{
					"expected_version": strconv.FormatInt(conflict.ExpectedVersion, 10),
					"stored_version":   strconv.FormatInt(conflict.StoredVersion, 10),
					"attempt":          itoa(req.Attempt + 1),
				}
			})
			return ProfileUpdateResult{}, err
		}
		if errors.Is(err, store.ErrNotFound) {
			return ProfileUpdateResult{}, errors.Join(ErrRecordNotFound, err)
		}
		return ProfileUpdateResult{}, err
	}

	e.metricInc(MetricProfileApplied)
	e.emitAudit(ctx, auditEventProfileApplied, true, subjectFromContext(ctx), req.RecordID, nil, func() map[string]string {
		return map[string]string{"new_version": strconv.FormatInt(res.NewVersion, 10)}
	})

	return ProfileUpdateResult{NewVersion: res.NewVersion, UpdatedFields: res.UpdatedFields}, nil
}

// wouldBeNoOp simulates all groups against the current record without writing.
func (e *Engine) wouldBeNoOp(ctx context.Context, req ProfileUpdateRequest) (bool, error) {
	doc, err := e.documents.Get(ctx, req.RecordID)
	if errors.Is(err, store.ErrNotFound) {
		return false, errors.Join(ErrRecordNotFound, err)
	}
	if err != nil {
		return false, err
	}

	fields := doc.Clone()
	changed := false
	for _, g := range req.Groups {
		if mutation.Changed(fields, g.Update) {
			changed = true
			break
		}
		fields = g.Update(fields)
	}
	return !changed, nil
}

// ResolveProfileConflict executes the caller's conflict decision.
//
// Reload discards the local edit and returns the authoritative record; the
// caller starts over with Attempt zero. Rebase re-applies the edit on top of
// the authoritative version — an explicit overwrite — and counts as another
// attempt.
func (e *Engine) ResolveProfileConflict(ctx context.Context, req ConflictResolutionRequest) (store.Document, ProfileUpdateResult, error) {
	if !e.ready() {
		return store.Document{}, ProfileUpdateResult{}, ErrEngineNotReady
	}

	switch req.Resolution {
	case mutation.ResolutionReload:
		doc, err := e.LoadProfile(ctx, req.RecordID)
		if err != nil {
			return store.Document{}, ProfileUpdateResult{}, err
		}
		e.emitAudit(ctx, auditEventProfileConflictResolved, true, subjectFromContext(ctx), req.RecordID, nil, func() map[string]string {
			return map[string]string{"resolution": "reload"}
		})
		return doc, ProfileUpdateResult{NewVersion: doc.Version, NoOp: true}, nil

	case mutation.ResolutionRebase:
		doc, err := e.documents.Get(ctx, req.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, ProfileUpdateResult{}, errors.Join(ErrRecordNotFound, err)
		}
		if err != nil {
			return store.Document{}, ProfileUpdateResult{}, err
		}

		// A rebase is itself another attempt; the increment happens here so a
		// client echoing its original counter cannot rebase past the bound.
		res, err := e.UpdateProfile(ctx, ProfileUpdateRequest{
			RecordID:        req.RecordID,
			ExpectedVersion: doc.Version,
			Groups:          req.Groups,
			Attempt:         req.Attempt + 1,
		})
		if err != nil {
			return store.Document{}, ProfileUpdateResult{}, err
		}
		e.emitAudit(ctx, auditEventProfileConflictResolved, true, subjectFromContext(ctx), req.RecordID, nil, func() map[string]string {
			return map[string]string{"resolution": "rebase"}
		})
		return doc, res, nil

	default:
		return store.Document{}, ProfileUpdateResult{}, fmt.Errorf("authcore: unknown conflict resolution %d", req.Resolution)
	}
}

// UpdateProfileWithRetry runs the edit in a bounded rebase loop with
// exponential backoff between attempts, for callers without a user to prompt
// (batch jobs, webhooks). Interactive callers should surface the conflict
// instead.
func (e *Engine) UpdateProfileWithRetry(ctx context.Context, recordID string, groups []mutation.Group) (ProfileUpdateResult, error) {
	if !e.ready() {
		return ProfileUpdateResult{}, ErrEngineNotReady
	}

	attempt := 0
	var result ProfileUpdateResult

	operation := func() error {
		doc, err := e.documents.Get(ctx, recordID)
		if errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(errors.Join(ErrRecordNotFound, err))
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		res, err := e.UpdateProfile(ctx, ProfileUpdateRequest{
			RecordID:        recordID,
			ExpectedVersion: doc.Version,
			Groups:          groups,
			Attempt:         attempt,
		})
		if err != nil {
			var conflict *mutation.ConflictError
			if errors.As(err, &conflict) {
				attempt++
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(e.retryBackoff(), uint64(e.maxRetries())),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var conflict *mutation.ConflictError
		if errors.As(err, &conflict) {
			e.metricInc(MetricProfileRetryExhausted)
			return ProfileUpdateResult{}, errors.Join(ErrReloadRequired, err)
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return ProfileUpdateResult{}, permanent.Unwrap()
		}
		return ProfileUpdateResult{}, err
	}
	return result, nil
}

func (e *Engine) maxRetries() int {
	if e.config.Mutation.MaxRetries > 0 {
		return e.config.Mutation.MaxRetries
	}
	return mutation.MaxConflictRetries
}

func (e *Engine) retryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if e.config.Mutation.InitialBackoff > 0 {
		b.InitialInterval = e.config.Mutation.InitialBackoff
	}
	return b
}
