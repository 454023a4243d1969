package authcore

import (
	"context"
	"time"
)

const (
	auditEventSessionMinted           = "session_minted"
	auditEventSessionOpenFailed       = "session_open_failed"
	auditEventSessionWrongEnvironment = "session_wrong_environment"
	auditEventSessionMerged           = "session_merged"
	auditEventSessionRevoked          = "session_revoked"
	auditEventGraceEntered            = "grace_entered"
	auditEventGraceWriteRejected      = "grace_write_rejected"
	auditEventGraceLapsed             = "grace_lapsed"
	auditEventGraceBaselineError      = "grace_baseline_error"
	auditEventProfileCreated          = "profile_created"
	auditEventProfileApplied          = "profile_applied"
	auditEventProfileNoopSkipped      = "profile_noop_skipped"
	auditEventProfileConflict         = "profile_conflict"
	auditEventProfileConflictResolved = "profile_conflict_resolved"
	auditEventProfileRetryExhausted   = "profile_retry_exhausted"
)

// emitAudit queues one event. metaFn is evaluated lazily so disabled audit
// costs nothing on the request path.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	recordID string,
	failure error,
	metaFn func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Subject:   subject,
		RecordID:  recordID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	e.audit.Dispatch(ctx, event)
}
