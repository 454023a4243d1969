package authcore

import (
	"context"
	"errors"

	"github.com/Natural-Highs/authcore/session"
)

// IssueSession mints a sealed session token after a successful login.
//
// The extended tier is reserved for passkey-established sessions: without
// [session.ClaimPasskeyEnrolled] the session is minted at the standard tier
// regardless of the requested one.
//
// The caller vouches that the identity provider completed a real round-trip
// (that is what a login is), so the grace baseline is refreshed here as well.
func (e *Engine) IssueSession(ctx context.Context, subject, displayName string, claims session.ClaimSet, tier session.Tier) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if subject == "" {
		return "", errors.Join(ErrSessionInvalid, errors.New("empty subject"))
	}
	if tier == session.TierExtended && !claims.Has(session.ClaimPasskeyEnrolled) {
		tier = session.TierStandard
	}

	token, err := e.codec.Mint(session.Record{
		Subject:     subject,
		DisplayName: displayName,
		Claims:      claims,
	}, tier)
	if err != nil {
		return "", mapSessionError(err)
	}

	if err := e.arbiter.RecordAvailable(ctx); err != nil {
		// The session is valid regardless; surface the baseline problem to
		// operators without failing the login.
		e.emitAudit(ctx, auditEventGraceBaselineError, false, subject, "", err, nil)
	}

	e.metricInc(MetricSessionMinted)
	e.emitAudit(ctx, auditEventSessionMinted, true, subject, "", nil, func() map[string]string {
		meta := map[string]string{"tier": "standard"}
		if tier == session.TierExtended {
			meta["tier"] = "extended"
		}
		return meta
	})

	return token, nil
}

// OpenSession unseals and validates a token, returning the session record.
// Failures arrive as the specific taxonomy errors: [ErrSessionInvalid],
// [ErrSessionExpired], or [ErrWrongEnvironment] — never a generic failure,
// because callers act on each differently.
func (e *Engine) OpenSession(ctx context.Context, token string) (session.Record, error) {
	if !e.ready() {
		return session.Record{}, ErrEngineNotReady
	}

	rec, usedPrevious, err := e.codec.OpenWithRotationInfo(token)
	if err != nil {
		mapped := mapSessionError(err)
		switch {
		case errors.Is(mapped, ErrSessionExpired):
			e.metricInc(MetricSessionExpired)
		case errors.Is(mapped, ErrWrongEnvironment):
			// A cryptographically valid token from another environment is a
			// potential replay; audit with the caller's IP.
			e.metricInc(MetricSessionWrongEnvironment)
			e.emitAudit(ctx, auditEventSessionWrongEnvironment, false, "", "", mapped, func() map[string]string {
				return map[string]string{"environment": e.config.Environment}
			})
			return session.Record{}, mapped
		default:
			e.metricInc(MetricSessionInvalid)
		}
		e.emitAudit(ctx, auditEventSessionOpenFailed, false, "", "", mapped, nil)
		return session.Record{}, mapped
	}

	if usedPrevious {
		e.metricInc(MetricSecretFallback)
	}
	e.metricInc(MetricSessionOpened)

	return rec, nil
}

// MergeSessionClaims applies a claim change to both the provider account and
// the sealed token, returning the re-sealed token. Subject identity and the
// creation timestamp are preserved.
func (e *Engine) MergeSessionClaims(ctx context.Context, token string, partial session.Partial) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	rec, err := e.OpenSession(ctx, token)
	if err != nil {
		return "", err
	}

	if e.provider != nil && (partial.Grant != 0 || partial.Revoke != 0) {
		if err := e.provider.UpdateClaims(ctx, rec.Subject, partial.Grant, partial.Revoke); err != nil {
			return "", errors.Join(ErrProviderUnavailable, err)
		}
	}

	merged, err := e.codec.Merge(token, partial)
	if err != nil {
		return "", mapSessionError(err)
	}

	e.metricInc(MetricSessionMerged)
	e.emitAudit(ctx, auditEventSessionMerged, true, rec.Subject, "", nil, nil)

	return merged, nil
}

// RevokeSession records an explicit logout. Sealed tokens cannot be recalled;
// destruction is the transport clearing the cookie, which the middleware does
// on the back of this call.
func (e *Engine) RevokeSession(ctx context.Context, token string) {
	if !e.ready() {
		return
	}
	subject := ""
	if rec, err := e.codec.Open(token); err == nil {
		subject = rec.Subject
	}
	e.emitAudit(ctx, auditEventSessionRevoked, true, subject, "", nil, nil)
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, session.ErrWrongEnvironment):
		return ErrWrongEnvironment
	case errors.Is(err, session.ErrSecretMissing):
		return errors.Join(ErrConfiguration, err)
	case errors.Is(err, session.ErrInvalid):
		return ErrSessionInvalid
	}
	return err
}
