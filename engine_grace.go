package authcore

import (
	"context"
	"strconv"
	"time"

	"github.com/Natural-Highs/authcore/grace"
)

// engineProber adapts the identity provider into the arbiter's probe: a real
// credential round-trip for the subject on the context.
//
// With no subject attached or no provider configured there is nothing to
// verify, and the probe reports available-but-unverified so
// never-authenticated clients can still onboard without advancing the shared
// grace baseline.
type engineProber struct {
	engine *Engine
}

func (p engineProber) ProbeAvailability(ctx context.Context) (bool, bool) {
	if p.engine == nil || p.engine.provider == nil {
		return true, false
	}
	subject := subjectFromContext(ctx)
	if subject == "" {
		return true, false
	}
	if _, err := p.engine.provider.FreshCredential(ctx, subject); err != nil {
		p.engine.metricInc(MetricProbeFailure)
		return false, false
	}
	return true, true
}

// GraceState probes the provider and evaluates the current degraded-mode
// decision for the subject on ctx.
func (e *Engine) GraceState(ctx context.Context) (grace.State, error) {
	if !e.ready() {
		return grace.State{}, ErrEngineNotReady
	}

	state, err := e.arbiter.Check(ctx)
	if err != nil && state == (grace.State{}) {
		return grace.State{}, err
	}
	if err != nil {
		// Baseline write failed after a successful probe; the decision stands.
		e.emitAudit(ctx, auditEventGraceBaselineError, false, subjectFromContext(ctx), "", err, nil)
	}

	if !state.ProviderAvailable {
		switch {
		case state.InGrace:
			e.metricInc(MetricGraceEntered)
			e.emitAudit(ctx, auditEventGraceEntered, true, subjectFromContext(ctx), "", nil, func() map[string]string {
				return map[string]string{"minutes_remaining": itoa(state.MinutesRemaining)}
			})
		case state.GraceEndsAt != nil:
			e.metricInc(MetricGraceLapsed)
			e.emitAudit(ctx, auditEventGraceLapsed, false, subjectFromContext(ctx), "", ErrGraceLapsed, nil)
		}
	}

	return state, nil
}

// AuthorizeRead permits reads when the provider is reachable or the grace
// window is still open. Past the window it returns [ErrGraceLapsed]; with no
// baseline at all, [ErrProviderUnavailable].
func (e *Engine) AuthorizeRead(ctx context.Context) error {
	state, err := e.GraceState(ctx)
	if err != nil {
		return err
	}
	if state.ProviderAvailable || state.InGrace {
		return nil
	}
	if state.GraceEndsAt != nil {
		return ErrGraceLapsed
	}
	return ErrProviderUnavailable
}

// AuthorizeWrite permits writes only when the provider is verified reachable.
// During grace, writes are rejected with [ErrServiceDegraded]: a degraded
// session is read-only.
func (e *Engine) AuthorizeWrite(ctx context.Context) error {
	state, err := e.GraceState(ctx)
	if err != nil {
		return err
	}
	if state.ProviderAvailable {
		return nil
	}
	if state.InGrace {
		e.metricInc(MetricGraceWriteRejected)
		e.emitAudit(ctx, auditEventGraceWriteRejected, false, subjectFromContext(ctx), "", ErrServiceDegraded, nil)
		return ErrServiceDegraded
	}
	if state.GraceEndsAt != nil {
		return ErrGraceLapsed
	}
	return ErrProviderUnavailable
}

// GraceWindow returns the configured grace window.
func (e *Engine) GraceWindow() time.Duration {
	if e == nil || e.arbiter == nil {
		return 0
	}
	return e.arbiter.Window()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
