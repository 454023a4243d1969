package grace

import (
	"context"
	"math"
	"time"
)

// DefaultWindow is the grace window granted from the last confirmed provider
// availability. Exposed as a named constant so deployments can reason about it.
const DefaultWindow = 4 * time.Hour

// DefaultProbeTimeout bounds the availability probe so a hung provider cannot
// stall the grace decision.
const DefaultProbeTimeout = 3 * time.Second

// timeNow is time.Now but pulled out as a variable for tests.
var timeNow = time.Now

// State is the derived grace-period decision. It is computed fresh on every
// check and never stored.
type State struct {
	// InGrace is true only when the provider is unreachable AND the window
	// from the last confirmed availability has not lapsed.
	InGrace bool
	// GraceEndsAt is non-nil whenever a baseline exists, even past expiry, so
	// callers can render "grace ended at X" rather than nothing.
	GraceEndsAt *time.Time
	// ProviderAvailable reflects the live probe result.
	ProviderAvailable bool
	// MinutesRemaining is the ceiling of the time left in the window, 0 when
	// not in grace.
	MinutesRemaining int
}

// Evaluate computes the grace decision. Pure: no clock reads, no I/O.
//
// A nil lastValid means no baseline exists; a brand-new session cannot start
// degraded, so the result is hard-unavailable with no grace end.
func Evaluate(lastValid *time.Time, providerAvailable bool, now time.Time, window time.Duration) State {
	if providerAvailable {
		return State{ProviderAvailable: true}
	}
	if lastValid == nil {
		return State{}
	}

	graceEnd := lastValid.Add(window)
	st := State{GraceEndsAt: &graceEnd}
	if now.Before(graceEnd) {
		st.InGrace = true
		st.MinutesRemaining = int(math.Ceil(graceEnd.Sub(now).Minutes()))
	}
	return st
}

// BaselineStore is the persisted LastValidAuthMoment cell. Implementations
// must be safe across service instances; the arbiter treats the cell as an
// opaque atomically read/written value.
type BaselineStore interface {
	LastValidAuthMoment(ctx context.Context) (*time.Time, error)
	RecordValidAuthMoment(ctx context.Context, t time.Time) error
}

// Prober performs a lightweight reachability check against the identity
// provider. available reports the grace decision input; verified reports
// whether a real credential round-trip backed it. Implementations return
// available=true with verified=false when there is no credential to check
// yet, so a brand-new client is not blocked from onboarding — but only a
// verified probe is proof of reachability. (This makes a genuinely down
// provider invisible to never-authenticated clients until their first write
// fails; preserved deliberately, see DESIGN.md.)
type Prober interface {
	ProbeAvailability(ctx context.Context) (available, verified bool)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) (bool, bool)

// ProbeAvailability calls f.
func (f ProberFunc) ProbeAvailability(ctx context.Context) (bool, bool) { return f(ctx) }

// Arbiter combines the probe, the persisted baseline, and the configured
// window into grace decisions. It is stateless and safe for concurrent use.
type Arbiter struct {
	baseline     BaselineStore
	prober       Prober
	window       time.Duration
	probeTimeout time.Duration
}

// NewArbiter builds an Arbiter. A zero window falls back to DefaultWindow and
// a zero probe timeout to DefaultProbeTimeout.
func NewArbiter(baseline BaselineStore, prober Prober, window, probeTimeout time.Duration) *Arbiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Arbiter{
		baseline:     baseline,
		prober:       prober,
		window:       window,
		probeTimeout: probeTimeout,
	}
}

// RecordAvailable persists now() as the grace baseline. Call it only after a
// real, successful round-trip confirmed the provider reachable.
func (a *Arbiter) RecordAvailable(ctx context.Context) error {
	return a.baseline.RecordValidAuthMoment(ctx, timeNow())
}

// Check probes the provider under the configured deadline, reads the baseline,
// and evaluates the grace decision.
//
// Only a verified probe refreshes the baseline: an available-but-unverified
// result (nothing to check yet) must never advance the shared cell, or
// anonymous traffic during an outage would silently reopen a lapsed window
// for everyone else. A baseline write failure does not invalidate the
// decision: Check returns the evaluated State together with the error so
// callers can surface it without denying the request.
func (a *Arbiter) Check(ctx context.Context) (State, error) {
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	now := timeNow()
	if available, verified := a.prober.ProbeAvailability(probeCtx); available {
		st := Evaluate(nil, true, now, a.window)
		if !verified {
			return st, nil
		}
		return st, a.RecordAvailable(ctx)
	}

	lastValid, err := a.baseline.LastValidAuthMoment(ctx)
	if err != nil {
		return State{}, err
	}
	return Evaluate(lastValid, false, now, a.window), nil
}

// Window returns the configured grace window.
func (a *Arbiter) Window() time.Duration { return a.window }
