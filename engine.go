package authcore

import (
	"time"

	"github.com/Natural-Highs/authcore/grace"
	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/session"
	"github.com/Natural-Highs/authcore/store"
)

// Engine composes the session codec, the grace-period arbiter, and the
// versioned-mutation coordinator behind one request-per-call surface.
//
// Engine instances are built once through [Builder.Build] and are then
// immutable and safe for concurrent use from any number of goroutines.
type Engine struct {
	config      Config
	codec       *session.Codec
	arbiter     *grace.Arbiter
	coordinator *mutation.Coordinator
	documents   store.DocumentStore
	provider    IdentityProvider
	audit       *auditDispatcher
	metrics     *Metrics
}

// Close flushes and stops the audit dispatcher. The Engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under load.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Environment returns the configured runtime environment tag.
func (e *Engine) Environment() string {
	if e == nil {
		return ""
	}
	return e.config.Environment
}

// SessionTTL returns the cookie lifetime for a tier.
func (e *Engine) SessionTTL(tier session.Tier) time.Duration {
	return tier.TTL(e.config.Session.StandardTTL, e.config.Session.ExtendedTTL)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.coordinator != nil && e.documents != nil && e.arbiter != nil
}
