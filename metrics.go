package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSessionMinted counts successfully minted sessions.
	MetricSessionMinted MetricID = iota
	// MetricSessionOpened counts successfully opened sessions.
	MetricSessionOpened
	// MetricSessionInvalid counts open failures from corrupt or forged tokens.
	MetricSessionInvalid
	// MetricSessionExpired counts open failures from expired tokens.
	MetricSessionExpired
	// MetricSessionWrongEnvironment counts cross-environment replay rejections.
	MetricSessionWrongEnvironment
	// MetricSecretFallback counts opens that needed the previous secret.
	MetricSecretFallback
	// MetricSessionMerged counts claim merges.
	MetricSessionMerged
	// MetricProbeFailure counts failed identity-provider probes.
	MetricProbeFailure
	// MetricGraceEntered counts checks that found the client inside the
	// grace window.
	MetricGraceEntered
	// MetricGraceWriteRejected counts writes rejected while degraded.
	MetricGraceWriteRejected
	// MetricGraceLapsed counts hard failures after the window ran out.
	MetricGraceLapsed
	// MetricProfileApplied counts successful conditional writes.
	MetricProfileApplied
	// MetricProfileConflict counts version conflicts.
	MetricProfileConflict
	// MetricProfileRetryExhausted counts edits refused after the retry bound.
	MetricProfileRetryExhausted
	// MetricProfileNoopSkipped counts no-op submissions that never reached
	// the store.
	MetricProfileNoopSkipped

	metricCount
)

// Metrics is a fixed set of atomic counters. Zero-cost when disabled (the
// Engine holds a nil *Metrics).
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter. Safe to call concurrently with Inc.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricCount))}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
