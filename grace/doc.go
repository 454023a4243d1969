// Package grace decides whether previously-authenticated clients may keep
// working read-only while the identity provider is unreachable.
//
// The decision is a pure function ([Evaluate]) over two inputs: the persisted
// moment the provider last proved availability, and a live reachability probe.
// [Arbiter] wires those inputs together; it owns no policy. Whether "in grace"
// means a request is allowed is decided by callers — the Engine rejects writes
// with a degraded-service error during grace and with a hard authentication
// error once grace has lapsed.
//
// # What this package must NOT do
//
//   - Hold in-process mutable state. The only stateful cell is the persisted
//     baseline, owned by the store and shared across service instances.
//   - Call the baseline writer speculatively. RecordAvailable runs only after
//     a real round-trip proves the provider reachable.
package grace
