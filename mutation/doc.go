// Package mutation coordinates conflicting concurrent writes to one logical
// record with whole-record optimistic locking.
//
// Every write is a compare-and-swap against the record's single version
// counter, delegated to the store's atomic conditional-write primitive. The
// coordinator itself holds no mutable shared state and is safe to invoke
// concurrently from arbitrarily many callers.
//
// A stale expected version surfaces as a typed [*ConflictError] — a tagged
// result every call site is forced to handle, never a magic error-code string.
// Multi-group updates are applied strictly sequentially, each group using the
// version returned by the previous one; parallel writers racing on one
// expected version would make exactly one succeed and the rest conflict
// spuriously even on disjoint fields. This is whole-record locking, not
// field-level merge.
package mutation
