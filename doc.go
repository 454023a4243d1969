// Package authcore is the authentication-resilience and concurrency-safety
// core of the Natural Highs consent and event check-in application.
//
// It composes three independent subsystems behind one [Engine]:
//
//   - sealed session lifecycle with secret rotation and environment binding
//     (package session),
//   - a grace-period arbiter that lets previously-authenticated clients keep
//     working read-only through an identity-provider outage (package grace),
//   - an optimistic-concurrency coordinator that detects and resolves
//     conflicting concurrent writes to a versioned profile record
//     (package mutation).
//
// The package is designed for a request-per-call, stateless-service model:
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build], hold no in-process locks, and push
// all cross-instance coordination to the stores' atomic primitives.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy, and value types. The identity provider, the document
// store, and the HTTP/cookie transport are external collaborators reached
// only through the interfaces in this package.
//
// # What this package must NOT do
//
//   - Swallow session or configuration errors — they propagate to the
//     transport boundary as typed failures.
//   - Show a raw conflict to an end user — mutation-flow callers translate
//     conflicts into a resolution prompt.
//   - Keep cross-request mutable state in process. The persisted grace
//     baseline and the record version counters live in external stores.
package authcore
