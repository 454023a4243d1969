// Package store provides the persistent collaborators consumed by the
// mutation coordinator and the grace arbiter: a versioned document store with
// an atomic conditional-write primitive, and the single persisted
// last-valid-auth timestamp cell.
//
// # Versioning contract
//
// Every document carries one integer version. A successful Put increments it
// by exactly one; a Put whose expected version does not equal the stored
// version fails atomically with [ErrVersionMismatch] and no partial effect.
// Concurrency safety lives entirely in this primitive — callers hold no locks.
//
// Backends: in-memory (tests and examples), Redis (Lua compare-and-swap),
// Postgres (conditional UPDATE via pgx), and SQLite (modernc, CGO-free).
package store
