// Package middleware exposes HTTP adapters for cookie-carried sessions and
// degraded-mode enforcement built on top of authcore.Engine.
//
// # Guards
//
//   - [Guard] — unseals the session cookie and injects the record into the
//     request context.
//   - [RequireReadable] — rejects requests once the grace window has lapsed.
//   - [RequireWritable] — additionally rejects writes while degraded.
//
// Failures are answered with a small JSON body whose "error" field carries a
// machine-checkable code, so clients branch on the code instead of parsing
// prose.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT make
// authentication or concurrency decisions itself — all decisions are
// delegated to the Engine.
//
// # What this package must NOT do
//
//   - Unseal or mint tokens directly (delegates to the Engine).
//   - Touch the document store (the Engine handles I/O).
//   - Invent error codes the Engine taxonomy does not have.
package middleware
