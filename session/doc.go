// Package session implements the sealed session codec: a compact binary session
// record encrypted into an opaque transport token with XChaCha20-Poly1305.
//
// # Sealing
//
// Records are encoded into a compact binary format (format-version byte first,
// append-only schema) and then sealed with an AEAD cipher derived from the
// configured secret. The transport form is unpadded base64url. Tokens carry
// their own expiry; the codec never consults external storage.
//
// # Secret rotation
//
// A codec holds a current key and, optionally, a previous key. Open tries the
// current key first and falls back to the previous one, so tokens minted before
// a rotation stay valid until they expire. Mint always seals with the current
// key. This bounds the exposure of a rotated secret to the longest session TTL.
//
// # Architecture boundaries
//
// This package owns token sealing, expiry, and environment binding. It does NOT
// decide what a session is allowed to do, talk to the identity provider, or
// touch HTTP cookies — those responsibilities belong to the Engine and the
// middleware package.
//
// # What this package must NOT do
//
//   - Perform I/O of any kind (every operation is pure).
//   - Accept a token sealed for a different environment tag, even when it
//     decrypts cleanly.
//   - Silently downgrade when no secret is configured.
package session
