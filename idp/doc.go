// Package idp is the identity-provider client boundary: it mints and verifies
// short-lived provider credentials and manages subject claims.
//
// The production identity provider is an external service; [Manager] is the
// in-process reference implementation used by the grace-period prober, local
// development, and tests. Its FreshCredential call doubles as the "can I get a
// fresh token" reachability probe — a successful round-trip is the only event
// allowed to refresh the grace baseline.
package idp
