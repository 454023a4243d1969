package authcore

import (
	"context"

	"github.com/Natural-Highs/authcore/session"
)

// IdentityProvider is the external authentication authority. Implementations
// must treat FreshCredential as a real round-trip: a nil error is the only
// acceptable proof of availability and is what refreshes the grace baseline.
type IdentityProvider interface {
	// FreshCredential obtains a fresh credential for subject, or fails when
	// the provider is unreachable or the subject unknown.
	FreshCredential(ctx context.Context, subject string) (string, error)

	// UpdateClaims grants and revokes capability claims on the subject's
	// provider account.
	UpdateClaims(ctx context.Context, subject string, grant, revoke session.ClaimSet) error
}
