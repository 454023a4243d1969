package session

import "time"

// ClaimSet is a bitmask of capability claims carried by a session record.
type ClaimSet uint8

const (
	// ClaimAdministrator marks staff accounts with administrative access.
	ClaimAdministrator ClaimSet = 1 << iota
	// ClaimConsentSigned is set once the subject has a signed consent form on file.
	ClaimConsentSigned
	// ClaimPasskeyEnrolled is set when the subject authenticated with a passkey.
	// Sessions carrying it qualify for the extended TTL tier.
	ClaimPasskeyEnrolled
	// ClaimProfileComplete is set once all required profile field groups are filled.
	ClaimProfileComplete
	// ClaimMinor marks subjects under the age of majority.
	ClaimMinor
)

// Has reports whether every claim in mask is present.
func (c ClaimSet) Has(mask ClaimSet) bool {
	return c&mask == mask
}

// With returns c with every claim in mask set.
func (c ClaimSet) With(mask ClaimSet) ClaimSet {
	return c | mask
}

// Without returns c with every claim in mask cleared.
func (c ClaimSet) Without(mask ClaimSet) ClaimSet {
	return c &^ mask
}

// Record is the session payload sealed into a transport token.
//
// A Record is only valid for the environment tag it was minted in. The codec
// stamps Environment at mint time and rejects foreign tags at open time, even
// when the token decrypts cleanly.
type Record struct {
	Subject     string
	DisplayName string
	Claims      ClaimSet
	Environment string
	CreatedAt   int64 // unix seconds, preserved across Merge
}

// Tier selects the session TTL granted at mint time.
type Tier uint8

const (
	// TierStandard is the default session lifetime.
	TierStandard Tier = iota
	// TierExtended is granted only to sessions established with a stronger
	// authentication method (passkey).
	TierExtended
)

const (
	// StandardTTL is the default session lifetime.
	StandardTTL = 90 * 24 * time.Hour
	// ExtendedTTL is roughly double the standard tier.
	ExtendedTTL = 180 * 24 * time.Hour
)

// TTL returns the lifetime for the tier given the configured tier durations.
func (t Tier) TTL(standard, extended time.Duration) time.Duration {
	if t == TierExtended {
		return extended
	}
	return standard
}
