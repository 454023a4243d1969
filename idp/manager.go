package idp

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Natural-Highs/authcore/session"
)

// SigningMethod selects the credential signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs credentials with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs credentials with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// DefaultCredentialTTL bounds the lifetime of a provider credential. These are
// probe/API tokens, not sessions; they are meant to be re-fetched.
const DefaultCredentialTTL = 5 * time.Minute

var (
	// ErrUnavailable is returned when the provider cannot serve the request.
	ErrUnavailable = errors.New("idp: provider unavailable")

	// ErrSubjectUnknown is returned for subjects the provider has no account for.
	ErrSubjectUnknown = errors.New("idp: unknown subject")

	// ErrCredentialInvalid is returned for credentials that fail verification.
	ErrCredentialInvalid = errors.New("idp: credential invalid")
)

// Config carries Manager construction parameters.
type Config struct {
	CredentialTTL time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HS256 shared secret or the Ed25519 private key seed.
	PrivateKey []byte
	// PublicKey is required for Ed25519 verification.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// CredentialClaims is the JWT payload of a provider credential.
type CredentialClaims struct {
	Claims uint8 `json:"clm,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies provider credentials and tracks subject claims.
// Safe for concurrent use after construction.
type Manager struct {
	config Config

	mu       sync.RWMutex
	subjects map[string]session.ClaimSet
	// degraded simulates a provider outage; FreshCredential fails while set.
	degraded bool
}

// NewManager builds a Manager, failing fast on unusable key material.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = DefaultCredentialTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("idp: invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("idp: hs256 requires a private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) != ed25519.SeedSize {
			return nil, errors.New("idp: ed25519 requires a 32-byte private key seed")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("idp: ed25519 requires a public key")
		}
	default:
		return nil, errors.New("idp: unsupported signing method")
	}

	return &Manager{
		config:   cfg,
		subjects: make(map[string]session.ClaimSet),
	}, nil
}

// RegisterSubject creates or replaces a subject's claim set.
func (m *Manager) RegisterSubject(subject string, claims session.ClaimSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[subject] = claims
}

// SetDegraded toggles simulated provider unavailability. Used by tests and
// the load tool to exercise the grace path.
func (m *Manager) SetDegraded(degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded = degraded
}

// FreshCredential issues a short-lived credential for subject, or fails when
// the provider is unreachable or the subject unknown. This is the round-trip
// the grace arbiter treats as proof of availability.
func (m *Manager) FreshCredential(ctx context.Context, subject string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.RLock()
	claims, known := m.subjects[subject]
	degraded := m.degraded
	m.mu.RUnlock()

	if degraded {
		return "", ErrUnavailable
	}
	if !known {
		return "", ErrSubjectUnknown
	}

	now := time.Now()
	token := jwt.NewWithClaims(m.method(), CredentialClaims{
		Claims: uint8(claims),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.CredentialTTL)),
		},
	})

	signed, err := token.SignedString(m.signKey())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return signed, nil
}

// Verify checks a credential and returns its subject and claim set.
func (m *Manager) Verify(credential string) (string, session.ClaimSet, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(credential, &CredentialClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey(), nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid {
		return "", 0, ErrCredentialInvalid
	}
	return claims.Subject, session.ClaimSet(claims.Claims), nil
}

// UpdateClaims grants and revokes claims on a subject's provider account.
func (m *Manager) UpdateClaims(ctx context.Context, subject string, grant, revoke session.ClaimSet) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.degraded {
		return ErrUnavailable
	}
	claims, known := m.subjects[subject]
	if !known {
		return ErrSubjectUnknown
	}
	m.subjects[subject] = claims.With(grant).Without(revoke)
	return nil
}

// SubjectClaims reads a subject's current provider-side claim set.
func (m *Manager) SubjectClaims(subject string) (session.ClaimSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	claims, ok := m.subjects[subject]
	return claims, ok
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *Manager) signKey() any {
	if m.config.SigningMethod == MethodEd25519 {
		return ed25519.NewKeyFromSeed(m.config.PrivateKey)
	}
	return m.config.PrivateKey
}

func (m *Manager) verifyKey() any {
	if m.config.SigningMethod == MethodEd25519 {
		return ed25519.PublicKey(m.config.PublicKey)
	}
	return m.config.PrivateKey
}
