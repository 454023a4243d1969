package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// MinSecretLength is the minimum raw length of an unseal secret. Shorter
// secrets are rejected at construction time rather than weakening the cipher.
const MinSecretLength = 32

var (
	// ErrSecretMissing is returned by every codec operation when no secret of
	// sufficient length was configured. A misconfigured codec fails loudly; it
	// never mints unsealed tokens.
	ErrSecretMissing = errors.New("session: no unseal secret configured")

	// ErrInvalid is returned for tokens that fail decryption or decoding.
	ErrInvalid = errors.New("session: token invalid")

	// ErrExpired is returned for well-formed tokens past their expiry.
	ErrExpired = errors.New("session: token expired")

	// ErrWrongEnvironment is returned for well-formed, unexpired tokens minted
	// under a different environment tag. Callers should treat it as a potential
	// cross-environment replay and force re-login.
	ErrWrongEnvironment = errors.New("session: token minted for another environment")
)

// timeNow is time.Now but pulled out as a variable for tests.
var timeNow = time.Now

// Config carries codec construction parameters.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	// Secret is the current unseal secret. Required, at least MinSecretLength bytes.
	Secret []byte
	// PreviousSecret optionally holds the pre-rotation secret. Tokens minted
	// under it remain openable until they expire.
	PreviousSecret []byte
	// Environment is the runtime environment tag stamped into minted records.
	Environment string
	// StandardTTL and ExtendedTTL define the two mint tiers. Zero values fall
	// back to StandardTTL / ExtendedTTL package constants.
	StandardTTL time.Duration
	ExtendedTTL time.Duration
}

// Codec seals and unseals session records. All methods are pure and safe for
// concurrent use; the codec holds no mutable state after construction.
type Codec struct {
	current     cipher.AEAD
	previous    cipher.AEAD // nil when no rotation is in flight
	environment string
	standardTTL time.Duration
	extendedTTL time.Duration
}

// New builds a Codec. It fails fast on a missing or short secret and on an
// empty environment tag.
func New(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session: secret must be at least %d bytes: %w", MinSecretLength, ErrSecretMissing)
	}
	if cfg.Environment == "" {
		return nil, errors.New("session: environment tag required")
	}

	current, err := newAEAD(cfg.Secret)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		current:     current,
		environment: cfg.Environment,
		standardTTL: cfg.StandardTTL,
		extendedTTL: cfg.ExtendedTTL,
	}
	if c.standardTTL <= 0 {
		c.standardTTL = StandardTTL
	}
	if c.extendedTTL <= 0 {
		c.extendedTTL = ExtendedTTL
	}

	if len(cfg.PreviousSecret) > 0 {
		if len(cfg.PreviousSecret) < MinSecretLength {
			return nil, fmt.Errorf("session: previous secret must be at least %d bytes: %w", MinSecretLength, ErrSecretMissing)
		}
		if c.previous, err = newAEAD(cfg.PreviousSecret); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// newAEAD derives a fixed-size key from the secret and returns an
// XChaCha20-Poly1305 cipher.
func newAEAD(secret []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(secret)
	return chacha20poly1305.NewX(key[:])
}

// Mint seals rec into a transport token expiring one tier TTL from now.
// The record's Environment is always stamped with the codec's own tag, and a
// zero CreatedAt is set to now.
func (c *Codec) Mint(rec Record, tier Tier) (string, error) {
	if c == nil || c.current == nil {
		return "", ErrSecretMissing
	}

	now := timeNow()
	rec.Environment = c.environment
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now.Unix()
	}

	return c.seal(&envelope{
		record:    rec,
		expiresAt: now.Add(tier.TTL(c.standardTTL, c.extendedTTL)).Unix(),
	})
}

// Open unseals and validates a token. Checks run in order: cryptographic
// integrity, expiry, environment tag. Each failure maps to a distinct error
// ([ErrInvalid], [ErrExpired], [ErrWrongEnvironment]) because callers act on
// them differently.
func (c *Codec) Open(token string) (Record, error) {
	env, _, err := c.open(token)
	if err != nil {
		return Record{}, err
	}
	return env.record, nil
}

// OpenWithRotationInfo behaves like Open and additionally reports whether the
// token was sealed under the previous secret, so callers can count tokens
// still riding out a rotation.
func (c *Codec) OpenWithRotationInfo(token string) (Record, bool, error) {
	env, usedPrevious, err := c.open(token)
	if err != nil {
		return Record{}, false, err
	}
	return env.record, usedPrevious, nil
}

// Partial describes a claim merge applied by [Codec.Merge].
type Partial struct {
	Grant  ClaimSet
	Revoke ClaimSet
	// DisplayName replaces the record's display name when non-nil.
	DisplayName *string
}

// Merge re-seals the token's record with updated claims, preserving the
// subject, creation timestamp, and original expiry. The result is always
// sealed under the current secret, so merging also migrates tokens off a
// rotated previous secret.
func (c *Codec) Merge(token string, partial Partial) (string, error) {
	env, _, err := c.open(token)
	if err != nil {
		return "", err
	}

	env.record.Claims = env.record.Claims.With(partial.Grant).Without(partial.Revoke)
	if partial.DisplayName != nil {
		env.record.DisplayName = *partial.DisplayName
	}

	return c.seal(env)
}

func (c *Codec) seal(env *envelope) (string, error) {
	plaintext, err := encodeEnvelope(env)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.current.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := c.current.Seal(nil, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(append(ciphertext, nonce...)), nil
}

func (c *Codec) open(token string) (*envelope, bool, error) {
	if c == nil || c.current == nil {
		return nil, false, ErrSecretMissing
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, false, ErrInvalid
	}
	if len(data) <= c.current.NonceSize() {
		return nil, false, ErrInvalid
	}

	split := len(data) - c.current.NonceSize()
	ciphertext, nonce := data[:split], data[split:]

	usedPrevious := false
	plaintext, err := c.current.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		if c.previous == nil {
			return nil, false, ErrInvalid
		}
		if plaintext, err = c.previous.Open(nil, nonce, ciphertext, nil); err != nil {
			return nil, false, ErrInvalid
		}
		usedPrevious = true
	}

	env, err := decodeEnvelope(plaintext)
	if err != nil {
		return nil, false, ErrInvalid
	}

	if timeNow().Unix() >= env.expiresAt {
		return nil, false, ErrExpired
	}
	if env.record.Environment != c.environment {
		return nil, false, ErrWrongEnvironment
	}

	return env, usedPrevious, nil
}
