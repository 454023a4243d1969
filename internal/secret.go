// Package internal holds helpers shared by authcore packages but hidden from
// importers: seal-secret generation and decoding.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SealSecretSize is the raw byte length of generated unseal secrets.
const SealSecretSize = 32

// NewSealSecret generates a random unseal secret in its base64url transport
// form, suitable for configuration files and environment variables.
func NewSealSecret() (string, error) {
	var raw [SealSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeSealSecret decodes a configured secret from base64url and enforces
// the minimum length. Configuration with a missing or weak secret must fail
// here, never degrade into an unsealed mode.
func DecodeSealSecret(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, errors.New("seal secret is empty")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("seal secret is not base64url: %w", err)
	}
	if len(raw) < SealSecretSize {
		return nil, fmt.Errorf("seal secret is %d bytes, need at least %d", len(raw), SealSecretSize)
	}
	return raw, nil
}
