package idp

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/Natural-Highs/authcore/session"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore-test",
	})
	if err != nil {
		t.Fatalf("manager construction failed: %v", err)
	}
	return m
}

func TestFreshCredentialRoundTrip(t *testing.T) {
	m := newTestManager(t)
	m.RegisterSubject("sub-1", session.ClaimConsentSigned)

	cred, err := m.FreshCredential(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("fresh credential failed: %v", err)
	}

	subject, claims, err := m.Verify(cred)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if subject != "sub-1" {
		t.Fatalf("subject = %q, want sub-1", subject)
	}
	if !claims.Has(session.ClaimConsentSigned) {
		t.Fatalf("claims not carried: %v", claims)
	}
}

func TestFreshCredentialUnknownSubject(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.FreshCredential(context.Background(), "ghost"); !errors.Is(err, ErrSubjectUnknown) {
		t.Fatalf("expected ErrSubjectUnknown, got %v", err)
	}
}

func TestFreshCredentialDegraded(t *testing.T) {
	m := newTestManager(t)
	m.RegisterSubject("sub-1", 0)
	m.SetDegraded(true)

	if _, err := m.FreshCredential(context.Background(), "sub-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	m.SetDegraded(false)
	if _, err := m.FreshCredential(context.Background(), "sub-1"); err != nil {
		t.Fatalf("expected recovery after degradation cleared: %v", err)
	}
}

func TestFreshCredentialHonorsContextDeadline(t *testing.T) {
	m := newTestManager(t)
	m.RegisterSubject("sub-1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.FreshCredential(ctx, "sub-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on dead context, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	m := newTestManager(t)
	m.RegisterSubject("sub-1", 0)

	cred, err := m.FreshCredential(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("fresh credential failed: %v", err)
	}

	if _, _, err := m.Verify(cred + "x"); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}

	other := newTestManager(t)
	other.config.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	if _, _, err := other.Verify(cred); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid under wrong key, got %v", err)
	}
}

func TestUpdateClaims(t *testing.T) {
	m := newTestManager(t)
	m.RegisterSubject("sub-1", session.ClaimConsentSigned)

	err := m.UpdateClaims(context.Background(), "sub-1",
		session.ClaimProfileComplete, session.ClaimConsentSigned)
	if err != nil {
		t.Fatalf("update claims failed: %v", err)
	}

	claims, ok := m.SubjectClaims("sub-1")
	if !ok {
		t.Fatal("subject lost")
	}
	if !claims.Has(session.ClaimProfileComplete) || claims.Has(session.ClaimConsentSigned) {
		t.Fatalf("claims not merged: %v", claims)
	}

	if err := m.UpdateClaims(context.Background(), "ghost", 0, 0); !errors.Is(err, ErrSubjectUnknown) {
		t.Fatalf("expected ErrSubjectUnknown, got %v", err)
	}
}

func TestEd25519Credentials(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv.Seed(),
		PublicKey:     pub,
		CredentialTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("manager construction failed: %v", err)
	}
	m.RegisterSubject("sub-1", session.ClaimMinor)

	cred, err := m.FreshCredential(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("fresh credential failed: %v", err)
	}
	subject, claims, err := m.Verify(cred)
	if err != nil || subject != "sub-1" || !claims.Has(session.ClaimMinor) {
		t.Fatalf("ed25519 round trip failed: %q %v %v", subject, claims, err)
	}
}

func TestNewManagerFailFast(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected failure for missing hs256 key")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected failure for bad ed25519 seed")
	}
	if _, err := NewManager(Config{SigningMethod: "rsa"}); err == nil {
		t.Fatal("expected failure for unsupported method")
	}
}
