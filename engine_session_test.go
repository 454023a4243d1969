package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Natural-Highs/authcore/session"
	"github.com/Natural-Highs/authcore/store"
)

func TestIssueAndOpenSession(t *testing.T) {
	fx := newTestEngine(t, nil)
	ctx := context.Background()

	token, err := fx.engine.IssueSession(ctx, "user-1", "Jordan", session.ClaimConsentSigned, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	rec, err := fx.engine.OpenSession(ctx, token)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if rec.Subject != "user-1" || rec.DisplayName != "Jordan" {
		t.Fatalf("record = %+v", rec)
	}
	if !rec.Claims.Has(session.ClaimConsentSigned) {
		t.Fatal("consent claim lost in transit")
	}

	snap := fx.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionMinted] != 1 || snap.Counters[MetricSessionOpened] != 1 {
		t.Fatalf("counters = %v", snap.Counters)
	}
}

func TestIssueSessionRefreshesGraceBaseline(t *testing.T) {
	fx := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := fx.engine.IssueSession(ctx, "user-1", "", 0, session.TierStandard); err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	last, err := fx.baseline.LastValidAuthMoment(ctx)
	if err != nil {
		t.Fatalf("LastValidAuthMoment: %v", err)
	}
	if last == nil {
		t.Fatal("login did not record a grace baseline")
	}
}

func TestIssueSessionExtendedTierRequiresPasskey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.Secret = testSecret
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 16}

	sink := NewChannelSink(16)
	engine, err := New().
		WithConfig(cfg).
		WithDocumentStore(store.NewMemoryStore()).
		WithBaselineStore(store.NewMemoryBaseline()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	mintedTier := func(claims session.ClaimSet) string {
		t.Helper()
		if _, err := engine.IssueSession(context.Background(), "user-1", "", claims, session.TierExtended); err != nil {
			t.Fatalf("IssueSession: %v", err)
		}
		select {
		case event := <-sink.Events():
			return event.Metadata["tier"]
		case <-time.After(2 * time.Second):
			t.Fatal("no audit event delivered")
			return ""
		}
	}

	// Without the passkey claim the extended request is downgraded.
	if tier := mintedTier(0); tier != "standard" {
		t.Fatalf("tier without passkey = %q, want standard", tier)
	}
	if tier := mintedTier(session.ClaimPasskeyEnrolled); tier != "extended" {
		t.Fatalf("tier with passkey = %q, want extended", tier)
	}
}

func TestIssueSessionRejectsEmptySubject(t *testing.T) {
	fx := newTestEngine(t, nil)

	_, err := fx.engine.IssueSession(context.Background(), "", "", 0, session.TierStandard)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("err = %v, want ErrSessionInvalid", err)
	}
}

func TestOpenSessionGarbage(t *testing.T) {
	fx := newTestEngine(t, nil)

	for _, token := range []string{"", "not-a-token", "%%%%", "AAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		if _, err := fx.engine.OpenSession(context.Background(), token); !errors.Is(err, ErrSessionInvalid) {
			t.Errorf("token %q: err = %v, want ErrSessionInvalid", token, err)
		}
	}

	snap := fx.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionInvalid] != 4 {
		t.Fatalf("invalid counter = %d, want 4", snap.Counters[MetricSessionInvalid])
	}
}

func TestOpenSessionWrongEnvironment(t *testing.T) {
	staging := newTestEngine(t, func(cfg *Config) { cfg.Environment = EnvStaging })
	production := newTestEngine(t, func(cfg *Config) { cfg.Environment = EnvProduction })
	ctx := context.Background()

	token, err := staging.engine.IssueSession(ctx, "user-1", "", 0, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	_, err = production.engine.OpenSession(WithClientIP(ctx, "203.0.113.9"), token)
	if !errors.Is(err, ErrWrongEnvironment) {
		t.Fatalf("err = %v, want ErrWrongEnvironment", err)
	}

	snap := production.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionWrongEnvironment] != 1 {
		t.Fatalf("wrong-environment counter = %d, want 1", snap.Counters[MetricSessionWrongEnvironment])
	}
}

func TestOpenSessionAfterSecretRotation(t *testing.T) {
	ctx := context.Background()

	before := newTestEngine(t, nil)
	token, err := before.engine.IssueSession(ctx, "user-1", "", 0, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Rotation: old secret demoted to previous.
	after := newTestEngine(t, func(cfg *Config) {
		cfg.Session.Secret = testSecretNext
		cfg.Session.PreviousSecret = testSecret
	})

	rec, err := after.engine.OpenSession(ctx, token)
	if err != nil {
		t.Fatalf("OpenSession after rotation: %v", err)
	}
	if rec.Subject != "user-1" {
		t.Fatalf("subject = %q", rec.Subject)
	}

	snap := after.engine.MetricsSnapshot()
	if snap.Counters[MetricSecretFallback] != 1 {
		t.Fatalf("fallback counter = %d, want 1", snap.Counters[MetricSecretFallback])
	}

	// A second rotation retires the old secret entirely.
	final := newTestEngine(t, func(cfg *Config) {
		cfg.Session.Secret = testSecretNext
	})
	if _, err := final.engine.OpenSession(ctx, token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("err = %v, want ErrSessionInvalid once old secret retired", err)
	}
}

func TestMergeSessionClaims(t *testing.T) {
	fx := newTestEngine(t, nil)
	ctx := context.Background()

	token, err := fx.engine.IssueSession(ctx, "user-1", "Jordan", session.ClaimConsentSigned, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	merged, err := fx.engine.MergeSessionClaims(ctx, token, session.Partial{
		Grant: session.ClaimPasskeyEnrolled,
	})
	if err != nil {
		t.Fatalf("MergeSessionClaims: %v", err)
	}

	rec, err := fx.engine.OpenSession(ctx, merged)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if !rec.Claims.Has(session.ClaimConsentSigned) || !rec.Claims.Has(session.ClaimPasskeyEnrolled) {
		t.Fatalf("claims = %08b", rec.Claims)
	}
	if !fx.provider.claims["user-1"].Has(session.ClaimPasskeyEnrolled) {
		t.Fatal("claim grant did not reach the provider account")
	}
}

func TestMergeSessionClaimsProviderDown(t *testing.T) {
	fx := newTestEngine(t, nil)
	ctx := context.Background()

	token, err := fx.engine.IssueSession(ctx, "user-1", "", 0, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	fx.provider.setDegraded(true)
	_, err = fx.engine.MergeSessionClaims(ctx, token, session.Partial{Grant: session.ClaimAdministrator})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}

	// The token must stay on its old claims when the provider write failed.
	rec, err := fx.engine.OpenSession(ctx, token)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if rec.Claims.Has(session.ClaimAdministrator) {
		t.Fatal("claim granted despite provider failure")
	}
}

func TestMergeSessionClaimsDisplayNameOnly(t *testing.T) {
	fx := newTestEngine(t, nil)
	ctx := context.Background()

	token, err := fx.engine.IssueSession(ctx, "user-1", "Old Name", 0, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Display-name-only merges never touch the provider, so they work while
	// it is down.
	fx.provider.setDegraded(true)

	name := "New Name"
	merged, err := fx.engine.MergeSessionClaims(ctx, token, session.Partial{DisplayName: &name})
	if err != nil {
		t.Fatalf("MergeSessionClaims: %v", err)
	}

	rec, err := fx.engine.OpenSession(ctx, merged)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if rec.DisplayName != "New Name" {
		t.Fatalf("display name = %q", rec.DisplayName)
	}
}
