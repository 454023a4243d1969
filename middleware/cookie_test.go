package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authcore "github.com/Natural-Highs/authcore"
	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/session"
	"github.com/Natural-Highs/authcore/store"
)

const testSecret = "dGVzdC1zZWNyZXQtdGVzdC1zZWNyZXQtdGVzdC1zZWNyZXQ"

type stubProvider struct {
	degraded bool
}

func (p *stubProvider) FreshCredential(_ context.Context, subject string) (string, error) {
	if p.degraded {
		return "", errors.New("provider unreachable")
	}
	return "credential-" + subject, nil
}

func (p *stubProvider) UpdateClaims(context.Context, string, session.ClaimSet, session.ClaimSet) error {
	if p.degraded {
		return errors.New("provider unreachable")
	}
	return nil
}

func newTestStack(t *testing.T) (*authcore.Engine, *stubProvider, *store.MemoryBaseline) {
	t.Helper()

	provider := &stubProvider{}
	baseline := store.NewMemoryBaseline()

	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithDocumentStore(store.NewMemoryStore()).
		WithBaselineStore(baseline).
		WithIdentityProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider, baseline
}

func testConfig() authcore.Config {
	return authcore.Config{
		Environment: authcore.EnvDevelopment,
		Session: authcore.SessionConfig{
			Secret:      testSecret,
			StandardTTL: session.StandardTTL,
			ExtendedTTL: session.ExtendedTTL,
		},
		Grace: authcore.GraceConfig{
			Window:       4 * time.Hour,
			ProbeTimeout: time.Second,
		},
		Mutation: authcore.MutationConfig{MaxRetries: 3},
		Metrics:  authcore.MetricsConfig{Enabled: true},
	}
}

func issueCookie(t *testing.T, engine *authcore.Engine, subject string) *http.Cookie {
	t.Helper()
	token, err := engine.IssueSession(context.Background(), subject, "", 0, session.TierStandard)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	return &http.Cookie{Name: SessionCookieName, Value: token}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestGuardInjectsRecord(t *testing.T) {
	engine, _, _ := newTestStack(t)

	var seen session.Record
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := RecordFromContext(r.Context())
		if !ok {
			t.Fatal("no record in context")
		}
		seen = rec
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(issueCookie(t, engine, "user-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if seen.Subject != "user-1" {
		t.Fatalf("record = %+v", seen)
	}
}

func TestGuardMissingCookie(t *testing.T) {
	engine, _, _ := newTestStack(t)

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without a session")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Error != CodeSessionInvalid {
		t.Fatalf("code = %q", body.Error)
	}
}

func TestGuardClearsBadCookie(t *testing.T) {
	engine, _, _ := newTestStack(t)

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached with a garbage session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}

	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("bad cookie was not cleared")
	}
}

func TestRequireWritableDuringGrace(t *testing.T) {
	engine, provider, baseline := newTestStack(t)

	cookie := issueCookie(t, engine, "user-1")
	if err := baseline.RecordValidAuthMoment(context.Background(), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("RecordValidAuthMoment: %v", err)
	}
	provider.degraded = true

	writeHandler := Guard(engine)(RequireWritable(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("write handler reached while degraded")
	})))

	req := httptest.NewRequest(http.MethodPost, "/profile", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	writeHandler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Error != CodeServiceDegraded {
		t.Fatalf("code = %q", body.Error)
	}

	// Reads stay open on the same degraded session.
	readOK := false
	readHandler := Guard(engine)(RequireReadable(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		readOK = true
	})))

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(cookie)
	readHandler.ServeHTTP(httptest.NewRecorder(), req)

	if !readOK {
		t.Fatal("read rejected during grace")
	}
}

func TestRequireReadableAfterLapse(t *testing.T) {
	engine, provider, baseline := newTestStack(t)

	cookie := issueCookie(t, engine, "user-1")
	if err := baseline.RecordValidAuthMoment(context.Background(), time.Now().Add(-5*time.Hour)); err != nil {
		t.Fatalf("RecordValidAuthMoment: %v", err)
	}
	provider.degraded = true

	handler := Guard(engine)(RequireReadable(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached past the grace window")
	})))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Error != CodeGraceLapsed {
		t.Fatalf("code = %q", body.Error)
	}
}

func TestWriteConflict(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteConflict(rr, &mutation.ConflictError{RecordID: "rec-1", ExpectedVersion: 5, StoredVersion: 7})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeError(t, rr)
	if body.Error != CodeConflict {
		t.Fatalf("code = %q", body.Error)
	}
	if body.Details["expected_version"] != "5" || body.Details["stored_version"] != "7" {
		t.Fatalf("details = %v", body.Details)
	}
}

func TestWriteEngineError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&mutation.ConflictError{RecordID: "r", ExpectedVersion: 1, StoredVersion: 2}, http.StatusConflict, CodeConflict},
		{authcore.ErrReloadRequired, http.StatusConflict, CodeReloadRequired},
		{authcore.ErrRecordNotFound, http.StatusNotFound, CodeNotFound},
		{authcore.ErrServiceDegraded, http.StatusServiceUnavailable, CodeServiceDegraded},
		{authcore.ErrGraceLapsed, http.StatusUnauthorized, CodeGraceLapsed},
		{authcore.ErrProviderUnavailable, http.StatusServiceUnavailable, CodeProviderUnavailable},
		{authcore.ErrSessionExpired, http.StatusUnauthorized, CodeSessionExpired},
		{errors.New("surprise"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		WriteEngineError(rr, tc.err)
		if rr.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
		if body := decodeError(t, rr); body.Error != tc.code {
			t.Errorf("%v: code = %q, want %q", tc.err, body.Error, tc.code)
		}
	}
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("no request ID assigned")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "supplied-id")
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != "supplied-id" {
		t.Fatalf("request ID = %q", got)
	}
}
