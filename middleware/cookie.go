package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	authcore "github.com/Natural-Highs/authcore"
	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/session"
)

// SessionCookieName is the cookie that carries the sealed session token.
const SessionCookieName = "nh_session"

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-Id"

// Machine-checkable error codes. Clients branch on these, never on prose.
const (
	CodeSessionInvalid      = "session_invalid"
	CodeSessionExpired      = "session_expired"
	CodeWrongEnvironment    = "wrong_environment"
	CodeServiceDegraded     = "service_degraded"
	CodeGraceLapsed         = "grace_lapsed"
	CodeProviderUnavailable = "provider_unavailable"
	CodeConflict            = "conflict"
	CodeReloadRequired      = "reload_required"
	CodeNotFound            = "not_found"
)

type recordContextKey struct{}

// RecordFromContext returns the session record injected by [Guard].
func RecordFromContext(ctx context.Context) (session.Record, bool) {
	rec, ok := ctx.Value(recordContextKey{}).(session.Record)
	return rec, ok
}

// SetSessionCookie writes the sealed token as an HttpOnly cookie whose
// lifetime matches the mint tier. Secure is set in production.
func SetSessionCookie(w http.ResponseWriter, engine *authcore.Engine, token string, tier session.Tier) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(engine.SessionTTL(tier).Seconds()),
		HttpOnly: true,
		Secure:   engine.Environment() == authcore.EnvProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie. This is the only way to
// destroy a sealed token.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Guard unseals the session cookie, injects the record and subject into the
// request context, and forwards the caller's IP for audit. Invalid, expired,
// and cross-environment cookies are cleared so the browser stops replaying
// them.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, http.StatusUnauthorized, CodeSessionInvalid, nil)
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteError(w, http.StatusUnauthorized, CodeSessionInvalid, nil)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), clientIP(r))
			rec, err := engine.OpenSession(ctx, cookie.Value)
			if err != nil {
				ClearSessionCookie(w)
				status, code := sessionFailure(err)
				WriteError(w, status, code, nil)
				return
			}

			ctx = context.WithValue(ctx, recordContextKey{}, rec)
			ctx = authcore.WithSubject(ctx, rec.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireReadable enforces the read-path grace decision. It must run after
// [Guard] so the probe has a subject to verify.
func RequireReadable(engine *authcore.Engine) func(http.Handler) http.Handler {
	return authorize(engine, (*authcore.Engine).AuthorizeRead)
}

// RequireWritable enforces the write-path decision: writes are rejected while
// the session is running on grace.
func RequireWritable(engine *authcore.Engine) func(http.Handler) http.Handler {
	return authorize(engine, (*authcore.Engine).AuthorizeWrite)
}

func authorize(engine *authcore.Engine, check func(*authcore.Engine, context.Context) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(engine, r.Context()); err != nil {
				status, code := graceFailure(err)
				WriteError(w, status, code, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID assigns each request a correlation ID, honoring one supplied by
// the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteError answers with the standard JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: code, Details: details})
}

// WriteConflict answers a version conflict with 409 and enough detail for the
// client to build its resolution prompt.
func WriteConflict(w http.ResponseWriter, conflict *mutation.ConflictError) {
	WriteError(w, http.StatusConflict, CodeConflict, map[string]string{
		"record_id":        conflict.RecordID,
		"expected_version": strconv.FormatInt(conflict.ExpectedVersion, 10),
		"stored_version":   strconv.FormatInt(conflict.StoredVersion, 10),
	})
}

// WriteEngineError maps an Engine error to its HTTP answer. Unrecognized
// errors become an opaque 500.
func WriteEngineError(w http.ResponseWriter, err error) {
	var conflict *mutation.ConflictError
	switch {
	case errors.As(err, &conflict):
		WriteConflict(w, conflict)
	case errors.Is(err, authcore.ErrReloadRequired):
		WriteError(w, http.StatusConflict, CodeReloadRequired, nil)
	case errors.Is(err, authcore.ErrRecordNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, nil)
	case errors.Is(err, authcore.ErrServiceDegraded),
		errors.Is(err, authcore.ErrGraceLapsed),
		errors.Is(err, authcore.ErrProviderUnavailable):
		status, code := graceFailure(err)
		WriteError(w, status, code, nil)
	case errors.Is(err, authcore.ErrSessionInvalid),
		errors.Is(err, authcore.ErrSessionExpired),
		errors.Is(err, authcore.ErrWrongEnvironment):
		status, code := sessionFailure(err)
		WriteError(w, status, code, nil)
	default:
		WriteError(w, http.StatusInternalServerError, "internal", nil)
	}
}

func sessionFailure(err error) (int, string) {
	switch {
	case errors.Is(err, authcore.ErrSessionExpired):
		return http.StatusUnauthorized, CodeSessionExpired
	case errors.Is(err, authcore.ErrWrongEnvironment):
		return http.StatusUnauthorized, CodeWrongEnvironment
	default:
		return http.StatusUnauthorized, CodeSessionInvalid
	}
}

func graceFailure(err error) (int, string) {
	switch {
	case errors.Is(err, authcore.ErrServiceDegraded):
		return http.StatusServiceUnavailable, CodeServiceDegraded
	case errors.Is(err, authcore.ErrGraceLapsed):
		return http.StatusUnauthorized, CodeGraceLapsed
	case errors.Is(err, authcore.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, CodeProviderUnavailable
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
