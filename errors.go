package authcore

import "errors"

var (
	// ErrSessionInvalid marks a token with a bad signature or corrupt payload.
	// Fatal: force re-login.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionExpired marks a well-formed token past its expiry.
	// Recoverable: silent refresh or re-login prompt.
	ErrSessionExpired = errors.New("session expired")
	// ErrWrongEnvironment marks a token minted under a different environment
	// tag. Fatal: force re-login and log as a potential replay attempt.
	ErrWrongEnvironment = errors.New("session minted for another environment")
	// ErrProviderUnavailable is returned when the identity provider is
	// unreachable and no grace baseline exists. Recoverable via grace for
	// reads once a baseline is established.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrServiceDegraded rejects write attempts during the grace period.
	// Reads continue; the client should retry the write after recovery.
	ErrServiceDegraded = errors.New("service degraded, writes disabled during grace period")
	// ErrGraceLapsed is the hard authentication failure once the grace window
	// has run out.
	ErrGraceLapsed = errors.New("grace period lapsed, re-authentication required")
	// ErrReloadRequired refuses further automatic conflict retries; the caller
	// must reload the authoritative record.
	ErrReloadRequired = errors.New("too many consecutive conflicts, reload required")
	// ErrRecordNotFound is returned for operations on a missing profile record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoChanges is returned by explicit no-op submissions when the caller
	// asked to be told rather than receive a silent skip.
	ErrNoChanges = errors.New("no changes to apply")
	// ErrConfiguration is fatal at startup: a missing or weak secret, an
	// unknown environment tag. It must never fail silently into an insecure
	// default.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEngineNotReady is returned when an Engine method runs before Build
	// completed or on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
