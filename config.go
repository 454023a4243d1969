package authcore

import (
	"fmt"
	"time"

	"github.com/Natural-Highs/authcore/grace"
	"github.com/Natural-Highs/authcore/internal"
	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/session"
)

// Runtime environment tags. A session is only valid for the tag it was
// minted in.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config defines the engine configuration.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	// Environment is the runtime environment tag (development, staging,
	// production). Stamped into minted sessions and checked at open time.
	Environment string

	Session  SessionConfig
	Grace    GraceConfig
	Mutation MutationConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// SessionConfig configures the sealed session codec.
type SessionConfig struct {
	// Secret is the current unseal secret, base64url encoded, decoding to at
	// least 32 bytes. Required; validation fails fast without it.
	Secret string
	// PreviousSecret optionally holds the pre-rotation secret so tokens minted
	// before a rotation stay valid until they expire.
	PreviousSecret string
	// StandardTTL and ExtendedTTL are the two mint tiers. The extended tier is
	// granted only to passkey-established sessions.
	StandardTTL time.Duration
	ExtendedTTL time.Duration
}

// GraceConfig configures the grace-period arbiter.
type GraceConfig struct {
	// Window is the degraded-access window measured from the last confirmed
	// provider availability.
	Window time.Duration
	// ProbeTimeout bounds the availability probe.
	ProbeTimeout time.Duration
	// RedisPrefix keys the persisted baseline cell when the Redis stores are
	// built from a client handed to the Builder.
	RedisPrefix string
}

// MutationConfig configures the optimistic-concurrency coordinator.
type MutationConfig struct {
	// MaxRetries bounds consecutive conflict retries for one logical edit.
	MaxRetries int
	// InitialBackoff seeds the exponential backoff between automatic retries.
	InitialBackoff time.Duration
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Environment: EnvDevelopment,
		Session: SessionConfig{
			StandardTTL: session.StandardTTL,
			ExtendedTTL: session.ExtendedTTL,
		},
		Grace: GraceConfig{
			Window:       grace.DefaultWindow,
			ProbeTimeout: grace.DefaultProbeTimeout,
			RedisPrefix:  "nh",
		},
		Mutation: MutationConfig{
			MaxRetries:     mutation.MaxConflictRetries,
			InitialBackoff: 50 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration and fails fast. A missing or weak secret
// is a fatal startup error, never a silent downgrade.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("%w: unknown environment tag %q", ErrConfiguration, c.Environment)
	}

	if _, err := internal.DecodeSealSecret(c.Session.Secret); err != nil {
		return fmt.Errorf("%w: session secret: %v", ErrConfiguration, err)
	}
	if c.Session.PreviousSecret != "" {
		if _, err := internal.DecodeSealSecret(c.Session.PreviousSecret); err != nil {
			return fmt.Errorf("%w: previous session secret: %v", ErrConfiguration, err)
		}
	}
	if c.Session.StandardTTL <= 0 {
		return fmt.Errorf("%w: Session StandardTTL must be > 0", ErrConfiguration)
	}
	if c.Session.ExtendedTTL < c.Session.StandardTTL {
		return fmt.Errorf("%w: Session ExtendedTTL must be >= StandardTTL", ErrConfiguration)
	}

	if c.Grace.Window <= 0 {
		return fmt.Errorf("%w: Grace Window must be > 0", ErrConfiguration)
	}
	if c.Grace.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: Grace ProbeTimeout must be > 0", ErrConfiguration)
	}

	if c.Mutation.MaxRetries < 1 || c.Mutation.MaxRetries > 10 {
		return fmt.Errorf("%w: Mutation MaxRetries must be between 1 and 10", ErrConfiguration)
	}
	if c.Mutation.InitialBackoff < 0 {
		return fmt.Errorf("%w: Mutation InitialBackoff must be >= 0", ErrConfiguration)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0 when audit is enabled", ErrConfiguration)
	}

	return nil
}
