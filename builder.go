package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Natural-Highs/authcore/grace"
	"github.com/Natural-Highs/authcore/internal"
	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/session"
	"github.com/Natural-Highs/authcore/store"
)

// Builder assembles an Engine. All dependencies are injected explicitly —
// there is no package-level client or hidden cross-request state.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	documents IdentityDocuments
	baseline  grace.BaselineStore
	provider  IdentityProvider
	auditSink AuditSink

	built bool
}

// IdentityDocuments aliases the store interface at the builder surface so
// integrators can hand in any backend.
type IdentityDocuments = store.DocumentStore

// New returns a Builder seeded with defaults.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis hands the builder a Redis client. When no explicit document or
// baseline store is provided, Redis-backed ones are built from it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDocumentStore injects the versioned document store.
func (b *Builder) WithDocumentStore(s IdentityDocuments) *Builder {
	b.documents = s
	return b
}

// WithBaselineStore injects the persisted last-valid-auth cell.
func (b *Builder) WithBaselineStore(s grace.BaselineStore) *Builder {
	b.baseline = s
	return b
}

// WithIdentityProvider injects the identity-provider client. Optional: with
// no provider configured the grace prober reports available (nothing to
// verify), which suits single-binary development setups.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink injects the audit sink used when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the stores, and returns a ready
// Engine. Configuration errors fail here, before any request is served.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authcore: builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	secret, err := internal.DecodeSealSecret(b.config.Session.Secret)
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}
	var previous []byte
	if b.config.Session.PreviousSecret != "" {
		if previous, err = internal.DecodeSealSecret(b.config.Session.PreviousSecret); err != nil {
			return nil, errors.Join(ErrConfiguration, err)
		}
	}

	codec, err := session.New(session.Config{
		Secret:         secret,
		PreviousSecret: previous,
		Environment:    b.config.Environment,
		StandardTTL:    b.config.Session.StandardTTL,
		ExtendedTTL:    b.config.Session.ExtendedTTL,
	})
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	documents := b.documents
	if documents == nil && b.redis != nil {
		documents = store.NewRedisStore(b.redis, b.config.Grace.RedisPrefix)
	}
	if documents == nil {
		return nil, errors.New("authcore: document store required (WithDocumentStore or WithRedis)")
	}

	baseline := b.baseline
	if baseline == nil && b.redis != nil {
		baseline = store.NewRedisBaseline(b.redis, b.config.Grace.RedisPrefix)
	}
	if baseline == nil {
		return nil, errors.New("authcore: baseline store required (WithBaselineStore or WithRedis)")
	}

	engine := &Engine{
		config:    b.config,
		codec:     codec,
		documents: documents,
		provider:  b.provider,
	}
	engine.coordinator = mutation.NewCoordinator(documents)
	engine.arbiter = grace.NewArbiter(
		baseline,
		engineProber{engine},
		b.config.Grace.Window,
		b.config.Grace.ProbeTimeout,
	)

	if b.config.Metrics.Enabled {
		engine.metrics = NewMetrics()
	}
	engine.audit = newAuditDispatcher(b.config.Audit, b.auditSink)

	b.built = true
	return engine, nil
}
