package authcore

import (
	"errors"
	"testing"
	"time"

	"github.com/Natural-Highs/authcore/internal"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Session.Secret = testSecret
	return cfg
}

func TestConfigDefaultsValidate(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Session.Secret = "" }},
		{"short secret", func(c *Config) { c.Session.Secret = "dG9vLXNob3J0" }},
		{"bad base64 secret", func(c *Config) { c.Session.Secret = "!!!not-base64!!!" }},
		{"short previous secret", func(c *Config) { c.Session.PreviousSecret = "dG9vLXNob3J0" }},
		{"unknown environment", func(c *Config) { c.Environment = "qa" }},
		{"zero standard ttl", func(c *Config) { c.Session.StandardTTL = 0 }},
		{"extended below standard", func(c *Config) {
			c.Session.StandardTTL = 48 * time.Hour
			c.Session.ExtendedTTL = 24 * time.Hour
		}},
		{"zero grace window", func(c *Config) { c.Grace.Window = 0 }},
		{"zero probe timeout", func(c *Config) { c.Grace.ProbeTimeout = 0 }},
		{"zero retries", func(c *Config) { c.Mutation.MaxRetries = 0 }},
		{"excessive retries", func(c *Config) { c.Mutation.MaxRetries = 99 }},
		{"negative backoff", func(c *Config) { c.Mutation.InitialBackoff = -time.Second }},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Validate = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestConfigAcceptsGeneratedSecret(t *testing.T) {
	secret, err := internal.NewSealSecret()
	if err != nil {
		t.Fatalf("NewSealSecret: %v", err)
	}

	cfg := validTestConfig()
	cfg.Session.Secret = secret
	cfg.Session.PreviousSecret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigAllEnvironments(t *testing.T) {
	for _, env := range []string{EnvDevelopment, EnvStaging, EnvProduction} {
		cfg := validTestConfig()
		cfg.Environment = env
		if err := cfg.Validate(); err != nil {
			t.Fatalf("environment %q: %v", env, err)
		}
	}
}
