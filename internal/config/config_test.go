package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Resources = []ResourceConfig{
		{Name: "pet", TTL: Duration(5 * time.Minute)},
		{Name: "user", TTL: Duration(time.Minute), Coalesce: true},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialBackoff.Duration())
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.ResetTimeout.Duration())
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Resources(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "missing name",
			mutate: func(c *Config) {
				c.Resources[0].Name = ""
			},
			wantErr: "name is required",
		},
		{
			name: "duplicate name",
			mutate: func(c *Config) {
				c.Resources[1].Name = c.Resources[0].Name
			},
			wantErr: "duplicate resource name",
		},
		{
			name: "zero ttl",
			mutate: func(c *Config) {
				c.Resources[0].TTL = 0
			},
			wantErr: "ttl must be positive",
		},
		{
			name: "negative sweep interval",
			mutate: func(c *Config) {
				c.Resources[0].SweepInterval = Duration(-time.Second)
			},
			wantErr: "sweepInterval cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RetryConfig)
		wantErr string
	}{
		{
			name:    "zero attempts",
			mutate:  func(c *RetryConfig) { c.MaxAttempts = 0 },
			wantErr: "maxAttempts",
		},
		{
			name:    "zero initial backoff",
			mutate:  func(c *RetryConfig) { c.InitialBackoff = 0 },
			wantErr: "initialBackoff",
		},
		{
			name: "max below initial",
			mutate: func(c *RetryConfig) {
				c.MaxBackoff = Duration(time.Millisecond)
			},
			wantErr: "maxBackoff",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *RetryConfig) { c.BackoffMultiplier = 0.5 },
			wantErr: "backoffMultiplier",
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *RetryConfig) { c.Jitter = 1.5 },
			wantErr: "jitter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig().Retry
			tt.mutate(&cfg)

			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestCircuitBreakerConfig_Validate(t *testing.T) {
	cfg := DefaultConfig().CircuitBreaker
	cfg.FailureThreshold = 0
	assert.ErrorContains(t, cfg.Validate(), "failureThreshold")

	cfg = DefaultConfig().CircuitBreaker
	cfg.ResetTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "resetTimeout")

	cfg = DefaultConfig().CircuitBreaker
	cfg.SuccessThreshold = 0
	assert.ErrorContains(t, cfg.Validate(), "successThreshold")
}

func TestRateLimitConfig_Validate(t *testing.T) {
	cfg := DefaultConfig().RateLimit
	cfg.Capacity = 0
	assert.ErrorContains(t, cfg.Validate(), "capacity")

	cfg = DefaultConfig().RateLimit
	cfg.RefillRate = -1
	assert.ErrorContains(t, cfg.Validate(), "refillRate")

	// Disabled rate limiting skips field validation.
	cfg = RateLimitConfig{Enabled: false}
	assert.NoError(t, cfg.Validate())
}
