// Package config provides configuration types and loading for the resource
// cache subsystem. The subsystem itself never reads configuration files;
// it consumes the plain structs defined here, populated once at startup.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the resource cache subsystem.
type Config struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Resources configures the per-resource caches.
	Resources []ResourceConfig `yaml:"resources" json:"resources"`

	// Retry configures the retry executor defaults.
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// CircuitBreaker configures the circuit breaker defaults.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`

	// RateLimit configures the token bucket rate limiter defaults.
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Format is the log output format: "json" or "console".
	Format string `yaml:"format" json:"format"`

	// Output is the log destination: "stdout" or "stderr".
	Output string `yaml:"output" json:"output"`
}

// ResourceConfig configures one named resource cache.
type ResourceConfig struct {
	// Name is the unique resource type name (e.g. "pet", "user").
	Name string `yaml:"name" json:"name"`

	// TTL is the default time-to-live for cached entries.
	TTL Duration `yaml:"ttl" json:"ttl"`

	// SweepInterval is the interval of the optional background sweep that
	// removes expired entries. Zero disables the sweep; lazy expiry on
	// read still applies.
	SweepInterval Duration `yaml:"sweepInterval,omitempty" json:"sweepInterval,omitempty"`

	// Coalesce enables single-flight request coalescing so that
	// concurrent misses for the same key share one upstream fetch.
	Coalesce bool `yaml:"coalesce,omitempty" json:"coalesce,omitempty"`
}

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts"`

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff Duration `yaml:"initialBackoff" json:"initialBackoff"`

	// BackoffMultiplier is the exponential backoff multiplier.
	BackoffMultiplier float64 `yaml:"backoffMultiplier" json:"backoffMultiplier"`

	// MaxBackoff caps the computed backoff.
	MaxBackoff Duration `yaml:"maxBackoff" json:"maxBackoff"`

	// Jitter is the symmetric jitter factor (0.0 to 1.0) applied to each
	// backoff. 0.5 perturbs waits by up to plus or minus 50 percent.
	Jitter float64 `yaml:"jitter" json:"jitter"`
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int `yaml:"failureThreshold" json:"failureThreshold"`

	// ResetTimeout is how long the circuit stays open before allowing a
	// probe.
	ResetTimeout Duration `yaml:"resetTimeout" json:"resetTimeout"`

	// SuccessThreshold is the number of consecutive probe successes
	// required to close the circuit from half-open.
	SuccessThreshold int `yaml:"successThreshold" json:"successThreshold"`
}

// RateLimitConfig configures the token bucket rate limiter.
type RateLimitConfig struct {
	// Enabled indicates whether rate limiting is applied.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Capacity is the maximum token count of each bucket.
	Capacity float64 `yaml:"capacity" json:"capacity"`

	// RefillRate is the token refill rate per second.
	RefillRate float64 `yaml:"refillRate" json:"refillRate"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    Duration(100 * time.Millisecond),
			BackoffMultiplier: 2.0,
			MaxBackoff:        Duration(10 * time.Second),
			Jitter:            0.5,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     Duration(30 * time.Second),
			SuccessThreshold: 2,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Capacity:   100,
			RefillRate: 50,
		},
	}
}

// Validate validates the configuration and returns an error if invalid.
// Validation failures are configuration bugs and should abort startup.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Resources))
	for i := range c.Resources {
		r := &c.Resources[i]
		if r.Name == "" {
			return fmt.Errorf("resources[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("resources[%d]: duplicate resource name %q", i, r.Name)
		}
		seen[r.Name] = true
		if r.TTL.Duration() <= 0 {
			return fmt.Errorf("resource %q: ttl must be positive", r.Name)
		}
		if r.SweepInterval.Duration() < 0 {
			return fmt.Errorf("resource %q: sweepInterval cannot be negative", r.Name)
		}
	}

	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if err := c.CircuitBreaker.Validate(); err != nil {
		return err
	}
	return c.RateLimit.Validate()
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry: maxAttempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff.Duration() <= 0 {
		return fmt.Errorf("retry: initialBackoff must be positive")
	}
	if c.MaxBackoff.Duration() < c.InitialBackoff.Duration() {
		return fmt.Errorf("retry: maxBackoff (%s) cannot be less than initialBackoff (%s)",
			c.MaxBackoff.Duration(), c.InitialBackoff.Duration())
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("retry: backoffMultiplier must be at least 1, got %g", c.BackoffMultiplier)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("retry: jitter must be between 0 and 1, got %g", c.Jitter)
	}
	return nil
}

// Validate validates the circuit breaker configuration.
func (c *CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("circuitBreaker: failureThreshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.ResetTimeout.Duration() <= 0 {
		return fmt.Errorf("circuitBreaker: resetTimeout must be positive")
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("circuitBreaker: successThreshold must be at least 1, got %d", c.SuccessThreshold)
	}
	return nil
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("rateLimit: capacity must be positive, got %g", c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("rateLimit: refillRate must be positive, got %g", c.RefillRate)
	}
	return nil
}
