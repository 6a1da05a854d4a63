// Package circuitbreaker implements the circuit breaker pattern for
// protecting upstream fetches. A breaker tracks consecutive failures,
// rejects calls while open, and probes the upstream with a single
// in-flight request once the reset timeout has elapsed.
package circuitbreaker

import (
	"time"

	"github.com/vyrodovalexey/rescache/internal/clock"
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// ResetTimeout is the duration the circuit stays open before a probe
	// is allowed.
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive probe successes needed
	// to close the circuit from half-open state.
	SuccessThreshold int

	// IsSuccessful determines if an error should be counted as a success.
	// If nil, all non-nil errors are counted as failures.
	IsSuccessful func(err error) bool

	// OnStateChange is called when the circuit breaker state changes.
	OnStateChange func(name string, from, to State)

	// Clock is the time source. Defaults to the system clock.
	Clock clock.Clock
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Validate normalizes invalid fields to their defaults.
func (c *Config) Validate() error {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout < time.Millisecond {
		c.ResetTimeout = 30 * time.Second
	}
	if c.SuccessThreshold < 1 {
		c.SuccessThreshold = 2
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
	return nil
}

// WithFailureThreshold sets the failure threshold.
func (c *Config) WithFailureThreshold(n int) *Config {
	c.FailureThreshold = n
	return c
}

// WithResetTimeout sets the reset timeout.
func (c *Config) WithResetTimeout(d time.Duration) *Config {
	c.ResetTimeout = d
	return c
}

// WithSuccessThreshold sets the success threshold.
func (c *Config) WithSuccessThreshold(n int) *Config {
	c.SuccessThreshold = n
	return c
}

// WithIsSuccessful sets the success check function.
func (c *Config) WithIsSuccessful(fn func(err error) bool) *Config {
	c.IsSuccessful = fn
	return c
}

// WithOnStateChange sets the state change callback.
func (c *Config) WithOnStateChange(fn func(name string, from, to State)) *Config {
	c.OnStateChange = fn
	return c
}

// WithClock sets the time source.
func (c *Config) WithClock(clk clock.Clock) *Config {
	c.Clock = clk
	return c
}
