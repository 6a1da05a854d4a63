package resource

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/rescache/internal/circuitbreaker"
)

// ErrRateLimited is returned when the rate limiter rejects a read before
// any other layer is consulted.
var ErrRateLimited = errors.New("rate limited")

// ErrCircuitOpen is returned when the circuit breaker rejects the miss
// path without attempting the upstream. It aliases the breaker sentinel
// so errors.Is matches through either package.
var ErrCircuitOpen = circuitbreaker.ErrCircuitOpen

// UpstreamError wraps a fetch failure that was actually attempted, after
// retries were exhausted or the error was not retryable. It is distinct
// from ErrCircuitOpen, which means the upstream was never invoked.
type UpstreamError struct {
	Resource string
	Key      string
	Err      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream fetch failed for %s/%s: %v", e.Resource, e.Key, e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}
