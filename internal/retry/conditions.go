package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// Condition decides whether an error should trigger a retry.
type Condition interface {
	// ShouldRetry returns true if the operation should be retried.
	ShouldRetry(err error) bool
}

// anyErrorCondition retries on every non-nil error.
type anyErrorCondition struct{}

// RetryAll creates a condition that retries on any error.
func RetryAll() Condition {
	return anyErrorCondition{}
}

// ShouldRetry implements Condition.
func (anyErrorCondition) ShouldRetry(err error) bool {
	return err != nil
}

// ErrorTypeCondition retries on specific error values.
type ErrorTypeCondition struct {
	errors []error
}

// RetryOnErrors creates a condition that retries on specific errors,
// matched with errors.Is.
func RetryOnErrors(errs ...error) *ErrorTypeCondition {
	return &ErrorTypeCondition{errors: errs}
}

// ShouldRetry implements Condition.
func (c *ErrorTypeCondition) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	for _, target := range c.errors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// NetworkErrorCondition retries on transient network errors.
type NetworkErrorCondition struct{}

// RetryOnNetworkErrors creates a condition that retries on network errors.
// Context cancellation and deadline expiry are never retried.
func RetryOnNetworkErrors() *NetworkErrorCondition {
	return &NetworkErrorCondition{}
}

// ShouldRetry implements Condition.
func (c *NetworkErrorCondition) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.ShouldRetry(urlErr.Err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	return false
}

// PredicateCondition adapts a plain predicate function.
type PredicateCondition struct {
	fn func(error) bool
}

// RetryIf creates a condition from a predicate function.
func RetryIf(fn func(error) bool) *PredicateCondition {
	return &PredicateCondition{fn: fn}
}

// ShouldRetry implements Condition.
func (c *PredicateCondition) ShouldRetry(err error) bool {
	if err == nil || c.fn == nil {
		return false
	}
	return c.fn(err)
}
