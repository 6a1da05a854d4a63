package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vyrodovalexey/rescache/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls are allowed.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and calls are rejected.
	StateOpen

	// StateHalfOpen indicates the circuit is probing the upstream.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker implements the circuit breaker pattern around a single upstream.
//
// In the closed state every call passes through and consecutive failures
// are counted; reaching the failure threshold opens the circuit. While
// open, calls are rejected until the reset timeout elapses, after which
// a single probe is allowed through at a time. The circuit closes again
// after the configured number of consecutive probe successes; any probe
// failure reopens it and restarts the reset timer.
type Breaker struct {
	name   string
	config *Config
	logger observability.Logger

	mu    sync.Mutex
	state State

	consecutiveFailures int
	probeSuccesses      int
	probeInFlight       bool

	// Cumulative counters, exposed through Stats.
	failures  int
	successes int
	rejected  int

	openedAt        time.Time
	lastFailure     time.Time
	lastStateChange time.Time
}

// New creates a circuit breaker with the given name and config.
func New(name string, config *Config, logger observability.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	config.Validate() //nolint:errcheck // Validate normalizes in place

	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Breaker{
		name:            name,
		config:          config,
		logger:          logger,
		state:           StateClosed,
		lastStateChange: config.Clock.Now(),
	}
}

// Do executes fn with circuit breaker protection. When the circuit is
// open and the reset timeout has not elapsed, fn is not invoked and
// ErrCircuitOpen is returned. Otherwise the result of fn is recorded
// and returned unchanged.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if !b.Allow() {
		return zero, ErrCircuitOpen
	}

	value, err := fn(ctx)

	if b.isSuccessful(err) {
		b.RecordSuccess()
	} else {
		b.RecordFailure()
	}

	return value, err
}

// Allow reports whether a call may proceed. Callers that receive true
// must report the outcome via RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	var allowed bool

	switch b.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		// A single probe is allowed once the reset timeout elapses.
		if b.config.Clock.Now().Sub(b.openedAt) >= b.config.ResetTimeout {
			b.transitionTo(StateHalfOpen)
			b.probeInFlight = true
			allowed = true
		}

	case StateHalfOpen:
		// At most one probe in flight at a time.
		if !b.probeInFlight {
			b.probeInFlight = true
			allowed = true
		}
	}

	if !allowed {
		b.rejected++
	}
	RecordRequest(b.name, allowed)

	return allowed
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	b.consecutiveFailures = 0
	b.probeInFlight = false

	RecordSuccess(b.name)

	if b.state == StateHalfOpen {
		b.probeSuccesses++
		if b.probeSuccesses >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probeInFlight = false
	b.lastFailure = b.config.Clock.Now()

	RecordFailure(b.name)

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		// A failed probe reopens the circuit and restarts the reset timer.
		b.transitionTo(StateOpen)

	case StateOpen:
		// A failure reported while open pushes the probe window out.
		b.openedAt = b.lastFailure
	}
}

// transitionTo moves the breaker to a new state. Caller holds b.mu.
func (b *Breaker) transitionTo(newState State) {
	oldState := b.state
	b.state = newState
	b.lastStateChange = b.config.Clock.Now()

	switch newState {
	case StateOpen:
		b.openedAt = b.lastStateChange
		b.probeSuccesses = 0
	case StateClosed:
		b.consecutiveFailures = 0
		b.probeSuccesses = 0
	case StateHalfOpen:
		b.probeSuccesses = 0
	}

	RecordStateChange(b.name, oldState, newState)

	b.logger.Info("circuit breaker state changed",
		observability.String("name", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.name, oldState, newState)
	}
}

// isSuccessful determines if the error counts as a success.
func (b *Breaker) isSuccessful(err error) bool {
	if b.config.IsSuccessful != nil {
		return b.config.IsSuccessful(err)
	}
	return err == nil
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the name of the circuit breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Reset forces the circuit breaker back to the closed state and clears
// all streak counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFailures = 0
	b.probeSuccesses = 0
	b.probeInFlight = false
	b.lastStateChange = b.config.Clock.Now()

	RecordState(b.name, StateClosed)

	b.logger.Info("circuit breaker reset",
		observability.String("name", b.name),
	)
}

// Stats returns the current statistics of the circuit breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:               b.state,
		Failures:            b.failures,
		Successes:           b.successes,
		Rejected:            b.rejected,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailure:         b.lastFailure,
		LastStateChange:     b.lastStateChange,
	}
}

// Stats holds circuit breaker statistics.
type Stats struct {
	State               State
	Failures            int
	Successes           int
	Rejected            int
	ConsecutiveFailures int
	LastFailure         time.Time
	LastStateChange     time.Time
}
