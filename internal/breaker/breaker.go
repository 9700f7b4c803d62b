// Package breaker implements a per-upstream circuit breaker and its named
// registry.
package breaker

import (
	"sync"
	"time"

	"github.com/carrental/gateway/internal/domain"
	"github.com/carrental/gateway/internal/observability"
)

// State is one of the three circuit breaker states.
type State int

// Breaker states.
const (
	Closed State = iota
	Open
	HalfOpen
)

// String renders the state for logging and metrics labels.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker guards calls to a single named upstream. It is safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	openTimeout      time.Duration

	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
}

// New constructs a Breaker with the given name and configuration, starting
// in the CLOSED state with a zero failure count.
func New(name string, failureThreshold int, openTimeout time.Duration) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		state:            Closed,
	}
	observability.BreakerState.WithLabelValues(name).Set(0)
	return b
}

// Name returns the breaker's upstream name.
func (b *Breaker) Name() string { return b.name }

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// shouldRun decides whether the action should execute, transitioning OPEN to
// HALF_OPEN when the open timeout has elapsed.
func (b *Breaker) shouldRun() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.lastFailureAt) >= b.openTimeout {
			b.state = HalfOpen
			observability.BreakerState.WithLabelValues(b.name).Set(float64(HalfOpen))
			return true
		}
		return false
	default:
		return false
	}
}

// recordSuccess resets the failure streak and closes the breaker from any state.
func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.state = Closed
	observability.BreakerState.WithLabelValues(b.name).Set(float64(Closed))
}

// recordFailure increments the failure streak and trips the breaker once the
// threshold is reached, or immediately re-opens a HALF_OPEN probe.
func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	b.lastFailureAt = time.Now()

	switch b.state {
	case Closed:
		if b.consecutiveFailures >= b.failureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
	}
	observability.BreakerState.WithLabelValues(b.name).Set(float64(b.state))
	observability.BreakerFailuresTotal.WithLabelValues(b.name).Inc()
}

// Call runs action through the breaker. If the breaker is open (and the open
// timeout has not elapsed), action is skipped entirely; fallback runs instead
// if provided, otherwise Call fails with domain.ErrBreakerOpen. Fallback
// invocation never affects breaker accounting.
//
// Call is a package-level function rather than a method because Go methods
// cannot carry their own type parameters; this keeps the breaker itself
// agnostic to the result type of any particular upstream call.
func Call[T any](b *Breaker, action func() (T, error), fallback func() (T, error)) (T, error) {
	if !b.shouldRun() {
		if fallback != nil {
			return fallback()
		}
		var zero T
		return zero, domain.ErrBreakerOpen
	}

	result, err := action()
	if err != nil {
		b.recordFailure()
		if fallback != nil {
			fbResult, fbErr := fallback()
			if fbErr == nil {
				return fbResult, nil
			}
		}
		return result, err
	}
	b.recordSuccess()
	return result, nil
}
