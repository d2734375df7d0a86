// Package intercept routes tool requests between a fast MCP backend and a
// native filesystem path. A per-backend circuit breaker stops calling the
// fast backend after repeated failures and probes it again after a cooldown;
// the native path always remains available as a fallback.
package intercept

import (
	"sync"
	"time"
)

// Circuit is the breaker state for one backend.
type Circuit string

// Breaker states.
const (
	CircuitClosed   Circuit = "closed"
	CircuitOpen     Circuit = "open"
	CircuitHalfOpen Circuit = "half_open"
)

// BreakerConfig tunes breaker transitions.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// Cooldown is how long an open circuit waits before a half-open probe.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the production breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// BreakerState is the persistable snapshot of one breaker, stored between
// hook invocations.
type BreakerState struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Circuit             Circuit   `json:"circuit_status"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
}

// Breaker is a mutex-guarded circuit breaker. Every transition happens under
// one lock so concurrent callers never double- or under-count failures.
type Breaker struct {
	mu            sync.Mutex
	config        BreakerConfig
	circuit       Circuit
	failures      int
	openedAt      time.Time
	probeInFlight bool
	now           func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{
		config:  config,
		circuit: CircuitClosed,
		now:     time.Now,
	}
}

// Restore overwrites the breaker with a previously persisted state.
func (b *Breaker) Restore(state BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch state.Circuit {
	case CircuitClosed, CircuitOpen, CircuitHalfOpen:
		b.circuit = state.Circuit
	default:
		b.circuit = CircuitClosed
	}
	if b.circuit == CircuitHalfOpen {
		// A persisted probe never completed; treat it as open again.
		b.circuit = CircuitOpen
	}
	b.failures = state.ConsecutiveFailures
	b.openedAt = state.OpenedAt
	b.probeInFlight = false
}

// Allow reports whether the fast backend may be attempted for this request.
// From open it transitions to half-open once the cooldown has elapsed; in
// half-open exactly one caller is granted the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.circuit {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return false
		}
		b.circuit = CircuitHalfOpen
		b.probeInFlight = true
		return true
	case CircuitHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess resets the failure count and closes the circuit from
// half-open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeInFlight = false
	if b.circuit == CircuitHalfOpen {
		b.circuit = CircuitClosed
	}
}

// RecordFailure counts a fast-backend failure. Timeouts are recorded exactly
// like errors. Reaching the threshold opens the circuit; a failed half-open
// probe reopens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.circuit {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.circuit = CircuitOpen
			b.openedAt = b.now()
		}
	case CircuitHalfOpen:
		b.failures++
		b.circuit = CircuitOpen
		b.openedAt = b.now()
		b.probeInFlight = false
	case CircuitOpen:
		b.failures++
	}
}

// State returns the persistable snapshot.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		ConsecutiveFailures: b.failures,
		Circuit:             b.circuit,
		OpenedAt:            b.openedAt,
	}
}

// Status returns the current circuit state.
func (b *Breaker) Status() Circuit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.circuit
}
