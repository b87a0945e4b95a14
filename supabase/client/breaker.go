package client

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the position of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var circuitStateNames = map[CircuitState]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if name, ok := circuitStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ErrCircuitOpen is returned instead of sending a request while the hosted
// backend is considered down.
var ErrCircuitOpen = errors.New("backend unavailable: circuit breaker is open")

// CircuitBreakerConfig tunes a CircuitBreaker. Zero values take the defaults.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold half-open successes close it again.
	SuccessThreshold int
	// Timeout is how long an open circuit rejects before letting a trial request through.
	Timeout time.Duration
	// OnStateChange runs in its own goroutine after every transition.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the breaker used in front of the hosted backend.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 30 * time.Second}
}

// CircuitBreaker fails requests fast while the backend is unhealthy.
// A rejected request is reported to the caller; it is never re-issued.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.RWMutex
	state    CircuitState
	streak   int // consecutive failures when closed, successes when half-open
	openedAt time.Time
	rejected int64
	lastErr  error
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Allow reports whether a request may be sent. Once the open timeout has
// passed the breaker moves to half-open and lets trial requests through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
		cb.rejected++
		return ErrCircuitOpen
	}
	cb.moveTo(CircuitHalfOpen)
	return nil
}

// RecordSuccess notes a request the backend answered.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.streak = 0
	case CircuitHalfOpen:
		if cb.streak++; cb.streak >= cb.config.SuccessThreshold {
			cb.moveTo(CircuitClosed)
		}
	}
}

// RecordFailure notes a transport error or server-side failure.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastErr = err
	switch cb.state {
	case CircuitClosed:
		if cb.streak++; cb.streak >= cb.config.FailureThreshold {
			cb.moveTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.moveTo(CircuitOpen)
	}
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(next CircuitState) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	cb.streak = 0
	if next == CircuitOpen {
		cb.openedAt = cb.now()
	}
	if hook := cb.config.OnStateChange; hook != nil {
		go hook(prev, next)
	}
}

// State returns the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// LastError returns the most recent failure, or nil.
func (cb *CircuitBreaker) LastError() error {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.lastErr
}

// Rejected counts requests refused while open.
func (cb *CircuitBreaker) Rejected() int64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.rejected
}
