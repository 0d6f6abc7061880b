// Package resilience provides circuit breaker and backend failover primitives.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops a backend which keeps failing from being called on every turn of a
// long script. [FallbackGroup] composes several instances of any backend type,
// each behind its own breaker, and tries them in a fixed order.
// [TTSFallback] applies this to speech backends and bounds every call with a
// timeout.
package resilience

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the mode a [CircuitBreaker] is in.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen
	// StateHalfOpen lets up to HalfOpenMax trial calls through. One failure
	// re-opens the breaker; HalfOpenMax successes close it.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig configures a [CircuitBreaker]. Zero values select the
// defaults noted on each field.
type CircuitBreakerConfig struct {
	// Name identifies the backend in log records.
	Name string
	// MaxFailures is the run of consecutive failures that opens the breaker.
	// Default 5.
	MaxFailures int
	// ResetTimeout is the cool-down before trial calls are allowed. Default 30s.
	ResetTimeout time.Duration
	// HalfOpenMax is the number of trial calls in the half-open state.
	// Default 3.
	HalfOpenMax int
	// Logger receives state transitions. Default slog.Default().
	Logger *slog.Logger
}

// CircuitBreaker keeps a failing backend from being retried on every turn of
// a script. It is safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	log          *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trials      int
	trialFails  int
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cmp.Or(max(cfg.MaxFailures, 0), 5),
		resetTimeout: cmp.Or(max(cfg.ResetTimeout, 0), 30*time.Second),
		halfOpenMax:  cmp.Or(max(cfg.HalfOpenMax, 0), 3),
		log:          cfg.Logger,
	}
	if cb.log == nil {
		cb.log = slog.Default()
	}
	cb.log = cb.log.With("breaker", cb.name)
	return cb
}

// Execute calls fn unless the breaker is open or its half-open trial budget
// is spent, in which case it returns [ErrCircuitOpen]. The result of fn is
// returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, ok := cb.admit()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(trial, err)
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open trial.
func (cb *CircuitBreaker) admit() (trial, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return false, false
		}
		cb.setState(StateHalfOpen)
		cb.trials, cb.trialFails = 0, 0
	}
	if cb.state == StateHalfOpen {
		if cb.trials >= cb.halfOpenMax {
			return false, false
		}
		cb.trials++
		return true, true
	}
	return false, true
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err != nil && trial:
		cb.lastFailure = time.Now()
		cb.trialFails++
		cb.failures = cb.maxFailures
		cb.setState(StateOpen)
	case err != nil:
		cb.lastFailure = time.Now()
		cb.failures++
		if cb.failures >= cb.maxFailures && cb.state != StateOpen {
			cb.setState(StateOpen)
		}
	case trial:
		if cb.trials-cb.trialFails >= cb.halfOpenMax {
			cb.failures, cb.trials, cb.trialFails = 0, 0, 0
			cb.setState(StateClosed)
		}
	default:
		cb.failures = 0
	}
}

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(s State) {
	if s == cb.state {
		return
	}
	level := slog.LevelInfo
	if s == StateOpen {
		level = slog.LevelWarn
	}
	cb.log.Log(context.Background(), level, "circuit breaker state change",
		"from", cb.state.String(),
		"to", s.String(),
		"consecutive_failures", cb.failures)
	cb.state = s
}

// Name returns the configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State reports the current state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures, cb.trials, cb.trialFails = 0, 0, 0
	cb.setState(StateClosed)
}
