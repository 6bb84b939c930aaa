// Package resilience provides the fault-tolerance primitives used around
// external dependencies: a circuit breaker for the redis rank cache,
// backoff retry for connection setup, and per-expert query deadlines.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of calling through while the circuit
// is open or its half-open probes are exhausted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// IsFailure classifies errors returned by the protected call. Errors it
	// rejects (a cache miss, say) are passed through without counting. Nil
	// counts every non-nil error.
	IsFailure func(err error) bool
	// OnStateChange is called with the breaker name and new state after
	// every transition. It runs under the breaker's lock.
	OnStateChange func(name string, state State)
}

// Counts is a snapshot of a breaker's bookkeeping.
type Counts struct {
	State               State
	ConsecutiveFailures int
	TotalFailures       int64
	Rejected            int64
}

// CircuitBreaker opens after FailureThreshold consecutive failures,
// rejects calls for ResetTimeout, then admits up to HalfOpenMaxRequests
// concurrent probes. One successful probe closes it; one failed probe
// re-opens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	totalFailures       int64
	rejected            int64
	openedAt            time.Time
	probes              int
}

// NewCircuitBreaker fills zero config values with 5 failures, 30s and 1
// probe.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		state:  StateClosed,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the circuit admits it and returns fn's error
// unchanged; when it does not, fn is skipped and the error wraps
// ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(probe, cb.cfg.IsFailure(err))
	return err
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalFailures:       cb.totalFailures,
		Rejected:            cb.rejected,
	}
}

// admit reports whether the call is a half-open probe.
func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			cb.rejected++
			return false, fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.setState(StateHalfOpen)
		cb.probes = 0
		cb.logger.Info("circuit half-open", "after", cb.cfg.ResetTimeout)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			cb.rejected++
			return false, fmt.Errorf("%w: %s (half-open probe limit reached)", ErrCircuitOpen, cb.name)
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(probe, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.probes > 0 {
		cb.probes--
	}
	if !failed {
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
			cb.logger.Info("circuit closed (recovered)")
		}
		return
	}

	cb.consecutiveFailures++
	cb.totalFailures++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip()
		cb.logger.Warn("circuit re-opened (probe failed)")
	case cb.state == StateClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold:
		cb.trip()
		cb.logger.Warn("circuit opened", "consecutive_failures", cb.consecutiveFailures)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

// Reset closes the circuit and clears the failure streak.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.probes = 0
	cb.setState(StateClosed)
	cb.logger.Info("circuit manually reset")
}

func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, s)
	}
}
