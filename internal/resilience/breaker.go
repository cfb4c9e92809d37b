// Package resilience guards the favourites storage against a failing
// backend.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open). After
// a run of consecutive failures it rejects calls with [ErrCircuitOpen] until a
// cool-down has passed, then lets a few probe calls through. [Backend] wraps
// any [kv.Backend] with a breaker so that an unreachable database fails fast
// instead of stalling every request until its timeout.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. One failed
	// probe re-opens the breaker; enough successful ones close it.
	StateHalfOpen
)

// String returns the state name used in logs and readiness output.
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

// Config tunes a [Breaker]. Zero fields take their defaults.
type Config struct {
	// Name labels log lines. Default: "storage".
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of successful probes needed to close the
	// breaker again. Default: 2.
	HalfOpenProbes int
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probes       int
	now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int
	passed   int
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg Config) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "storage"
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 2
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		probes:       cfg.HalfOpenProbes,
		now:          time.Now,
	}
}

// Do runs fn unless the breaker is open. Errors caused by ctx being cancelled
// or timing out are returned to the caller but do not count as failures.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe && b.inFlight > 0 {
		b.inFlight--
	}
	switch {
	case err == nil:
		b.succeeded(probe)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// The caller gave up; the backend is not to blame.
	default:
		b.failed(probe)
	}
	return err
}

// admit decides whether a call may proceed and whether it is a probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.passed = 0
		b.inFlight = 0
		slog.Info("circuit breaker half-open", "name", b.name)
	}
	if b.state == StateHalfOpen {
		if b.passed+b.inFlight >= b.probes {
			return false, ErrCircuitOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

// succeeded must be called with b.mu held.
func (b *Breaker) succeeded(probe bool) {
	if !probe {
		b.failures = 0
		return
	}
	b.passed++
	if b.state == StateHalfOpen && b.passed >= b.probes {
		b.state = StateClosed
		b.failures = 0
		slog.Info("circuit breaker closed", "name", b.name)
	}
}

// failed must be called with b.mu held.
func (b *Breaker) failed(probe bool) {
	if probe {
		b.trip()
		slog.Warn("circuit breaker re-opened by failed probe", "name", b.name)
		return
	}
	if b.state != StateClosed {
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.trip()
		slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.passed = 0
}

// State returns the current state. An open breaker whose timeout has elapsed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.passed = 0
	b.inFlight = 0
	slog.Info("circuit breaker reset", "name", b.name)
}
