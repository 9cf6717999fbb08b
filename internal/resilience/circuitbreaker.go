// Package resilience provides circuit breaker and provider failover
// primitives used by the speech synthesis ladder and the LLM layer.
//
// The central type is [Breaker], a three-state circuit breaker
// (closed → open → half-open) driven by an explicit transition table so that
// the open/half-open/closed semantics are independently testable.
// [FallbackGroup] composes multiple instances of any provider type with
// per-entry breakers so a failing primary is bypassed in favour of healthy
// fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Allow] while the breaker is open and the
// cool-down has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the operating mode of a [Breaker].
type State int

const (
	// Closed is normal operation — calls flow through.
	Closed State = iota

	// Open means the breaker tripped on consecutive failures; calls are
	// rejected until the cool-down elapses.
	Open

	// HalfOpen is the probe state after the cool-down: a limited number of
	// calls are let through to test recovery. The breaker never closes
	// directly from a single success in any other state.
	HalfOpen
)

// String returns the human-readable name of the state.
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

// event is an input to the breaker's transition table.
type event int

const (
	evSuccess event = iota
	evFailure
	evCooldownOver
)

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state before the breaker opens. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before allowing half-open
	// probes. Default: 30s.
	Cooldown time.Duration

	// ProbeQuota is the number of consecutive half-open successes required
	// to close. Default: 2.
	ProbeQuota int
}

// Breaker implements the three-state circuit breaker pattern. Callers use the
// Allow / RecordSuccess / RecordFailure triple, or the Do convenience wrapper.
// It is safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	quota     int

	mu         sync.Mutex
	state      State
	failures   int // consecutive failures (closed state)
	probes     int // consecutive successful probes (half-open state)
	inflight   int // admitted half-open probes awaiting a verdict
	openedAt   time.Time
	tripsTotal int64
}

// NewBreaker creates a [Breaker] with the supplied configuration.
// Zero-value config fields are replaced with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 2
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		quota:     cfg.ProbeQuota,
	}
}

// transition is the breaker's state machine. It returns the next state for
// the given input; counter bookkeeping happens in apply.
//
//	closed    + failure(threshold reached) → open
//	closed    + failure(below threshold)   → closed
//	closed    + success                    → closed (failure count resets)
//	open      + cooldown over              → half-open
//	half-open + failure                    → open (cool-down restarts)
//	half-open + success(quota reached)     → closed
//	half-open + success(below quota)       → half-open
func (b *Breaker) transition(ev event) State {
	switch b.state {
	case Closed:
		if ev == evFailure && b.failures+1 >= b.threshold {
			return Open
		}
		return Closed
	case Open:
		if ev == evCooldownOver {
			return HalfOpen
		}
		return Open
	case HalfOpen:
		switch ev {
		case evFailure:
			return Open
		case evSuccess:
			if b.probes+1 >= b.quota {
				return Closed
			}
			return HalfOpen
		}
		return HalfOpen
	}
	return b.state
}

// apply performs a transition and its counter bookkeeping.
// Must be called with b.mu held.
func (b *Breaker) apply(ev event) {
	prev := b.state
	next := b.transition(ev)

	switch ev {
	case evSuccess:
		b.failures = 0
		if prev == HalfOpen {
			b.probes++
		}
	case evFailure:
		if prev == Closed {
			b.failures++
		}
	}

	if next == prev {
		return
	}

	b.state = next
	switch next {
	case Open:
		b.openedAt = time.Now()
		b.tripsTotal++
		b.probes = 0
		b.inflight = 0
		slog.Warn("circuit breaker opened",
			"name", b.name, "from", prev.String(), "consecutive_failures", b.failures)
	case HalfOpen:
		b.probes = 0
		slog.Info("circuit breaker half-open, probing", "name", b.name)
	case Closed:
		b.failures = 0
		b.probes = 0
		b.inflight = 0
		slog.Info("circuit breaker closed after successful probes", "name", b.name)
	}
}

// Allow reports whether a call may proceed right now. In the open state it
// returns [ErrOpen] until the cool-down elapses, at which point the breaker
// moves to half-open and the call is admitted as a probe. Half-open admits
// at most ProbeQuota calls at a time, counting probes still in flight, so
// concurrent callers cannot flood a recovering backend.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.apply(evCooldownOver)
		b.inflight++
	case HalfOpen:
		if b.probes+b.inflight >= b.quota {
			return ErrOpen
		}
		b.inflight++
	}
	return nil
}

// RecordSuccess feeds a success into the transition table.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settleProbe()
	b.apply(evSuccess)
}

// RecordFailure feeds a failure into the transition table.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settleProbe()
	b.apply(evFailure)
}

// settleProbe releases a half-open admission slot. Verdicts for calls
// admitted before the breaker tripped can arrive in half-open too, so the
// counter floors at zero. Must be called with b.mu held.
func (b *Breaker) settleProbe() {
	if b.state == HalfOpen && b.inflight > 0 {
		b.inflight--
	}
}

// Do runs fn under the breaker: Allow first, then success/failure recording
// based on fn's error.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return err
}

// State returns the current [State]. An open breaker whose cool-down has
// elapsed reports [HalfOpen]; the actual transition happens on the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Trips returns how many times the breaker has opened since creation.
func (b *Breaker) Trips() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripsTotal
}

// Reset forces the breaker back to [Closed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probes = 0
	b.inflight = 0
	slog.Info("circuit breaker manually reset", "name", b.name)
}
