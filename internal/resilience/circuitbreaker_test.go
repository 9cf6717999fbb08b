package resilience

import (
	"errors"
	"testing"
	"time"
)

func testConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		Cooldown:         50 * time.Millisecond,
		ProbeQuota:       2,
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(testConfig())
	if got := b.State(); got != Closed {
		t.Fatalf("State() = %v, want Closed", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() on fresh breaker: %v", err)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(testConfig())

	b.RecordFailure()
	b.RecordFailure()
	if got := b.State(); got != Closed {
		t.Fatalf("State() after 2 failures = %v, want Closed", got)
	}

	b.RecordFailure()
	if got := b.State(); got != Open {
		t.Fatalf("State() after 3 failures = %v, want Open", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() while open = %v, want ErrOpen", err)
	}
	if got := b.Trips(); got != 1 {
		t.Fatalf("Trips() = %d, want 1", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(testConfig())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if got := b.State(); got != Closed {
		t.Fatalf("State() = %v, want Closed (success should reset streak)", got)
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	time.Sleep(60 * time.Millisecond)

	if got := b.State(); got != HalfOpen {
		t.Fatalf("State() after cooldown = %v, want HalfOpen", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown: %v", err)
	}
}

func TestBreakerClosesAfterProbeQuota(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("first probe Allow(): %v", err)
	}
	b.RecordSuccess()
	if got := b.State(); got != HalfOpen {
		t.Fatalf("State() after 1 probe success = %v, want HalfOpen", got)
	}

	b.RecordSuccess()
	if got := b.State(); got != Closed {
		t.Fatalf("State() after 2 probe successes = %v, want Closed", got)
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe Allow(): %v", err)
	}
	b.RecordFailure()

	if got := b.State(); got != Open {
		t.Fatalf("State() after probe failure = %v, want Open", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() after reopen = %v, want ErrOpen", err)
	}
	if got := b.Trips(); got != 2 {
		t.Fatalf("Trips() = %d, want 2", got)
	}
}

func TestBreakerHalfOpenLimitsInflightProbes(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	// Quota is 2: the first two concurrent callers are admitted as probes,
	// the third is rejected while their verdicts are still pending.
	if err := b.Allow(); err != nil {
		t.Fatalf("first probe Allow(): %v", err)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("second probe Allow(): %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("third concurrent Allow() = %v, want ErrOpen", err)
	}

	// A settled verdict frees no extra slot once its success counts
	// toward the quota.
	b.RecordSuccess()
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() with quota accounted = %v, want ErrOpen", err)
	}

	b.RecordSuccess()
	if got := b.State(); got != Closed {
		t.Fatalf("State() after probe successes = %v, want Closed", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after close: %v", err)
	}
}

func TestBreakerDo(t *testing.T) {
	b := NewBreaker(testConfig())
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return failing }); !errors.Is(err, failing) {
			t.Fatalf("Do() = %v, want %v", err, failing)
		}
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("Do() while open = %v, want ErrOpen", err)
	}
	if called {
		t.Fatal("Do() invoked fn while breaker open")
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if got := b.State(); got != Open {
		t.Fatalf("State() = %v, want Open", got)
	}

	b.Reset()
	if got := b.State(); got != Closed {
		t.Fatalf("State() after Reset = %v, want Closed", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after Reset: %v", err)
	}
}
