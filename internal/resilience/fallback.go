package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup wraps an ordered ladder of provider instances of the same
// type. Entries are tried in registration order; an entry is attempted only
// when every earlier entry failed or has an open breaker, and the first
// success short-circuits the rest.
//
// FallbackGroup is safe for concurrent use after registration is complete.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cbCfg   BreakerConfig
}

// NewFallbackGroup creates an empty group whose per-entry breakers are built
// from cbCfg (the Name field is overwritten per entry).
func NewFallbackGroup[T any](cbCfg BreakerConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cbCfg: cbCfg}
}

// Add appends a rung to the ladder. Rungs are tried in the order added.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cfg := fg.cbCfg
	cfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Len returns the number of registered rungs.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// Execute tries fn against each entry in order until one succeeds.
// Breaker-open entries are skipped. Returns [ErrAllFailed] wrapped with the
// last error if every entry fails.
func (fg *FallbackGroup[T]) Execute(fn func(name string, v T) error) error {
	_, err := ExecuteWithResult(fg, func(name string, v T) (struct{}, error) {
		return struct{}{}, fn(name, v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry until one succeeds,
// returning the result. This is a package-level function because Go does not
// support method-level type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(name string, v T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]

		if err := entry.breaker.Allow(); err != nil {
			lastErr = err
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
			continue
		}

		result, err := fn(entry.name, entry.value)
		if err == nil {
			entry.breaker.RecordSuccess()
			return result, nil
		}
		entry.breaker.RecordFailure()
		lastErr = err
		slog.Warn("provider failed, trying next", "provider", entry.name, "error", err)
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
