// Package health tracks per-provider call outcomes and exposes HTTP
// liveness/readiness probes for the service.
//
// The [Tracker] keeps rolling counters (successes, failures, consecutive
// errors, cumulative latency) per provider name and can log a periodic
// summary so degraded upstreams are visible without scraping metrics.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProviderStats is a point-in-time snapshot of one provider's counters.
type ProviderStats struct {
	Successes         int64
	Failures          int64
	ConsecutiveErrors int64
	AvgLatency        time.Duration
	LastError         string
	LastErrorAt       time.Time
}

// Total returns the number of observed calls.
func (s ProviderStats) Total() int64 { return s.Successes + s.Failures }

// SuccessRate returns the fraction of calls that succeeded, or 1 when no
// calls have been observed yet.
func (s ProviderStats) SuccessRate() float64 {
	total := s.Total()
	if total == 0 {
		return 1
	}
	return float64(s.Successes) / float64(total)
}

type providerCounters struct {
	successes         int64
	failures          int64
	consecutiveErrors int64
	totalLatency      time.Duration
	lastError         string
	lastErrorAt       time.Time
}

// Tracker accumulates provider call outcomes. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	providers map[string]*providerCounters
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{providers: make(map[string]*providerCounters)}
}

// Observe records the outcome of one call to the named provider.
func (t *Tracker) Observe(provider string, latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.providers[provider]
	if c == nil {
		c = &providerCounters{}
		t.providers[provider] = c
	}
	c.totalLatency += latency
	if err != nil {
		c.failures++
		c.consecutiveErrors++
		c.lastError = err.Error()
		c.lastErrorAt = time.Now()
		return
	}
	c.successes++
	c.consecutiveErrors = 0
}

// Snapshot returns the current stats for every observed provider.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]ProviderStats, len(t.providers))
	for name, c := range t.providers {
		s := ProviderStats{
			Successes:         c.successes,
			Failures:          c.failures,
			ConsecutiveErrors: c.consecutiveErrors,
			LastError:         c.lastError,
			LastErrorAt:       c.lastErrorAt,
		}
		if total := c.successes + c.failures; total > 0 {
			s.AvgLatency = c.totalLatency / time.Duration(total)
		}
		out[name] = s
	}
	return out
}

// Report logs a summary of every provider's counters at the given interval
// until ctx is cancelled. Intended to run as a background goroutine.
func (t *Tracker) Report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, s := range t.Snapshot() {
				slog.Info("provider health",
					"provider", name,
					"success_rate", s.SuccessRate(),
					"calls", s.Total(),
					"consecutive_errors", s.ConsecutiveErrors,
					"avg_latency", s.AvgLatency,
				)
			}
		}
	}
}
