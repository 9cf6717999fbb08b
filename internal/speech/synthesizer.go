package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frontdeskai/switchboard/internal/health"
	"github.com/frontdeskai/switchboard/internal/observe"
	"github.com/frontdeskai/switchboard/internal/resilience"
	"github.com/frontdeskai/switchboard/pkg/audio"
	"github.com/frontdeskai/switchboard/pkg/provider/tts"
)

// Rung is one step of the provider ladder: a provider plus the voice and
// model to request from it. The last rung is typically the primary provider
// again with a stock voice, which stays available even when a custom voice
// is misconfigured.
type Rung struct {
	Provider tts.Provider
	VoiceID  string
	Model    string
	Settings tts.Settings
}

// rungLabel distinguishes two rungs on the same provider (e.g. the primary
// voice and the stock-voice fallback).
func (r Rung) label() string {
	return r.Provider.Name() + "/" + r.VoiceID
}

// Synthesizer renders reply text to 8 kHz μ-law telephone audio. It walks
// the rung ladder in order, skipping rungs whose circuit breaker is open,
// and returns the first non-empty buffer. Results are cached on disk keyed
// by everything that affects the audio.
type Synthesizer struct {
	mu      sync.RWMutex
	ladder  *resilience.FallbackGroup[Rung]
	breaker resilience.BreakerConfig
	cache   *Cache
	tracker *health.Tracker
	metrics *observe.Metrics
}

// NewSynthesizer builds the ladder from rungs in priority order. cache and
// tracker may be nil; metrics defaults to the global instance.
func NewSynthesizer(rungs []Rung, cache *Cache, tracker *health.Tracker, breaker resilience.BreakerConfig) *Synthesizer {
	return &Synthesizer{
		ladder:  buildLadder(rungs, breaker),
		breaker: breaker,
		cache:   cache,
		tracker: tracker,
		metrics: observe.DefaultMetrics(),
	}
}

func buildLadder(rungs []Rung, breaker resilience.BreakerConfig) *resilience.FallbackGroup[Rung] {
	fg := resilience.NewFallbackGroup[Rung](breaker)
	for _, r := range rungs {
		fg.Add(r.label(), r)
	}
	return fg
}

// SetRungs replaces the ladder, used when a config reload changes the voice
// configuration. Breaker state of the old rungs is discarded; in-flight
// syntheses finish on the ladder they started with.
func (s *Synthesizer) SetRungs(rungs []Rung) {
	fg := buildLadder(rungs, s.breaker)
	s.mu.Lock()
	s.ladder = fg
	s.mu.Unlock()
	slog.Info("speech: voice ladder replaced", "rungs", len(rungs))
}

// Synthesize renders text to 8 kHz μ-law audio ready for 20 ms framing.
// The text is scrubbed first; an error is returned only when every rung of
// the ladder fails, and the caller substitutes a spoken apology.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	speakable := CleanForSynthesis(text)

	s.mu.RLock()
	ladder := s.ladder
	s.mu.RUnlock()

	mulaw, err := resilience.ExecuteWithResult(ladder, func(name string, r Rung) ([]byte, error) {
		return s.synthesizeRung(ctx, r, speakable)
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesizing %d chars: %w", len(speakable), err)
	}
	return mulaw, nil
}

// synthesizeRung runs one ladder step: cache lookup, provider call,
// downsample to telephone audio, cache fill.
func (s *Synthesizer) synthesizeRung(ctx context.Context, r Rung, text string) ([]byte, error) {
	req := tts.Request{
		Text:     text,
		VoiceID:  r.VoiceID,
		Model:    r.Model,
		Settings: r.Settings,
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(r.Provider.Name(), req)
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheLookup(ctx, true)
			return cached, nil
		}
		s.metrics.RecordCacheLookup(ctx, false)
	}

	start := time.Now()
	pcm, err := r.Provider.Synthesize(ctx, req)
	elapsed := time.Since(start)

	if err == nil && len(pcm) == 0 {
		err = fmt.Errorf("speech: provider %s returned no audio", r.Provider.Name())
	}
	if s.tracker != nil {
		s.tracker.Observe(r.label(), elapsed, err)
	}
	s.metrics.TTSDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, r.Provider.Name(), "tts", "error")
		s.metrics.RecordProviderError(ctx, r.Provider.Name(), "tts")
		slog.Warn("synthesis failed",
			"provider", r.Provider.Name(),
			"voice", r.VoiceID,
			"model", r.Model,
			"text_length", len(text),
			"error", err,
		)
		return nil, err
	}
	s.metrics.RecordProviderRequest(ctx, r.Provider.Name(), "tts", "ok")

	mulaw := audio.SynthesisToTelephony(pcm, r.Provider.SampleRate())
	if s.cache != nil {
		s.cache.Put(key, mulaw)
	}
	return mulaw, nil
}
