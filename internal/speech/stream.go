package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/frontdeskai/switchboard/internal/health"
	"github.com/frontdeskai/switchboard/internal/observe"
	"github.com/frontdeskai/switchboard/internal/resilience"
	"github.com/frontdeskai/switchboard/pkg/audio"
	"github.com/frontdeskai/switchboard/pkg/provider/tts/elevenlabs"
)

// streamKeepAliveInterval holds the synthesis socket open while waiting for
// slow audio generation on long replies.
const streamKeepAliveInterval = 10 * time.Second

// StreamerConfig configures the low-latency streaming synthesis path.
type StreamerConfig struct {
	// VoiceID is the ElevenLabs voice for all streamed utterances.
	VoiceID string

	// DialAttempts bounds reconnect attempts per utterance. Default 3.
	DialAttempts uint64

	// DialBackoff is the initial retry delay, doubled per attempt with
	// jitter. Default 250ms.
	DialBackoff time.Duration

	// Breaker configures the streamer's circuit breaker.
	Breaker resilience.BreakerConfig
}

// Streamer synthesises utterances over the ElevenLabs stream-input
// WebSocket, one short-lived connection per utterance. Dials are retried
// with bounded exponential backoff and jitter; repeated failures open a
// circuit breaker so the caller can drop to the batch ladder immediately
// instead of paying dial timeouts on every turn.
type Streamer struct {
	provider *elevenlabs.Provider
	cfg      StreamerConfig
	breaker  *resilience.Breaker
	tracker  *health.Tracker
	metrics  *observe.Metrics
}

// NewStreamer creates a streaming synthesis path. tracker may be nil.
func NewStreamer(p *elevenlabs.Provider, cfg StreamerConfig, tracker *health.Tracker) *Streamer {
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 3
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = 250 * time.Millisecond
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "elevenlabs-stream"
	}
	return &Streamer{
		provider: p,
		cfg:      cfg,
		breaker:  resilience.NewBreaker(cfg.Breaker),
		tracker:  tracker,
		metrics:  observe.DefaultMetrics(),
	}
}

// Available reports whether the streaming path may be attempted right now.
// False means the breaker is open and the caller should go straight to the
// batch ladder. This is a read-only check; admission happens in Speak.
func (st *Streamer) Available() bool {
	return st.breaker.State() != resilience.Open
}

// Speak renders one utterance to 8 kHz μ-law audio over the streaming
// socket. On any failure the caller falls back to the batch ladder; Speak
// never substitutes audio itself.
func (st *Streamer) Speak(ctx context.Context, text string) ([]byte, error) {
	if err := st.breaker.Allow(); err != nil {
		return nil, err
	}

	start := time.Now()
	pcm, err := st.speakOnce(ctx, CleanForSynthesis(text))
	elapsed := time.Since(start)

	if st.tracker != nil {
		st.tracker.Observe("elevenlabs-stream", elapsed, err)
	}
	st.metrics.TTSDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		st.breaker.RecordFailure()
		st.metrics.RecordProviderRequest(ctx, "elevenlabs-stream", "tts", "error")
		st.metrics.RecordProviderError(ctx, "elevenlabs-stream", "tts")
		slog.Warn("streaming synthesis failed",
			"voice", st.cfg.VoiceID, "text_length", len(text), "error", err)
		return nil, err
	}
	st.breaker.RecordSuccess()
	st.metrics.RecordProviderRequest(ctx, "elevenlabs-stream", "tts", "ok")

	return audio.SynthesisToTelephony(pcm, st.provider.SampleRate()), nil
}

func (st *Streamer) speakOnce(ctx context.Context, text string) ([]byte, error) {
	session, err := st.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := session.Send(ctx, text); err != nil {
		return nil, err
	}
	if err := session.Flush(ctx); err != nil {
		return nil, err
	}

	// Hold the socket open while generation runs.
	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(streamKeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-drainCtx.Done():
				return
			case <-ticker.C:
				if err := session.KeepAlive(drainCtx); err != nil {
					return
				}
			}
		}
	}()

	pcm, err := session.Drain(ctx)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("speech: stream returned no audio")
	}
	return pcm, nil
}

// dial opens the per-utterance socket with bounded exponential backoff.
func (st *Streamer) dial(ctx context.Context) (*elevenlabs.StreamSession, error) {
	backoff := retry.NewExponential(st.cfg.DialBackoff)
	backoff = retry.WithJitter(st.cfg.DialBackoff/4, backoff)
	backoff = retry.WithMaxRetries(st.cfg.DialAttempts-1, backoff)

	var session *elevenlabs.StreamSession
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := st.provider.DialStream(ctx, st.cfg.VoiceID)
		if err != nil {
			return retry.RetryableError(err)
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("speech: dialing stream: %w", err)
	}
	return session, nil
}
