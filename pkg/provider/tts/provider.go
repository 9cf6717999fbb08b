// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps one speech synthesis service (ElevenLabs, OpenAI TTS,
// or a local Coqui server) behind a uniform batch interface: text in, raw
// 16-bit mono PCM out. The resilience layer composes several providers into a
// fallback ladder; individual providers stay dumb and just report failures.
//
// Implementations must be safe for concurrent use — multiple calls synthesise
// in parallel.
package tts

import "context"

// Settings tunes voice delivery. Zero values mean provider defaults.
// Settings participate in the synthesis cache key, so equal settings must
// serialise identically.
type Settings struct {
	// Stability trades consistency against expressiveness (0.0–1.0).
	Stability float64

	// SimilarityBoost pushes the output closer to the reference voice (0.0–1.0).
	SimilarityBoost float64

	// Speed adjusts speaking rate (0.5–2.0, 0 = provider default).
	Speed float64
}

// Request describes one synthesis call.
type Request struct {
	// Text is the sentence to speak. Already cleaned — providers receive no
	// markup or meta commentary.
	Text string

	// VoiceID is the provider-specific voice identifier.
	VoiceID string

	// Model selects a model within the provider (e.g. "eleven_flash_v2_5",
	// "tts-1-hd"). Empty means the provider default.
	Model string

	// Settings tunes delivery.
	Settings Settings
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize produces raw 16-bit little-endian mono PCM for req.Text at
	// the rate reported by SampleRate. A nil or empty buffer with a nil error
	// counts as a failure to the fallback ladder; providers should prefer
	// returning a typed error.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// SampleRate is the PCM output rate in Hz (constant per provider).
	SampleRate() int

	// Name identifies the provider in logs, metrics, and cache keys.
	Name() string
}
