// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider wraps a transcription service (a local whisper-server, the
// OpenAI Whisper API, or Deepgram's pre-recorded endpoint) behind a single
// synchronous call: hand it a WAV file on disk, get text back. The session
// bridge owns the temp-file lifecycle; providers must never delete the input.
//
// Implementations must be safe for concurrent use — many calls transcribe in
// parallel.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe reads the 16-bit mono PCM WAV file at wavPath and returns the
	// recognised text. An empty string with a nil error means the provider saw
	// no speech (silence, noise); callers treat that as "wait for more audio",
	// not as a failure.
	//
	// Returns a non-nil error only for transport or provider failures. The
	// method must respect ctx cancellation and deadline.
	Transcribe(ctx context.Context, wavPath string) (string, error)

	// Name identifies the provider in logs and metrics (e.g. "whisper").
	Name() string
}
