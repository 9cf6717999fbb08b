// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/frontdeskai/switchboard/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider is a test double for tts.Provider. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Rate is returned by SampleRate. Defaults to 16000.
	Rate int

	// Audio is returned by every successful Synthesize call.
	Audio []byte

	// Err, when non-nil, makes Synthesize fail.
	Err error

	// SynthesizeFunc, when non-nil, handles Synthesize calls directly.
	SynthesizeFunc func(ctx context.Context, req tts.Request) ([]byte, error)

	// Requests records every Request received.
	Requests []tts.Request
}

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int {
	if p.Rate == 0 {
		return 16000
	}
	return p.Rate
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// CallCount returns how many Synthesize calls have been made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
