// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/frontdeskai/switchboard/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Provider is a test double for stt.Provider. Configure TranscribeFunc, or
// set Texts to return canned transcripts in order ("" once exhausted).
// Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// TranscribeFunc, when non-nil, handles Transcribe calls directly.
	TranscribeFunc func(ctx context.Context, wavPath string) (string, error)

	// Texts are returned in order by successive Transcribe calls.
	Texts []string

	// Calls records the wavPath of every Transcribe invocation.
	Calls []string

	next int
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "mock" }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, wavPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, wavPath)
	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, wavPath)
	}
	if p.next < len(p.Texts) {
		t := p.Texts[p.next]
		p.next++
		return t, nil
	}
	return "", nil
}
