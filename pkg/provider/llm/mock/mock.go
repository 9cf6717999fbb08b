// Package mock provides a scriptable llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/frontdeskai/switchboard/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Provider is a test double for llm.Provider. Configure CompleteFunc for
// full control, or set Replies to return canned texts in order ("" once
// exhausted). Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// CompleteFunc, when non-nil, handles Complete calls directly.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)

	// Replies are returned in order by successive Complete calls.
	Replies []string

	// Requests records every CompletionRequest received.
	Requests []llm.CompletionRequest

	next int
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "mock" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if p.next < len(p.Replies) {
		r := p.Replies[p.next]
		p.next++
		return r, nil
	}
	return "", nil
}

// CallCount returns how many Complete calls have been made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
