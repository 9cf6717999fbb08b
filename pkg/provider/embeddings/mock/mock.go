// Package mock provides a deterministic embeddings.Provider for tests.
package mock

import (
	"context"

	"github.com/frontdeskai/switchboard/pkg/provider/embeddings"
)

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// Provider maps text to a fixed-size vector derived from its bytes, so
// identical inputs embed identically without any network access.
type Provider struct {
	// Dim is the vector length. Defaults to 8.
	Dim int

	// Err, when non-nil, makes Embed fail.
	Err error
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	vec := make([]float32, p.Dimensions())
	for i, b := range []byte(text) {
		vec[i%len(vec)] += float32(b) / 255
	}
	return vec, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dim == 0 {
		return 8
	}
	return p.Dim
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock" }
