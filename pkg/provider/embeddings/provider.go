// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. The knowledge
// base uses these for ranked snippet retrieval over a business's FAQ and
// service content.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the
// dimensionality reported by Dimensions.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails
	// or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider, constant for the instance lifetime.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, for logging and
	// for ensuring index and query vectors come from the same model.
	ModelID() string
}
