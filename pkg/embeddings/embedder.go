// Package embeddings turns observation text into vectors.
package embeddings

import "context"

// Embedder computes a text embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}
