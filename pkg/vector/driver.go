// Package vector defines the embedding index consulted for the vector
// signal of hybrid search.
package vector

import "context"

// Document is one observation's embedding.
type Document struct {
	// ID is the observation id.
	ID string

	// Digest identifies the content the embedding was computed from, so
	// callers can skip re-embedding unchanged observations.
	Digest string

	Embedding []float32
}

// Match is a nearest-neighbour hit.
type Match struct {
	ID     string
	Digest string

	// Score is a similarity in (0, 1]; higher is closer.
	Score float32
}

// Driver stores embeddings and answers k-nearest-neighbour queries.
type Driver interface {
	// Add inserts docs, replacing any existing document with the same ID.
	Add(ctx context.Context, docs []Document) error

	// Query returns up to topK documents closest to embedding, closest first.
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)

	// Get returns the stored documents for ids. Unknown ids are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes ids.
	Delete(ctx context.Context, ids []string) error

	Close() error
}

// Scores indexes matches by id for the hybrid scorer.
func Scores(matches []Match) map[string]float64 {
	out := make(map[string]float64, len(matches))
	for _, m := range matches {
		out[m.ID] = float64(m.Score)
	}
	return out
}

// Similarity converts a distance into a similarity in (0, 1].
func Similarity(distance float64) float32 {
	if distance < 0 {
		distance = 0
	}
	return float32(1 / (1 + distance))
}
