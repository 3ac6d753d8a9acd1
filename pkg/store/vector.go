package store

import (
	"context"
	"fmt"

	"github.com/papercomputeco/ctxmem/pkg/embeddings"
	"github.com/papercomputeco/ctxmem/pkg/vector"
)

// DefaultVectorDepth is how many nearest neighbours feed the vector signal.
const DefaultVectorDepth = 50

// VectorIndex supplies the vector signal. A nil index, or one missing either
// half, yields no vector scores.
type VectorIndex struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver
	Depth    int
}

// Enabled reports whether both halves are configured.
func (v *VectorIndex) Enabled() bool {
	return v != nil && v.Embedder != nil && v.Driver != nil
}

// Scores embeds query and returns similarity by observation id.
func (v *VectorIndex) Scores(ctx context.Context, query string) (map[string]float64, error) {
	if !v.Enabled() || query == "" {
		return nil, nil
	}

	emb, err := v.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	depth := v.Depth
	if depth <= 0 {
		depth = DefaultVectorDepth
	}

	matches, err := v.Driver.Query(ctx, emb, depth)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}
	return vector.Scores(matches), nil
}

// Index embeds o's redacted content and stores it under o.ID.
func (v *VectorIndex) Index(ctx context.Context, o Observation) error {
	if !v.Enabled() {
		return nil
	}

	text := o.Title + "\n" + o.ContentRedacted
	emb, err := v.Embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	return v.Driver.Add(ctx, []vector.Document{{
		ID:        o.ID,
		Digest:    o.DedupeHash,
		Embedding: emb,
	}})
}
