// Package embeddingutils builds the configured embeddings.Embedder.
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/ctxmem/pkg/embeddings"
	"github.com/papercomputeco/ctxmem/pkg/embeddings/ollama"
)

// ProviderOllama selects the Ollama HTTP embedder.
const ProviderOllama = "ollama"

// NewEmbedderOpts selects and configures an embedder.
type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
}

// NewEmbedder returns the embedder for o.ProviderType. An empty provider
// yields a nil embedder.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "":
		return nil, nil
	case ProviderOllama:
		return ollama.New(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", o.ProviderType)
	}
}
