// Package ollama is an embeddings.Embedder backed by a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/embeddings"
	"github.com/papercomputeco/ctxmem/pkg/vector"
)

const (
	DefaultModel   = "nomic-embed-text"
	DefaultBaseURL = "http://localhost:11434"

	requestTimeout = 60 * time.Second
	maxErrorBody   = 512
)

// Config configures the embedder. Empty fields take the defaults.
type Config struct {
	BaseURL string
	Model   string

	// HTTPClient overrides the client, mainly for tests.
	HTTPClient *http.Client
}

// Embedder calls POST /api/embed.
type Embedder struct {
	endpoint string
	model    string
	client   *http.Client
}

var _ embeddings.Embedder = (*Embedder)(nil)

// New returns an embedder for c.
func New(c Config) *Embedder {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &Embedder{endpoint: base + "/api/embed", model: model, client: client}
}

type request struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type response struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding of text. Failures wrap vector.ErrEmbedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(request{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: ollama %s: %s", vector.ErrEmbedding, resp.Status, bytes.TrimSpace(snippet))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: ollama returned no embedding", vector.ErrEmbedding)
	}
	return out.Embeddings[0], nil
}

// Close is a no-op.
func (e *Embedder) Close() error { return nil }
