package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/papercomputeco/ctxmem/pkg/embeddings"
)

// MockEmbedder embeds text as keyword presence: dimension i is 1 when the
// text contains Vocabulary[i].
type MockEmbedder struct {
	Vocabulary []string

	// FailOn makes Embed fail for this exact input.
	FailOn string

	mu    sync.Mutex
	calls int
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)

func NewMockEmbedder(vocabulary ...string) *MockEmbedder {
	return &MockEmbedder{Vocabulary: vocabulary}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for %q", text)
	}

	lower := strings.ToLower(text)
	out := make([]float32, len(m.Vocabulary))
	for i, word := range m.Vocabulary {
		if strings.Contains(lower, word) {
			out[i] = 1
		}
	}
	return out, nil
}

// Calls reports how many times Embed ran.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbedder) Close() error { return nil }
