// Package testutils holds in-memory fakes for the embedding and vector
// boundaries.
package testutils

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/papercomputeco/ctxmem/pkg/vector"
)

// MockVectorDriver keeps documents in memory and ranks by cosine distance.
type MockVectorDriver struct {
	mu   sync.Mutex
	docs map[string]vector.Document

	// FailQuery makes Query return the error.
	FailQuery error
}

var _ vector.Driver = (*MockVectorDriver)(nil)

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{docs: map[string]vector.Document{}}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, embedding []float32, topK int) ([]vector.Match, error) {
	if m.FailQuery != nil {
		return nil, m.FailQuery
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]vector.Match, 0, len(m.docs))
	for _, d := range m.docs {
		matches = append(matches, vector.Match{
			ID:     d.ID,
			Digest: d.Digest,
			Score:  vector.Similarity(1 - cosine(embedding, d.Embedding)),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []vector.Document
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

func (m *MockVectorDriver) Close() error { return nil }

// Len reports how many documents are held.
func (m *MockVectorDriver) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
