// Package rerank reorders the top retrieval candidates with lexical and
// recency heuristics layered on the store's score.
package rerank

import (
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/scoring"
)

const (
	scoreWeight   = 0.7
	titleWeight   = 0.2
	overlapWeight = 0.08
	recencyWeight = 0.02
)

// Item is a candidate entering the reranker. SourceIndex is its original
// rank position and only breaks ties.
type Item struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	CreatedAt   string  `json:"created_at"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	SourceIndex int     `json:"source_index"`
}

// Result is an Item with its recomputed score.
type Result struct {
	Item
	RerankScore float64 `json:"rerank_score"`
}

// Reranker recomputes candidate scores against a query.
type Reranker struct {
	now event.Clock
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithClock overrides the clock used for recency.
func WithClock(now event.Clock) Option {
	return func(r *Reranker) {
		r.now = now
	}
}

// New creates a Reranker.
func New(opts ...Option) *Reranker {
	r := &Reranker{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores every item and returns them ordered by rerank score
// descending, ties by ascending SourceIndex. The input is not modified.
func (r *Reranker) Rerank(query string, items []Item) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	tokens := scoring.Tokenize(query)
	now := r.now()

	out := make([]Result, len(items))
	for i, it := range items {
		title := strings.ToLower(it.Title)
		content := strings.ToLower(it.Content)

		titleMatch := 0.0
		if q != "" && strings.Contains(title, q) {
			titleMatch = 1
		}

		overlap := 0.0
		if len(tokens) > 0 {
			hits := 0
			for _, t := range tokens {
				if strings.Contains(title, t) || strings.Contains(content, t) {
					hits++
				}
			}
			overlap = float64(hits) / float64(len(tokens))
		}

		recency := 0.0
		if created, ok := event.ParseTime(it.CreatedAt); ok {
			recency = scoring.Recency(now.Sub(created).Hours())
		}

		out[i] = Result{
			Item: it,
			RerankScore: it.Score*scoreWeight +
				titleMatch*titleWeight +
				overlap*overlapWeight +
				recency*recencyWeight,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RerankScore != out[j].RerankScore {
			return out[i].RerankScore > out[j].RerankScore
		}
		return out[i].SourceIndex < out[j].SourceIndex
	})

	return out
}

// Gate is the outcome of the enablement check. Reranker is nil when
// disabled.
type Gate struct {
	Enabled  bool
	Reranker *Reranker
}

// FromFlag parses a loosely typed boolean ("1", "true", "yes", "on") and
// builds a Reranker only when it is set.
func FromFlag(value string, opts ...Option) Gate {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return Gate{Enabled: true, Reranker: New(opts...)}
	default:
		return Gate{}
	}
}
