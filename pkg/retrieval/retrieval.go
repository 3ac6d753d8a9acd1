// Package retrieval composes the answer pipeline: route the query, search
// the store with the routed weights, optionally rerank the head of the
// candidate list, hydrate the survivors and compile the evidence bundle.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/answer"
	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/rerank"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/store"
	"github.com/papercomputeco/ctxmem/pkg/ttlcache"
)

const (
	DefaultTopK        = 8
	DefaultRerankDepth = 20
	DefaultStatsTTL    = 30 * time.Second
)

// Config configures a Service. Reranker is optional; nil disables
// reranking.
type Config struct {
	Store    store.Store
	Reranker *rerank.Reranker

	TopK        int
	RerankDepth int
	StatsTTL    time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Request is one question.
type Request struct {
	Query   string        `json:"query"`
	Kind    string        `json:"kind,omitempty"`
	Filters store.Filters `json:"filters"`

	// TopK overrides the service default when positive.
	TopK int `json:"top_k,omitempty"`
}

// Response is the compiled answer plus how it was produced.
type Response struct {
	answer.Compiled
	Route    router.Decision `json:"route"`
	Reranked bool            `json:"reranked"`
}

// Service answers questions against a store.
type Service struct {
	config Config
	stats  *ttlcache.Cache[*store.Stats]
	logger *slog.Logger
}

// New builds a Service.
func New(c Config) (*Service, error) {
	if c.Store == nil {
		return nil, errors.New("retrieval requires a store")
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.RerankDepth <= 0 {
		c.RerankDepth = DefaultRerankDepth
	}
	if c.StatsTTL <= 0 {
		c.StatsTTL = DefaultStatsTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		config: c,
		stats:  ttlcache.New[*store.Stats](c.StatsTTL),
		logger: logger.OrNop(c.Logger),
	}, nil
}

// Answer runs the full pipeline for req.
func (s *Service) Answer(ctx context.Context, req Request) (*Response, error) {
	route := router.Route(req.Query, req.Kind)

	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	filters := req.Filters
	if filters.Limit <= 0 {
		filters.Limit = max(topK, s.config.RerankDepth)
	}

	found, err := s.config.Store.Search(ctx, req.Query, filters, route.Weights)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	candidates := found.Candidates
	reranked := false
	if s.config.Reranker != nil && len(candidates) > 1 {
		candidates = s.rerank(req.Query, candidates)
		reranked = true
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Observation.ID
	}

	observations, err := s.config.Store.GetObservations(ctx, ids, false)
	if err != nil {
		return nil, fmt.Errorf("hydrating: %w", err)
	}

	s.logger.Debug("answered query",
		"kind", route.Kind,
		"confidence", route.Confidence,
		"candidates", len(found.Candidates),
		"evidence", len(observations),
		"reranked", reranked,
	)

	return &Response{
		Compiled: answer.Compile(route.Kind, observations, found.PrivacyExcluded),
		Route:    route,
		Reranked: reranked,
	}, nil
}

// rerank reorders the first RerankDepth candidates; the rest keep their
// store order behind them.
func (s *Service) rerank(query string, candidates []store.Candidate) []store.Candidate {
	depth := min(s.config.RerankDepth, len(candidates))

	items := make([]rerank.Item, depth)
	for i, c := range candidates[:depth] {
		items[i] = rerank.Item{
			ID:          c.Observation.ID,
			Score:       c.FinalScore,
			CreatedAt:   c.Observation.CreatedAt,
			Title:       c.Observation.Title,
			Content:     c.Observation.ContentRedacted,
			SourceIndex: i,
		}
	}

	out := make([]store.Candidate, 0, len(candidates))
	for _, r := range s.config.Reranker.Rerank(query, items) {
		out = append(out, candidates[r.SourceIndex])
	}
	return append(out, candidates[depth:]...)
}

// Stats returns store statistics, memoized for StatsTTL.
func (s *Service) Stats(ctx context.Context) (ttlcache.Result[*store.Stats], error) {
	return s.stats.GetOrCreate(func() (*store.Stats, error) {
		return s.config.Store.Stats(ctx)
	})
}

// InvalidateStats drops the memoized statistics.
func (s *Service) InvalidateStats() {
	s.stats.Clear()
}
