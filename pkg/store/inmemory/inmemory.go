// Package inmemory is a map-backed store.Store for tests and ephemeral runs.
package inmemory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/scoring"
	"github.com/papercomputeco/ctxmem/pkg/store"
)

// Store keeps observations in insertion order.
type Store struct {
	mu sync.RWMutex

	// observations is append-only; index maps id to position.
	observations []store.Observation
	index        map[string]int
	byHash       map[string]string
	closed       bool

	vectors *store.VectorIndex
	logger  *slog.Logger
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithVectorIndex enables the vector signal.
func WithVectorIndex(v *store.VectorIndex) Option {
	return func(s *Store) { s.vectors = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logger.OrNop(l) }
}

// WithClock sets the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:  map[string]int{},
		byHash: map[string]string{},
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordEvent implements store.Store.
func (s *Store) RecordEvent(_ context.Context, env store.Envelope) (store.RecordResult, error) {
	if err := store.Validate(env); err != nil {
		return store.RecordResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.RecordResult{}, store.ErrClosed
	}
	if id, ok := s.byHash[env.Event.DedupeHash]; ok {
		return store.RecordResult{ID: id}, nil
	}

	id := uuid.NewString()
	seq := int64(len(s.observations)) + 1
	s.observations = append(s.observations, store.FromEnvelope(env, id, seq))
	s.index[id] = len(s.observations) - 1
	s.byHash[env.Event.DedupeHash] = id

	return store.RecordResult{ID: id, Inserted: true}, nil
}

// Search implements store.Store.
func (s *Store) Search(ctx context.Context, query string, filters store.Filters, w scoring.Weights) (*store.SearchResult, error) {
	pool, err := s.filtered(filters)
	if err != nil {
		return nil, err
	}

	scores, err := s.vectors.Scores(ctx, query)
	if err != nil {
		s.logger.Warn("vector signal unavailable", "error", err)
		scores = nil
	}

	return store.Rank(query, pool, scores, w, filters, s.now()), nil
}

func (s *Store) filtered(f store.Filters) ([]store.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	pool := make([]store.Observation, 0, len(s.observations))
	for i := range s.observations {
		if store.Matches(&s.observations[i], f) {
			pool = append(pool, s.observations[i])
		}
	}
	return pool, nil
}

// Timeline implements store.Store.
func (s *Store) Timeline(_ context.Context, id string, before, after int) ([]store.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	pos, ok := s.index[id]
	if !ok {
		return nil, store.NotFoundError{ID: id}
	}

	sessionID := s.observations[pos].SessionID
	var session []store.Observation
	for _, o := range s.observations {
		if o.SessionID == sessionID {
			session = append(session, o)
		}
	}
	return store.Around(session, id, before, after)
}

// GetObservations implements store.Store.
func (s *Store) GetObservations(_ context.Context, ids []string, compact bool) ([]store.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]store.Observation, 0, len(ids))
	for _, id := range ids {
		pos, ok := s.index[id]
		if !ok {
			continue
		}
		o := s.observations[pos]
		if compact {
			o = store.Compact(o)
		}
		out = append(out, o)
	}
	return out, nil
}

// Stats implements store.Store.
func (s *Store) Stats(_ context.Context) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	st := &store.Stats{
		Observations: len(s.observations),
		ByPlatform:   map[string]int{},
		ByProject:    map[string]int{},
	}
	sessions := map[string]bool{}
	for _, o := range s.observations {
		st.ByPlatform[o.Platform]++
		st.ByProject[o.Project]++
		sessions[o.SessionID] = true
		if o.CreatedAt > st.Newest {
			st.Newest = o.CreatedAt
		}
	}
	st.Sessions = len(sessions)
	return st, nil
}

// Shutdown implements store.Store.
func (s *Store) Shutdown(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.closed = true
	s.logger.Info("store shut down", "reason", reason, "observations", len(s.observations))
	return nil
}
