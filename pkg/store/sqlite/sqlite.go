// Package sqlite is a store.Store on SQLite. Queries are assembled with
// ent's dialect-aware SQL builders.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/scoring"
	"github.com/papercomputeco/ctxmem/pkg/store"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db      *sql.DB
	builder *entsql.DialectBuilder

	mu     sync.RWMutex
	closed bool

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

// New opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func New(path string, opts ...Option) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating store schema: %w", err)
		}
	}

	s := &Store{
		db:      db,
		builder: entsql.Dialect(dialect.SQLite),
		logger:  logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// guard holds the read lock for the duration of a call and reports ErrClosed
// after Shutdown.
func (s *Store) guard() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrClosed
	}
	return s.mu.RUnlock, nil
}

// RecordEvent implements store.Store.
func (s *Store) RecordEvent(ctx context.Context, env store.Envelope) (store.RecordResult, error) {
	if err := store.Validate(env); err != nil {
		return store.RecordResult{}, err
	}

	release, err := s.guard()
	if err != nil {
		return store.RecordResult{}, err
	}
	defer release()

	o := store.FromEnvelope(env, uuid.NewString(), 0)
	query, args := s.builder.Insert(table).
		Columns(columns[1:]...).
		Values(
			o.ID, o.Platform, o.Project, o.SessionID, o.EventType, o.Title,
			o.Content, o.ContentRedacted, o.CreatedAt, o.TagsJSON,
			o.PrivacyTagsJSON, o.CorrelationID, o.DedupeHash, o.Importance,
		).
		OnConflict(entsql.ConflictColumns("dedupe_hash"), entsql.DoNothing()).
		Query()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.RecordResult{}, fmt.Errorf("recording event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return store.RecordResult{ID: o.ID, Inserted: true}, nil
	}

	query, args = s.builder.Select("id").
		From(entsql.Table(table)).
		Where(entsql.EQ("dedupe_hash", o.DedupeHash)).
		Query()

	var existing string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&existing); err != nil {
		return store.RecordResult{}, fmt.Errorf("resolving duplicate event: %w", err)
	}
	return store.RecordResult{ID: existing}, nil
}

// Search implements store.Store. Rows are prefiltered in SQL to those that
// contain a query token or appear in the vector results, then scored by
// store.Rank.
func (s *Store) Search(ctx context.Context, query string, filters store.Filters, w scoring.Weights) (*store.SearchResult, error) {
	release, err := s.guard()
	if err != nil {
		return nil, err
	}
	defer release()

	scores, err := s.vectors.Scores(ctx, query)
	if err != nil {
		s.logger.Warn("vector signal unavailable", "error", err)
		scores = nil
	}

	var matchers []*entsql.Predicate
	for _, t := range scoring.Tokenize(query) {
		matchers = append(matchers,
			entsql.Contains("content_redacted", t),
			entsql.Contains("title", t),
		)
	}
	if len(scores) > 0 {
		ids := make([]any, 0, len(scores))
		for id := range scores {
			ids = append(ids, id)
		}
		matchers = append(matchers, entsql.In("id", ids...))
	}
	if len(matchers) == 0 {
		return &store.SearchResult{Candidates: []store.Candidate{}}, nil
	}

	preds := append(filterPredicates(filters), entsql.Or(matchers...))
	sel := s.builder.Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.And(preds...)).
		OrderBy("seq")

	pool, err := s.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	return store.Rank(query, pool, scores, w, filters, s.now()), nil
}

func filterPredicates(f store.Filters) []*entsql.Predicate {
	var preds []*entsql.Predicate
	for col, v := range map[string]string{
		"platform":   f.Platform,
		"project":    f.Project,
		"session_id": f.SessionID,
		"event_type": f.EventType,
	} {
		if v != "" {
			preds = append(preds, entsql.EQ(col, v))
		}
	}
	if f.Since != "" {
		preds = append(preds, entsql.GTE("created_at", f.Since))
	}
	if f.Until != "" {
		preds = append(preds, entsql.LT("created_at", f.Until))
	}
	return preds
}

// Timeline implements store.Store.
func (s *Store) Timeline(ctx context.Context, id string, before, after int) ([]store.Observation, error) {
	release, err := s.guard()
	if err != nil {
		return nil, err
	}
	defer release()

	query, args := s.builder.Select("session_id").
		From(entsql.Table(table)).
		Where(entsql.EQ("id", id)).
		Query()

	var sessionID string
	switch err := s.db.QueryRowContext(ctx, query, args...).Scan(&sessionID); {
	case err == sql.ErrNoRows:
		return nil, store.NotFoundError{ID: id}
	case err != nil:
		return nil, fmt.Errorf("loading observation %s: %w", id, err)
	}

	session, err := s.query(ctx, s.builder.Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("created_at", "seq"))
	if err != nil {
		return nil, err
	}
	return store.Around(session, id, before, after)
}

// GetObservations implements store.Store.
func (s *Store) GetObservations(ctx context.Context, ids []string, compact bool) ([]store.Observation, error) {
	release, err := s.guard()
	if err != nil {
		return nil, err
	}
	defer release()

	if len(ids) == 0 {
		return []store.Observation{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.query(ctx, s.builder.Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.In("id", args...)))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]store.Observation, len(rows))
	for _, o := range rows {
		byID[o.ID] = o
	}

	out := make([]store.Observation, 0, len(ids))
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			continue
		}
		if compact {
			o = store.Compact(o)
		}
		out = append(out, o)
	}
	return out, nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	release, err := s.guard()
	if err != nil {
		return nil, err
	}
	defer release()

	st := &store.Stats{ByPlatform: map[string]int{}, ByProject: map[string]int{}}

	query, args := s.builder.Select(
		entsql.Count("*"),
		"COUNT(DISTINCT session_id)",
		"COALESCE(MAX(created_at), '')",
	).From(entsql.Table(table)).Query()
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.Observations, &st.Sessions, &st.Newest); err != nil {
		return nil, fmt.Errorf("counting observations: %w", err)
	}

	for col, into := range map[string]map[string]int{"platform": st.ByPlatform, "project": st.ByProject} {
		if err := s.countBy(ctx, col, into); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *Store) countBy(ctx context.Context, col string, into map[string]int) error {
	query, args := s.builder.Select(col, entsql.Count("*")).
		From(entsql.Table(table)).
		GroupBy(col).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("grouping by %s: %w", col, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scanning %s counts: %w", col, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// Shutdown implements store.Store. It waits for in-flight calls, then
// closes the database.
func (s *Store) Shutdown(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.closed = true
	s.logger.Info("store shut down", "reason", reason)
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, sel *entsql.Selector) ([]store.Observation, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close()

	var out []store.Observation
	for rows.Next() {
		var o store.Observation
		if err := rows.Scan(
			&o.Seq, &o.ID, &o.Platform, &o.Project, &o.SessionID, &o.EventType,
			&o.Title, &o.Content, &o.ContentRedacted, &o.CreatedAt, &o.TagsJSON,
			&o.PrivacyTagsJSON, &o.CorrelationID, &o.DedupeHash, &o.Importance,
		); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
