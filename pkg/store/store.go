// Package store defines the durable observation store the retrieval pipeline
// depends on: idempotent recording keyed by dedupe hash, weighted hybrid
// search, timeline and hydration.
package store

import (
	"context"
	"encoding/json"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/scoring"
)

// Store persists observations and answers scored searches over them.
// Implementations must be safe for concurrent use.
type Store interface {
	// RecordEvent upserts the event keyed by its dedupe hash. Recording the
	// same hash again is a no-op that returns the original id.
	RecordEvent(ctx context.Context, env Envelope) (RecordResult, error)

	// Search returns candidates with raw signals and a final score under w,
	// ordered by final score descending with ties in insertion order.
	Search(ctx context.Context, query string, filters Filters, w scoring.Weights) (*SearchResult, error)

	// Timeline returns up to before/after observations adjacent to id in the
	// same session, in chronological order, including id itself.
	Timeline(ctx context.Context, id string, before, after int) ([]Observation, error)

	// GetObservations hydrates ids in the requested order. Unknown ids are
	// skipped. compact truncates content.
	GetObservations(ctx context.Context, ids []string, compact bool) ([]Observation, error)

	// Stats summarizes what the store holds.
	Stats(ctx context.Context) (*Stats, error)

	// Shutdown drains the store. Later calls return ErrClosed.
	Shutdown(ctx context.Context, reason string) error
}

// Envelope is an event ready to record. ContentRedacted is supplied by the
// caller's privacy layer.
type Envelope struct {
	Event           event.Event
	ContentRedacted string
}

// RecordResult reports the observation id and whether it was newly created.
type RecordResult struct {
	ID       string `json:"id"`
	Inserted bool   `json:"inserted"`
}

// Observation is the store's durable materialization of an event.
type Observation struct {
	ID              string  `json:"id"`
	Platform        string  `json:"platform"`
	Project         string  `json:"project"`
	SessionID       string  `json:"session_id"`
	EventType       string  `json:"event_type"`
	Title           string  `json:"title,omitempty"`
	Content         string  `json:"-"`
	ContentRedacted string  `json:"content_redacted"`
	CreatedAt       string  `json:"created_at"`
	TagsJSON        string  `json:"tags_json"`
	PrivacyTagsJSON string  `json:"privacy_tags_json"`
	CorrelationID   string  `json:"correlation_id,omitempty"`
	DedupeHash      string  `json:"dedupe_hash"`
	Importance      float64 `json:"importance"`

	// Seq is the insertion sequence used to break score ties.
	Seq int64 `json:"-"`
}

// Tags decodes TagsJSON, returning an empty list on any failure.
func (o *Observation) Tags() []string {
	return DecodeTags(o.TagsJSON)
}

// PrivacyTags decodes PrivacyTagsJSON, returning an empty list on any failure.
func (o *Observation) PrivacyTags() []string {
	return DecodeTags(o.PrivacyTagsJSON)
}

// DecodeTags parses a JSON array of strings defensively. Anything that is not
// an array yields an empty list; non-string elements are skipped.
func DecodeTags(raw string) []string {
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{}
	}

	tags := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// EncodeTags renders tags as a JSON array, never null.
func EncodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Filters narrow a search.
type Filters struct {
	Platform  string `json:"platform,omitempty"`
	Project   string `json:"project,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	EventType string `json:"event_type,omitempty"`

	// Since and Until bound created_at, in canonical timestamp form.
	Since string `json:"since,omitempty"`
	Until string `json:"until,omitempty"`

	// IncludePrivate disables privacy exclusion.
	IncludePrivate bool `json:"include_private,omitempty"`

	// Limit caps the candidates returned. Zero means DefaultLimit.
	Limit int `json:"limit,omitempty"`
}

// DefaultLimit is the candidate cap when Filters.Limit is zero.
const DefaultLimit = 50

// Candidate is one scored search hit.
type Candidate struct {
	Observation Observation     `json:"observation"`
	Signals     scoring.Signals `json:"signals"`
	FinalScore  float64         `json:"final_score"`
}

// RankScore implements scoring.Ranked.
func (c Candidate) RankScore() float64 { return c.FinalScore }

// RankSeq implements scoring.Ranked.
func (c Candidate) RankSeq() int64 { return c.Observation.Seq }

// SearchResult is the ranked candidate list plus how many matches privacy
// rules removed.
type SearchResult struct {
	Candidates      []Candidate `json:"candidates"`
	PrivacyExcluded int         `json:"privacy_excluded"`
}

// Stats counts observations.
type Stats struct {
	Observations int            `json:"observations"`
	Sessions     int            `json:"sessions"`
	ByPlatform   map[string]int `json:"by_platform"`
	ByProject    map[string]int `json:"by_project"`
	Newest       string         `json:"newest,omitempty"`
}
