package store

import (
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/scoring"
	"github.com/papercomputeco/ctxmem/pkg/utils"
)

// privacyMarkers exclude an observation from search unless
// Filters.IncludePrivate is set.
var privacyMarkers = []string{"private", "secret"}

var importanceByType = map[string]float64{
	event.TypeCheckpoint: 0.7,
	event.TypeUserPrompt: 0.5,
	event.TypeToolUse:    0.3,
	event.TypeSessionEnd: 0.2,
}

const defaultImportance = 0.3

// Importance is the stored importance of an event type.
func Importance(eventType string) float64 {
	if v, ok := importanceByType[eventType]; ok {
		return v
	}
	return defaultImportance
}

// Private reports whether o carries a privacy marker.
func Private(o *Observation) bool {
	for _, t := range o.PrivacyTags() {
		if slices.Contains(privacyMarkers, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Matches reports whether o passes the field filters of f. Privacy is
// handled by Rank.
func Matches(o *Observation, f Filters) bool {
	switch {
	case f.Platform != "" && o.Platform != f.Platform:
		return false
	case f.Project != "" && o.Project != f.Project:
		return false
	case f.SessionID != "" && o.SessionID != f.SessionID:
		return false
	case f.EventType != "" && o.EventType != f.EventType:
		return false
	case f.Since != "" && o.CreatedAt < f.Since:
		return false
	case f.Until != "" && o.CreatedAt >= f.Until:
		return false
	}
	return true
}

// Rank scores pool against query and returns the ranked, privacy-filtered
// candidates. vectorScores maps observation id to similarity and may be nil.
// Only observations with a lexical or vector signal are candidates; graph
// links candidates that share a session or correlation id with a lexical hit.
func Rank(query string, pool []Observation, vectorScores map[string]float64, w scoring.Weights, f Filters, now time.Time) *SearchResult {
	tokens := scoring.Tokenize(query)

	type scored struct {
		obs     Observation
		lexical float64
		vector  float64
	}

	hits := make([]scored, 0, len(pool))
	linkedSessions := map[string]bool{}
	linkedCorrelations := map[string]bool{}

	for _, o := range pool {
		lex := lexical(tokens, &o)
		vec := vectorScores[o.ID]
		if lex == 0 && vec == 0 {
			continue
		}

		if lex > 0 {
			linkedSessions[o.SessionID] = true
			if o.CorrelationID != "" {
				linkedCorrelations[o.CorrelationID] = true
			}
		}
		hits = append(hits, scored{obs: o, lexical: lex, vector: vec})
	}

	result := &SearchResult{Candidates: make([]Candidate, 0, len(hits))}
	for _, h := range hits {
		if !f.IncludePrivate && Private(&h.obs) {
			result.PrivacyExcluded++
			continue
		}

		s := scoring.Signals{
			Lexical:    h.lexical,
			Vector:     h.vector,
			Recency:    recency(h.obs.CreatedAt, now),
			TagBoost:   tagBoost(tokens, &h.obs),
			Importance: h.obs.Importance,
		}
		if linkedSessions[h.obs.SessionID] || (h.obs.CorrelationID != "" && linkedCorrelations[h.obs.CorrelationID]) {
			s.Graph = 1
		}

		result.Candidates = append(result.Candidates, Candidate{
			Observation: h.obs,
			Signals:     s,
			FinalScore:  scoring.Combine(s, w),
		})
	}

	scoring.Rank(result.Candidates)

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(result.Candidates) > limit {
		result.Candidates = result.Candidates[:limit]
	}

	return result
}

func lexical(tokens []string, o *Observation) float64 {
	if len(tokens) == 0 {
		return 0
	}

	haystack := strings.ToLower(o.Title + "\n" + o.ContentRedacted)
	hits := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func tagBoost(tokens []string, o *Observation) float64 {
	for _, tag := range o.Tags() {
		if slices.Contains(tokens, strings.ToLower(tag)) {
			return 1
		}
	}
	return 0
}

func recency(createdAt string, now time.Time) float64 {
	t, ok := event.ParseTime(createdAt)
	if !ok {
		return 0
	}
	// the store signal stays in [0, 1]; clock skew counts as fresh
	return scoring.Recency(max(now.Sub(t).Hours(), 0))
}

// CompactLimit is the content length GetObservations keeps in compact mode.
const CompactLimit = 280

// Compact truncates the content fields of o for compact hydration.
func Compact(o Observation) Observation {
	o.Content = utils.Truncate(o.Content, CompactLimit)
	o.ContentRedacted = utils.Truncate(o.ContentRedacted, CompactLimit)
	return o
}

// FromEnvelope builds the observation for env. id and seq are assigned by the
// store.
func FromEnvelope(env Envelope, id string, seq int64) Observation {
	ev := env.Event
	return Observation{
		ID:              id,
		Platform:        ev.Platform,
		Project:         ev.Project,
		SessionID:       ev.SessionID,
		EventType:       ev.EventType,
		Title:           ev.Title(),
		Content:         ev.Content(),
		ContentRedacted: env.ContentRedacted,
		CreatedAt:       ev.Timestamp,
		TagsJSON:        EncodeTags(ev.Tags),
		PrivacyTagsJSON: EncodeTags(ev.PrivacyTags),
		CorrelationID:   ev.CorrelationID,
		DedupeHash:      ev.DedupeHash,
		Importance:      Importance(ev.EventType),
		Seq:             seq,
	}
}
