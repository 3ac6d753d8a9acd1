// Package answer compiles ranked, privacy-filtered observations into an
// evidence bundle. It never sees unredacted content: only content_redacted
// is carried into evidence.
package answer

import (
	"sort"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/store"
)

// Evidence is the externally safe projection of one observation.
type Evidence struct {
	ID            string   `json:"id"`
	Platform      string   `json:"platform"`
	Project       string   `json:"project"`
	SessionID     string   `json:"session_id"`
	EventType     string   `json:"event_type"`
	Title         string   `json:"title,omitempty"`
	Content       string   `json:"content"`
	CreatedAt     string   `json:"created_at"`
	Tags          []string `json:"tags"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	Rank          int      `json:"rank"`
}

// TimeSpan bounds the evidence by created_at.
type TimeSpan struct {
	Oldest string `json:"oldest"`
	Newest string `json:"newest"`
}

// Meta summarizes where the evidence came from.
type Meta struct {
	Platforms       []string  `json:"platforms"`
	Projects        []string  `json:"projects"`
	TimeSpan        *TimeSpan `json:"time_span"`
	CrossSession    bool      `json:"cross_session"`
	PrivacyExcluded int       `json:"privacy_excluded"`
}

// Compiled is the answer bundle returned to callers.
type Compiled struct {
	QuestionKind  router.Kind `json:"question_kind"`
	EvidenceCount int         `json:"evidence_count"`
	Evidence      []Evidence  `json:"evidence"`
	Meta          Meta        `json:"meta"`
}

// Compile builds the bundle for observations, which must already be in
// final rank order.
func Compile(kind router.Kind, observations []store.Observation, privacyExcluded int) Compiled {
	out := Compiled{
		QuestionKind:  kind,
		EvidenceCount: len(observations),
		Evidence:      make([]Evidence, 0, len(observations)),
		Meta: Meta{
			Platforms:       []string{},
			Projects:        []string{},
			PrivacyExcluded: max(privacyExcluded, 0),
		},
	}

	seenPlatform := map[string]bool{}
	seenProject := map[string]bool{}
	sessions := map[string]bool{}

	for i, o := range observations {
		out.Evidence = append(out.Evidence, Evidence{
			ID:            o.ID,
			Platform:      o.Platform,
			Project:       o.Project,
			SessionID:     o.SessionID,
			EventType:     o.EventType,
			Title:         o.Title,
			Content:       o.ContentRedacted,
			CreatedAt:     o.CreatedAt,
			Tags:          store.DecodeTags(o.TagsJSON),
			CorrelationID: o.CorrelationID,
			Rank:          i + 1,
		})

		if !seenPlatform[o.Platform] {
			seenPlatform[o.Platform] = true
			out.Meta.Platforms = append(out.Meta.Platforms, o.Platform)
		}
		if !seenProject[o.Project] {
			seenProject[o.Project] = true
			out.Meta.Projects = append(out.Meta.Projects, o.Project)
		}
		sessions[o.SessionID] = true
	}

	out.Meta.CrossSession = len(sessions) > 1
	out.Meta.TimeSpan = span(observations)
	return out
}

func span(observations []store.Observation) *TimeSpan {
	if len(observations) == 0 {
		return nil
	}

	stamps := make([]string, 0, len(observations))
	for _, o := range observations {
		stamps = append(stamps, o.CreatedAt)
	}
	sort.SliceStable(stamps, func(i, j int) bool {
		return before(stamps[i], stamps[j])
	})

	return &TimeSpan{Oldest: stamps[0], Newest: stamps[len(stamps)-1]}
}

// before orders parsed timestamps chronologically, with unparsable values
// sorted after all parsable ones and compared lexically among themselves.
func before(a, b string) bool {
	ta, okA := event.ParseTime(a)
	tb, okB := event.ParseTime(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA != okB:
		return okA
	default:
		return a < b
	}
}
