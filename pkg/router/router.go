// Package router classifies a retrieval query into a question kind and picks
// the scoring weights used for that kind.
package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/papercomputeco/ctxmem/pkg/scoring"
)

// Kind is a retrieval intent.
type Kind string

const (
	KindProfile  Kind = "profile"
	KindTimeline Kind = "timeline"
	KindGraph    Kind = "graph"
	KindVector   Kind = "vector"
	KindHybrid   Kind = "hybrid"
)

const (
	// cueWeight is added to a group's score for every matching pattern.
	cueWeight = 0.3

	// minConfidence is the score a group needs to win.
	minConfidence = 0.3

	fallbackConfidence = 0.5
)

// Decision is the outcome of routing a query.
type Decision struct {
	Kind       Kind            `json:"kind"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
	Weights    scoring.Weights `json:"weights"`
}

var weights = map[Kind]scoring.Weights{
	KindProfile:  {Lexical: 0.30, Vector: 0.15, Recency: 0.05, TagBoost: 0.30, Importance: 0.15, Graph: 0.05},
	KindTimeline: {Lexical: 0.20, Vector: 0.10, Recency: 0.50, TagBoost: 0.05, Importance: 0.10, Graph: 0.05},
	KindGraph:    {Lexical: 0.20, Vector: 0.15, Recency: 0.05, TagBoost: 0.10, Importance: 0.10, Graph: 0.40},
	KindVector:   {Lexical: 0.10, Vector: 0.70, Recency: 0.05, TagBoost: 0.05, Importance: 0.05, Graph: 0.05},
	KindHybrid:   {Lexical: 0.35, Vector: 0.35, Recency: 0.10, TagBoost: 0.05, Importance: 0.10, Graph: 0.05},
}

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindProfile, KindTimeline, KindGraph, KindVector, KindHybrid}
}

// ParseKind returns the Kind named by s, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := weights[k]
	return k, ok
}

// CheckKind returns an error naming the valid kinds when s is set and is not
// one of them.
func CheckKind(s string) error {
	if s == "" {
		return nil
	}
	if _, ok := ParseKind(s); ok {
		return nil
	}

	names := make([]string, 0, len(weights))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return fmt.Errorf("unknown kind %q (expected one of %s)", s, strings.Join(names, ", "))
}

// WeightsFor returns the predefined weight vector for k, falling back to the
// hybrid vector for unknown kinds.
func WeightsFor(k Kind) scoring.Weights {
	if w, ok := weights[k]; ok {
		return w
	}
	return weights[KindHybrid]
}

// cueGroup is an ordered table of patterns that signal one kind. Group order
// breaks score ties.
type cueGroup struct {
	kind     Kind
	patterns []*regexp.Regexp
}

var cueGroups = []cueGroup{
	{
		kind: KindProfile,
		patterns: compile(
			`\bwho\b`,
			`\b(author|owner|maintainer|creator)s?\b`,
			`\b(prefer|preference|preferences|favorite|favourite)\b`,
			`\b(my|our) (name|role|team|style|setup|stack)\b`,
			`\babout (me|us|the user)\b`,
			`\b(i|we) (like|use|usually|always|never)\b`,
			`\b(contact|email|profile)\b`,
		),
	},
	{
		kind: KindTimeline,
		patterns: compile(
			`\bwhen\b`,
			`\b(yesterday|today|tonight|tomorrow)\b`,
			`\b(last|past|this|previous) (week|month|session|time|night|day)\b`,
			`\b(recent|recently|latest|lately)\b`,
			`\b(history|timeline|chronolog\w*)\b`,
			`\b\d+ (minutes?|hours?|days?|weeks?) ago\b`,
			`\b(before|after|since|until)\b`,
		),
	},
	{
		kind: KindGraph,
		patterns: compile(
			`\b(related|relationship|relation)s?\b`,
			`\b(depends? on|dependency|dependencies)\b`,
			`\b(connect|connected|connection|link|linked)s?\b`,
			`\bbetween\b`,
			`\b(calls|called by|imports|uses|used by)\b`,
			`\b(impact|affects?|downstream|upstream)\b`,
		),
	},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Classify infers the question kind of query from its wording.
func Classify(query string) Decision {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return decision(KindHybrid, 0, "empty query")
	}

	bestKind := KindHybrid
	bestScore := 0.0
	bestHits := 0
	for _, g := range cueGroups {
		hits := 0
		for _, p := range g.patterns {
			if p.MatchString(q) {
				hits++
			}
		}

		score := min(float64(hits)*cueWeight, 1.0)
		if score > bestScore {
			bestKind, bestScore, bestHits = g.kind, score, hits
		}
	}

	if bestScore < minConfidence {
		return decision(KindHybrid, fallbackConfidence, "no strong intent cues; using hybrid retrieval")
	}

	return decision(bestKind, bestScore, fmt.Sprintf("matched %d %s cue(s)", bestHits, bestKind))
}

// Route honours an explicit, known kind; otherwise it classifies query.
func Route(query, explicitKind string) Decision {
	if explicitKind != "" {
		if k, ok := ParseKind(explicitKind); ok {
			return decision(k, 1.0, "explicit kind "+string(k))
		}
	}
	return Classify(query)
}

func decision(k Kind, confidence float64, reason string) Decision {
	return Decision{
		Kind:       k,
		Confidence: confidence,
		Reason:     reason,
		Weights:    WeightsFor(k),
	}
}
