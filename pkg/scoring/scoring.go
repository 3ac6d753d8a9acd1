// Package scoring defines the weighted hybrid scoring contract shared by the
// router, the stores and the reranker.
package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Weights are the per-signal coefficients applied to a candidate's raw
// signals. Predefined vectors sum to 1.
type Weights struct {
	Lexical    float64 `json:"lexical"`
	Vector     float64 `json:"vector"`
	Recency    float64 `json:"recency"`
	TagBoost   float64 `json:"tag_boost"`
	Importance float64 `json:"importance"`
	Graph      float64 `json:"graph"`
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	return w.Lexical + w.Vector + w.Recency + w.TagBoost + w.Importance + w.Graph
}

// Normalize scales w so its components sum to 1. Negative components are
// clamped to 0 first; an all-zero vector is returned unchanged.
func (w Weights) Normalize() Weights {
	c := Weights{
		Lexical:    math.Max(w.Lexical, 0),
		Vector:     math.Max(w.Vector, 0),
		Recency:    math.Max(w.Recency, 0),
		TagBoost:   math.Max(w.TagBoost, 0),
		Importance: math.Max(w.Importance, 0),
		Graph:      math.Max(w.Graph, 0),
	}

	sum := c.Sum()
	if sum == 0 {
		return c
	}

	return Weights{
		Lexical:    c.Lexical / sum,
		Vector:     c.Vector / sum,
		Recency:    c.Recency / sum,
		TagBoost:   c.TagBoost / sum,
		Importance: c.Importance / sum,
		Graph:      c.Graph / sum,
	}
}

// Signals are the raw, unweighted per-candidate scores, each in [0, 1].
type Signals struct {
	Lexical    float64 `json:"lexical"`
	Vector     float64 `json:"vector"`
	Recency    float64 `json:"recency"`
	TagBoost   float64 `json:"tag_boost"`
	Importance float64 `json:"importance"`
	Graph      float64 `json:"graph"`
}

// Combine returns the weighted sum of s under w.
func Combine(s Signals, w Weights) float64 {
	return s.Lexical*w.Lexical +
		s.Vector*w.Vector +
		s.Recency*w.Recency +
		s.TagBoost*w.TagBoost +
		s.Importance*w.Importance +
		s.Graph*w.Graph
}

// Ranked pairs a score with the insertion sequence used to break ties.
type Ranked interface {
	RankScore() float64
	RankSeq() int64
}

// Rank sorts items by score descending; equal scores keep ascending
// insertion order.
func Rank[T Ranked](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].RankScore(), items[j].RankScore()
		if si != sj {
			return si > sj
		}
		return items[i].RankSeq() < items[j].RankSeq()
	})
}

// RecencyHalfLifeHours is the decay constant of the recency signal.
const RecencyHalfLifeHours = 24 * 14

// Recency returns exp(-ageHours / RecencyHalfLifeHours). A negative age, from
// a timestamp in the future, yields a boost above 1.
func Recency(ageHours float64) float64 {
	return math.Exp(-ageHours / RecencyHalfLifeHours)
}

// MaxTokens caps the number of tokens Tokenize returns.
const MaxTokens = 64

// Tokenize lower-cases s, strips everything except ASCII letters and digits,
// whitespace and common CJK ranges, splits on whitespace, and drops
// single-rune tokens. At most MaxTokens tokens are returned.
func Tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', isCJK(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	tokens := make([]string, 0, 8)
	for _, f := range strings.Fields(b.String()) {
		if len([]rune(f)) < 2 {
			continue
		}
		tokens = append(tokens, f)
		if len(tokens) == MaxTokens {
			break
		}
	}
	return tokens
}

// isCJK covers CJK unified ideographs (and extension A), kana and hangul.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
	case r >= 0x3400 && r <= 0x4DBF:
	case r >= 0x3040 && r <= 0x30FF:
	case r >= 0xAC00 && r <= 0xD7AF:
	default:
		return false
	}
	return true
}
