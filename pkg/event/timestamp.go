package event

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical timestamp format: UTC, millisecond precision.
const Layout = "2006-01-02T15:04:05.000Z"

// Clock supplies the fallback "now" used when a record carries no usable time.
type Clock func() time.Time

// msThreshold separates millisecond epochs from second epochs.
const msThreshold = 1e12

var (
	maxTime = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
	}
)

// Format renders t in the canonical layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// ResolveTimestamp returns the first candidate that parses as a timestamp,
// formatted canonically. ISO-8601 strings are tried before numeric epochs;
// when nothing parses the clock decides.
func ResolveTimestamp(now Clock, candidates ...any) string {
	for _, c := range candidates {
		if s, ok := c.(string); ok {
			if t, ok := parseISO(s); ok {
				return Format(t)
			}
		}
	}

	for _, c := range candidates {
		if t, ok := parseEpoch(c); ok {
			return Format(t)
		}
	}

	if now == nil {
		now = time.Now
	}
	return Format(now())
}

// ParseTime parses a canonical or ISO-8601 timestamp.
func ParseTime(s string) (time.Time, bool) {
	return parseISO(s)
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), inRange(t)
		}
	}

	return time.Time{}, false
}

func parseEpoch(v any) (time.Time, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" || strings.TrimLeft(s, "0123456789") != "" {
			return time.Time{}, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		f = parsed
	default:
		return time.Time{}, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}

	if f < msThreshold {
		f *= 1000
	}
	if f > float64(maxTime.UnixMilli()) {
		return time.Time{}, false
	}

	t := time.UnixMilli(int64(f)).UTC()
	return t, inRange(t)
}

func inRange(t time.Time) bool {
	return !t.Before(time.Unix(0, 0)) && t.Before(maxTime)
}
