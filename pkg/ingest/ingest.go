// Package ingest holds the plumbing shared by the platform adapters: source
// kinds, newline-delimited record splitting and loose JSON field access.
//
// Adapters are pure. They receive a read position and bytes, and report how
// many bytes are safe to consume. They never own file handles or cursors.
package ingest

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/ctxmem/pkg/event"
)

// Kind names an adapter and the shape of the source it reads.
type Kind string

const (
	KindCodexSessions    Kind = "codex-sessions"
	KindCursorHooks      Kind = "cursor-hooks"
	KindGeminiEvents     Kind = "gemini-events"
	KindOpenCodeDB       Kind = "opencode-db"
	KindOpenCodeStorage  Kind = "opencode-storage"
	KindAntigravityFiles Kind = "antigravity-files"
	KindAntigravityLogs  Kind = "antigravity-logs"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindCodexSessions,
		KindCursorHooks,
		KindGeminiEvents,
		KindOpenCodeDB,
		KindOpenCodeStorage,
		KindAntigravityFiles,
		KindAntigravityLogs,
	}
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// WholeFile reports whether sources of this kind are parsed as one document
// rather than as a stream of lines.
func (k Kind) WholeFile() bool {
	return k == KindOpenCodeStorage || k == KindAntigravityFiles
}

// SourceKey is the stable identifier of an ingestion origin.
func SourceKey(kind Kind, path string) string {
	return string(kind) + ":" + filepath.Clean(path)
}

// Input is the chunk handed to a line adapter. BaseOffset is the absolute
// position of Chunk[0] in the source.
type Input struct {
	SourceKey  string
	BaseOffset int64
	Chunk      []byte
	Now        event.Clock
}

// LineEvent starts an event for a streamed line, filling in the dedupe hash
// and the provenance fields every line adapter records.
func LineEvent(in Input, kind Kind, platform string, line Line) event.Event {
	offset := in.BaseOffset + line.Offset
	return event.Event{
		Platform: platform,
		Payload: map[string]any{
			"source_type": string(kind),
			"source_key":  in.SourceKey,
			"line_offset": offset,
		},
		Tags:        []string{platform},
		PrivacyTags: []string{},
		DedupeHash:  event.LineHash(in.SourceKey, offset, line.Raw),
	}
}

// Line is one complete, newline-terminated record inside a chunk.
type Line struct {
	// Offset is the byte offset of the line relative to the chunk start.
	Offset int64

	// Raw is the line without its terminator.
	Raw []byte
}

// Lines splits chunk into complete lines. consumed is the byte length of the
// prefix made of newline-terminated records; an unterminated tail is left
// for the next read. Blank lines are consumed but not returned.
func Lines(chunk []byte) (lines []Line, consumed int) {
	for consumed < len(chunk) {
		idx := bytes.IndexByte(chunk[consumed:], '\n')
		if idx < 0 {
			break
		}

		raw := chunk[consumed : consumed+idx]
		raw = bytes.TrimSuffix(raw, []byte("\r"))
		if len(bytes.TrimSpace(raw)) > 0 {
			lines = append(lines, Line{Offset: int64(consumed), Raw: raw})
		}

		consumed += idx + 1
	}

	return lines, consumed
}

// DecodeObject decodes raw into a generic JSON object. Numbers are kept as
// json.Number so epoch values survive without float rounding.
func DecodeObject(raw []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// String returns the first non-empty trimmed string value among keys.
func String(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Object returns obj[key] as a JSON object.
func Object(obj map[string]any, key string) map[string]any {
	m, _ := obj[key].(map[string]any)
	return m
}

// Strings returns obj[key] as a list of non-empty strings.
func Strings(obj map[string]any, key string) []string {
	list, ok := obj[key].([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Stringify renders an arbitrary JSON value as text: strings verbatim,
// everything else re-encoded.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Truncate caps s at limit runes.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// First returns the first value that is non-empty after trimming.
func First(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
