// Package event defines the canonical event every ingestion adapter produces,
// along with the replay-safe fingerprints used to deduplicate them.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Event types emitted by the adapters.
const (
	TypeUserPrompt = "user_prompt"
	TypeToolUse    = "tool_use"
	TypeCheckpoint = "checkpoint"
	TypeSessionEnd = "session_end"
)

// Platforms the adapters decode.
const (
	PlatformCodex       = "codex"
	PlatformCursor      = "cursor"
	PlatformGemini      = "gemini"
	PlatformOpenCode    = "opencode"
	PlatformAntigravity = "antigravity"
)

// Event is the platform-agnostic record produced by an ingestion adapter.
type Event struct {
	Platform      string         `json:"platform"`
	Project       string         `json:"project"`
	SessionID     string         `json:"session_id"`
	EventType     string         `json:"event_type"`
	Timestamp     string         `json:"timestamp"`
	Payload       map[string]any `json:"payload"`
	Tags          []string       `json:"tags"`
	PrivacyTags   []string       `json:"privacy_tags"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	DedupeHash    string         `json:"dedupe_hash"`
}

// Content returns payload.content, or "" if it is absent or not a string.
func (e *Event) Content() string {
	return payloadString(e.Payload, "content")
}

// Title returns payload.title, or "" if it is absent or not a string.
func (e *Event) Title() string {
	return payloadString(e.Payload, "title")
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

// Batch is the result of running an adapter over one chunk.
// Consumed is the number of bytes the caller may advance its cursor by.
type Batch struct {
	Events   []Event
	Consumed int
}

// LineHash fingerprints a streamed record by its origin, position and raw bytes.
func LineHash(sourceKey string, offset int64, raw []byte) string {
	h := sha256.New()
	h.Write([]byte(sourceKey))
	h.Write([]byte(":"))
	h.Write([]byte(strconv.FormatInt(offset, 10)))
	h.Write([]byte(":"))
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash fingerprints a whole-file or row record by its origin and the
// hash of its content.
func ContentHash(sourceKey, contentHash string) string {
	sum := sha256.Sum256([]byte(sourceKey + ":" + contentHash))
	return hex.EncodeToString(sum[:])
}

// Digest returns the hex SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Clean trims s and reports whether anything is left.
func Clean(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
