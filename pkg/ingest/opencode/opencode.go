// Package opencode decodes opencode messages, either as rows of its SQLite
// database or as the per-message JSON documents of its file storage.
//
// Assistant messages that carry no text and did not finish with "stop" are
// intermediate tool-call steps and produce no event.
package opencode

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	finishStop    = "stop"

	completedMarker = "assistant response completed"

	// StreamingGrace bounds how long an assistant row with no settle signal
	// is waited on before it is treated as abandoned.
	StreamingGrace = 24 * time.Hour
)

// Row is one message as read from the opencode database.
type Row struct {
	RowID       int64
	ID          string
	SessionID   string
	Role        string
	Text        string
	Finish      string
	Directory   string
	TimeCreated int64

	// Closed is set when the message carries an error or a completion time.
	Closed bool

	// Superseded is set when a later message exists in the same session.
	Superseded bool
}

// Context supplies caller fallbacks and lookups.
type Context struct {
	DefaultProject string

	// SessionDirectory resolves a session id to its working directory.
	SessionDirectory func(sessionID string) (string, bool)

	// Parts resolves a message id to the text of its parts, for storage
	// layouts that keep parts in separate documents.
	Parts func(messageID string) string
}

// Settled reports whether a row is final. An assistant row is final once it
// has a finish reason, was closed by an error or completion time, or was
// followed by another message in its session. Anything else may still be
// streaming and should be read again later.
func Settled(row Row) bool {
	if row.Role != roleAssistant {
		return true
	}
	return row.Finish != "" || row.Closed || row.Superseded
}

// Abandoned reports whether an unsettled row is older than StreamingGrace
// and will never settle. Rows without a creation time are never abandoned.
func Abandoned(row Row, now time.Time) bool {
	if Settled(row) || row.TimeCreated <= 0 {
		return false
	}
	created := time.UnixMilli(row.TimeCreated)
	if row.TimeCreated < 1e12 {
		created = time.Unix(row.TimeCreated, 0)
	}
	return now.Sub(created) > StreamingGrace
}

// ParseRow converts a database row into an event, or nil when the row is
// suppressed.
func ParseRow(sourceKey string, row Row, now event.Clock, ctx Context) *event.Event {
	eventType, content, ok := classify(row.Role, row.Text, row.Finish)
	if !ok {
		return nil
	}

	ev := newEvent(sourceKey, ingest.KindOpenCodeDB, row.ID, row.Role, row.Finish, content)
	ev.EventType = eventType
	ev.SessionID = row.SessionID
	ev.Project = ingest.First(row.Directory, directory(ctx, row.SessionID), ctx.DefaultProject, "unknown")
	ev.Timestamp = event.ResolveTimestamp(now, row.TimeCreated)
	ev.Payload["message_id"] = row.ID
	ev.Payload["row_id"] = row.RowID
	return &ev
}

// ParseStorage decodes one message document. A document that is not valid
// JSON is assumed to be mid-write: nothing is consumed so it is retried. Valid
// JSON is always fully consumed, whether or not it yields an event, and
// fields of an unexpected type are ignored.
func ParseStorage(sourceKey string, chunk []byte, now event.Clock, ctx Context) event.Batch {
	if !json.Valid(chunk) {
		return event.Batch{}
	}

	batch := event.Batch{Consumed: len(chunk)}

	msg, ok := ingest.DecodeObject(chunk)
	if !ok {
		return batch
	}

	id := ingest.String(msg, "id")
	role := ingest.String(msg, "role")
	finish := ingest.String(msg, "finish")

	text := ingest.String(msg, "text")
	if text == "" {
		text = partsText(msg["parts"])
	}
	if strings.TrimSpace(text) == "" && ctx.Parts != nil && id != "" {
		text = ctx.Parts(id)
	}

	eventType, content, ok := classify(role, text, finish)
	if !ok {
		return batch
	}

	sessionID := ingest.String(msg, "sessionID", "session_id")
	ev := newEvent(sourceKey, ingest.KindOpenCodeStorage, id, role, finish, content)
	ev.EventType = eventType
	ev.SessionID = ingest.First(sessionID, "opencode:unknown")
	ev.Project = ingest.First(directory(ctx, sessionID), payloadDir(msg), ctx.DefaultProject, "unknown")
	ev.Timestamp = event.ResolveTimestamp(now, ingest.Object(msg, "time")["created"], msg["time_created"])
	ev.Payload["message_id"] = id

	batch.Events = append(batch.Events, ev)
	return batch
}

// classify applies the role mapping and noise suppression shared by both
// source shapes.
func classify(role, text, finish string) (eventType, content string, ok bool) {
	text = strings.TrimSpace(text)

	switch role {
	case roleUser:
		if text == "" {
			return "", "", false
		}
		return event.TypeUserPrompt, text, true

	case roleAssistant:
		if text != "" {
			return event.TypeCheckpoint, text, true
		}
		if finish == finishStop {
			return event.TypeCheckpoint, completedMarker, true
		}
		return "", "", false

	default:
		return "", "", false
	}
}

func newEvent(sourceKey string, kind ingest.Kind, id, role, finish, content string) event.Event {
	digest := event.Digest(fmt.Appendf(nil, "%s\n%s\n%s\n%s", id, role, finish, content))
	return event.Event{
		Platform: event.PlatformOpenCode,
		Payload: map[string]any{
			"source_type": string(kind),
			"source_key":  sourceKey,
			"role":        role,
			"finish":      finish,
			"content":     content,
		},
		Tags:        []string{event.PlatformOpenCode},
		PrivacyTags: []string{},
		DedupeHash:  event.ContentHash(sourceKey, digest),
	}
}

func partsText(raw any) string {
	parts, _ := raw.([]any)
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok || ingest.String(part, "type") != "text" {
			continue
		}
		if text := ingest.String(part, "text"); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n")
}

func directory(ctx Context, sessionID string) string {
	if ctx.SessionDirectory == nil || sessionID == "" {
		return ""
	}
	dir, ok := ctx.SessionDirectory(sessionID)
	if !ok {
		return ""
	}
	return dir
}

func payloadDir(msg map[string]any) string {
	if path := ingest.Object(msg, "path"); path != nil {
		if dir := ingest.String(path, "cwd", "root"); dir != "" {
			return dir
		}
	}
	return ingest.String(msg, "cwd")
}
