// Package codex decodes Codex CLI rollout files (JSONL) into canonical events.
//
// Only user messages and task completions become events. Session identity is
// sticky: a session_meta line seen earlier in the file applies to every later
// line, so the resolved identity is handed back to the caller to persist with
// its read cursor.
package codex

import (
	"encoding/json"
	"strings"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

// UnknownSession is used when no session id can be resolved.
const UnknownSession = "codex:unknown"

// Context carries session identity across chunks of the same rollout file.
type Context struct {
	// SessionID and Project are learned from session_meta / turn_context lines.
	SessionID string `json:"session_id,omitempty"`
	Project   string `json:"project,omitempty"`

	// DefaultSessionID and DefaultProject are caller-supplied fallbacks.
	DefaultSessionID string `json:"-"`
	DefaultProject   string `json:"-"`
}

// injectedPrefixes mark user-role messages that Codex writes on the user's
// behalf rather than things the user typed.
var injectedPrefixes = []string{
	"<environment_context>",
	"<user_instructions>",
	"<user_shell_command>",
	"# AGENTS.md instructions",
}

type record struct {
	Type      string          `json:"type"`
	Timestamp any             `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`

	// Older rollouts write message items at the top level.
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	SessionID string          `json:"session_id"`
	ThreadID  string          `json:"thread_id"`
}

type sessionMeta struct {
	ID  string `json:"id"`
	Cwd string `json:"cwd"`
}

type item struct {
	Type             string          `json:"type"`
	Role             string          `json:"role"`
	Content          json.RawMessage `json:"content"`
	LastAgentMessage string          `json:"last_agent_message"`
	TurnID           string          `json:"turn_id"`
	SessionID        string          `json:"session_id"`
	ThreadID         string          `json:"thread_id"`
	Cwd              string          `json:"cwd"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Parse decodes the complete lines of in.Chunk. It returns the events, the
// bytes consumed and the updated sticky context.
func Parse(in ingest.Input, ctx Context) (event.Batch, Context) {
	lines, consumed := ingest.Lines(in.Chunk)
	batch := event.Batch{Consumed: consumed}

	for _, line := range lines {
		var rec record
		if err := json.Unmarshal(line.Raw, &rec); err != nil {
			continue
		}

		var ev *event.Event
		switch rec.Type {
		case "session_meta":
			var meta sessionMeta
			if json.Unmarshal(rec.Payload, &meta) == nil {
				if meta.ID != "" {
					ctx.SessionID = meta.ID
				}
				if meta.Cwd != "" {
					ctx.Project = meta.Cwd
				}
			}

		case "turn_context":
			var it item
			if json.Unmarshal(rec.Payload, &it) == nil && ctx.Project == "" {
				ctx.Project = it.Cwd
			}

		case "response_item":
			var it item
			if json.Unmarshal(rec.Payload, &it) == nil {
				ev = userPrompt(in, line, rec, it, ctx)
			}

		case "message":
			ev = userPrompt(in, line, rec, item{
				Type:      rec.Type,
				Role:      rec.Role,
				Content:   rec.Content,
				SessionID: rec.SessionID,
				ThreadID:  rec.ThreadID,
			}, ctx)

		case "event_msg":
			var it item
			if json.Unmarshal(rec.Payload, &it) == nil {
				ev = taskComplete(in, line, rec, it, ctx)
			}
		}

		if ev != nil {
			batch.Events = append(batch.Events, *ev)
		}
	}

	return batch, ctx
}

func userPrompt(in ingest.Input, line ingest.Line, rec record, it item, ctx Context) *event.Event {
	if it.Type != "message" || it.Role != "user" {
		return nil
	}

	text, ok := event.Clean(contentText(it.Content))
	if !ok || injected(text) {
		return nil
	}

	ev := newEvent(in, line, rec, it, ctx, event.TypeUserPrompt)
	ev.Payload["role"] = "user"
	ev.Payload["content"] = text
	return &ev
}

func taskComplete(in ingest.Input, line ingest.Line, rec record, it item, ctx Context) *event.Event {
	if it.Type != "task_complete" {
		return nil
	}

	text, ok := event.Clean(it.LastAgentMessage)
	if !ok {
		return nil
	}

	ev := newEvent(in, line, rec, it, ctx, event.TypeCheckpoint)
	ev.Payload["title"] = "task complete"
	ev.Payload["content"] = text
	ev.CorrelationID = it.TurnID
	return &ev
}

func newEvent(in ingest.Input, line ingest.Line, rec record, it item, ctx Context, eventType string) event.Event {
	ev := ingest.LineEvent(in, ingest.KindCodexSessions, event.PlatformCodex, line)
	ev.EventType = eventType
	ev.SessionID = ingest.First(ctx.SessionID, it.SessionID, it.ThreadID, rec.SessionID, rec.ThreadID, ctx.DefaultSessionID, UnknownSession)
	ev.Project = ingest.First(ctx.Project, it.Cwd, ctx.DefaultProject, "unknown")
	ev.Timestamp = event.ResolveTimestamp(in.Now, rec.Timestamp)
	return ev
}

// contentText accepts either a list of content blocks or a bare string.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			switch b.Type {
			case "input_text", "text", "output_text":
				if strings.TrimSpace(b.Text) != "" {
					parts = append(parts, b.Text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func injected(text string) bool {
	for _, p := range injectedPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
