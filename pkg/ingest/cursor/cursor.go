// Package cursor decodes Cursor hook payloads, spooled one JSON object per
// line, into canonical events.
package cursor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

// Context supplies caller fallbacks.
type Context struct {
	DefaultProject string
}

// hookRule maps one hook name to the event it produces. content returns the
// title and body; an empty body drops the record.
type hookRule struct {
	name      string
	eventType string
	content   func(rec map[string]any) (title, body string)
}

var hookRules = []hookRule{
	{
		name:      "beforeSubmitPrompt",
		eventType: event.TypeUserPrompt,
		content: func(rec map[string]any) (string, string) {
			return "", ingest.String(rec, "prompt", "text")
		},
	},
	{
		name:      "afterMCPExecution",
		eventType: event.TypeToolUse,
		content: func(rec map[string]any) (string, string) {
			tool := ingest.First(ingest.String(rec, "tool_name"), "mcp")
			return tool, joinNonEmpty(
				"tool: "+tool,
				labelled("input", ingest.Stringify(rec["tool_input"])),
				labelled("result", ingest.Stringify(rec["result_json"])),
			)
		},
	},
	{
		name:      "afterShellExecution",
		eventType: event.TypeToolUse,
		content: func(rec map[string]any) (string, string) {
			cmd := ingest.String(rec, "command")
			if cmd == "" {
				return "", ""
			}
			return "shell", joinNonEmpty("$ "+cmd, ingest.String(rec, "output"))
		},
	},
	{
		name:      "afterFileEdit",
		eventType: event.TypeToolUse,
		content: func(rec map[string]any) (string, string) {
			path := ingest.String(rec, "file_path")
			if path == "" {
				return "", ""
			}
			edits, _ := rec["edits"].([]any)
			return "edit " + filepath.Base(path), fmt.Sprintf("edited %s (%d edits)", path, len(edits))
		},
	},
	{
		name:      "stop",
		eventType: event.TypeSessionEnd,
		content: func(rec map[string]any) (string, string) {
			return "session end", "session ended: " + ingest.First(ingest.String(rec, "status"), "completed")
		},
	},
}

func ruleFor(name string) (hookRule, bool) {
	for _, r := range hookRules {
		if r.name == name {
			return r, true
		}
	}
	return hookRule{}, false
}

// Parse decodes the complete lines of in.Chunk.
func Parse(in ingest.Input, ctx Context) event.Batch {
	lines, consumed := ingest.Lines(in.Chunk)
	batch := event.Batch{Consumed: consumed}

	for _, line := range lines {
		rec, ok := ingest.DecodeObject(line.Raw)
		if !ok {
			continue
		}

		rule, ok := ruleFor(ingest.String(rec, "hook_event_name"))
		if !ok {
			continue
		}

		title, body := rule.content(rec)
		body, ok = event.Clean(body)
		if !ok {
			continue
		}

		ev := ingest.LineEvent(in, ingest.KindCursorHooks, event.PlatformCursor, line)
		ev.EventType = rule.eventType
		ev.Timestamp = event.ResolveTimestamp(in.Now, rec["timestamp"], rec["created_at"], rec["timestamp_ms"])
		ev.Project = project(rec, ctx)
		ev.SessionID = ingest.First(
			ingest.String(rec, "conversation_id", "generation_id", "session_id", "thread_id"),
			fmt.Sprintf("cursor:%s:%s", ev.Project, ev.Timestamp[:10]),
		)
		ev.CorrelationID = ingest.String(rec, "generation_id")
		ev.Payload["hook_event_name"] = rule.name
		ev.Payload["content"] = body
		if title != "" {
			ev.Payload["title"] = title
		}

		batch.Events = append(batch.Events, ev)
	}

	return batch
}

func project(rec map[string]any, ctx Context) string {
	root := ingest.String(rec, "workspace_root")
	if root == "" {
		if roots := ingest.Strings(rec, "workspace_roots"); len(roots) > 0 {
			root = roots[0]
		}
	}

	if root != "" {
		if base := filepath.Base(strings.TrimRight(root, "/\\")); base != "." && base != "/" {
			return base
		}
	}
	return ingest.First(ctx.DefaultProject, "unknown")
}

func labelled(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return label + ": " + ingest.Truncate(value, 2000)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
