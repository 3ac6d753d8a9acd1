// Package antigravity decodes Antigravity artifacts: markdown checkpoint and
// Codex response files written into a project, and the agent's plaintext log.
package antigravity

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

// FileContext supplies what the file adapter cannot learn from the bytes.
type FileContext struct {
	// Project overrides the project inferred from the path.
	Project string

	// ModTime is the file modification time, used as the event timestamp.
	ModTime time.Time
}

// pathRule selects the event type for files under a directory marker. The
// directory containing the marker names the project.
type pathRule struct {
	marker    string
	eventType string
}

var pathRules = []pathRule{
	{marker: "/docs/checkpoints/", eventType: event.TypeCheckpoint},
	{marker: "/logs/codex-responses/", eventType: event.TypeToolUse},
}

// toolRule infers a tool name from a response file's name prefix.
type toolRule struct {
	prefix string
	tool   string
}

var toolRules = []toolRule{
	{prefix: "plan", tool: "codex_plan"},
	{prefix: "review", tool: "codex_review"},
	{prefix: "exec", tool: "codex_exec"},
}

const defaultTool = "codex_response"

// ParseFile decodes one whole markdown file. Files outside the known
// directories and files with no content produce no event. The file is always
// fully consumed.
func ParseFile(sourceKey, path string, content []byte, now event.Clock, ctx FileContext) event.Batch {
	batch := event.Batch{Consumed: len(content)}

	slashed := filepath.ToSlash(path)
	rule, ok := ruleFor(slashed)
	if !ok {
		return batch
	}

	body, ok := event.Clean(string(content))
	if !ok {
		return batch
	}

	stem := strings.TrimSuffix(filepath.Base(slashed), filepath.Ext(slashed))
	project := ingest.First(ctx.Project, projectFromPath(slashed, rule.marker), "unknown")

	var modTime any
	if !ctx.ModTime.IsZero() {
		modTime = event.Format(ctx.ModTime)
	}

	ev := event.Event{
		Platform:  event.PlatformAntigravity,
		Project:   project,
		SessionID: "antigravity:" + project + ":" + stem,
		EventType: rule.eventType,
		Timestamp: event.ResolveTimestamp(now, modTime),
		Payload: map[string]any{
			"source_type": string(ingest.KindAntigravityFiles),
			"source_key":  sourceKey,
			"path":        path,
			"title":       title(body, stem),
			"content":     body,
		},
		Tags:        []string{event.PlatformAntigravity},
		PrivacyTags: []string{},
		DedupeHash:  event.ContentHash(sourceKey, event.Digest(content)),
	}

	if rule.eventType == event.TypeToolUse {
		ev.Payload["tool_name"] = toolFor(stem)
	}

	batch.Events = append(batch.Events, ev)
	return batch
}

func ruleFor(path string) (pathRule, bool) {
	for _, r := range pathRules {
		if strings.Contains(path, r.marker) {
			return r, true
		}
	}
	return pathRule{}, false
}

func toolFor(stem string) string {
	lower := strings.ToLower(stem)
	for _, r := range toolRules {
		if strings.HasPrefix(lower, r.prefix) {
			return r.tool
		}
	}
	return defaultTool
}

func projectFromPath(path, marker string) string {
	idx := strings.Index(path, marker)
	if idx <= 0 {
		return ""
	}
	return filepath.Base(path[:idx])
}

// title is the first markdown heading, or the file stem.
func title(body, stem string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	return stem
}
