package tail

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
	"github.com/papercomputeco/ctxmem/pkg/ingest/antigravity"
	"github.com/papercomputeco/ctxmem/pkg/ingest/codex"
	"github.com/papercomputeco/ctxmem/pkg/ingest/cursor"
	"github.com/papercomputeco/ctxmem/pkg/ingest/gemini"
	"github.com/papercomputeco/ctxmem/pkg/ingest/opencode"
)

// rowBatch bounds one opencode database read.
const rowBatch = 500

// parseStream dispatches a chunk of a line-oriented source to its adapter.
// Codex identity learned from the chunk is written back into cur.
func (t *Tailer) parseStream(f File, in ingest.Input, cur *Cursor) event.Batch {
	switch f.Kind {
	case ingest.KindCodexSessions:
		ctx := codex.Context{DefaultSessionID: f.SessionSeed, DefaultProject: f.Project}
		if cur.Codex != nil {
			ctx.SessionID = cur.Codex.SessionID
			ctx.Project = cur.Codex.Project
		}
		batch, learned := codex.Parse(in, ctx)
		if learned.SessionID != "" || learned.Project != "" {
			cur.Codex = &codex.Context{SessionID: learned.SessionID, Project: learned.Project}
		}
		return batch

	case ingest.KindCursorHooks:
		return cursor.Parse(in, cursor.Context{DefaultProject: f.Project})

	case ingest.KindGeminiEvents:
		return gemini.Parse(in, gemini.Context{DefaultProject: f.Project})

	case ingest.KindAntigravityLogs:
		return antigravity.ParseLog(in, antigravity.LogContext{Project: f.Project, SessionSeed: f.SessionSeed})

	default:
		t.logger.Warn("no stream adapter for kind", "kind", f.Kind)
		return event.Batch{}
	}
}

func parseAntigravityFile(f File, content []byte, modTime time.Time, now event.Clock) event.Batch {
	return antigravity.ParseFile(f.Key, f.Path, content, now, antigravity.FileContext{
		Project: f.Project,
		ModTime: modTime,
	})
}

// parseOpenCodeStorage decodes one message document of opencode's file
// storage, laid out as <root>/message/<session>/<message>.json with parts
// under <root>/part/<message>/ and sessions under <root>/session/.
func parseOpenCodeStorage(f File, content []byte, now event.Clock) event.Batch {
	root := storageRoot(f.Path)
	return opencode.ParseStorage(f.Key, content, now, opencode.Context{
		DefaultProject: f.Project,
		SessionDirectory: func(sessionID string) (string, bool) {
			return sessionDirectory(root, sessionID)
		},
		Parts: func(messageID string) string {
			return partsText(root, messageID)
		},
	})
}

func storageRoot(path string) string {
	slashed := filepath.ToSlash(path)
	idx := strings.LastIndex(slashed, "/message/")
	if idx < 0 {
		return ""
	}
	return filepath.FromSlash(slashed[:idx])
}

func sessionDirectory(root, sessionID string) (string, bool) {
	if root == "" || sessionID == "" {
		return "", false
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(root, "session", "**", sessionID+".json"))
	if err != nil || len(matches) == 0 {
		return "", false
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", false
	}

	var info struct {
		Directory string `json:"directory"`
	}
	if json.Unmarshal(data, &info) != nil || info.Directory == "" {
		return "", false
	}
	return info.Directory, true
}

func partsText(root, messageID string) string {
	if root == "" {
		return ""
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(root, "part", messageID, "*.json"))
	if err != nil {
		return ""
	}
	slices.Sort(matches)

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}

		var part struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if json.Unmarshal(data, &part) == nil && part.Type == "text" && strings.TrimSpace(part.Text) != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
