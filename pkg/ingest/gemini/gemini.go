// Package gemini decodes the Gemini CLI event spool. Records are already
// close to canonical shape; the adapter validates and fills defaults.
package gemini

import (
	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

// UnknownSession is used when a record carries no session id.
const UnknownSession = "gemini:unknown"

// Context supplies caller fallbacks.
type Context struct {
	DefaultProject string
}

// Parse decodes the complete lines of in.Chunk. Records without an
// event_type are dropped.
func Parse(in ingest.Input, ctx Context) event.Batch {
	lines, consumed := ingest.Lines(in.Chunk)
	batch := event.Batch{Consumed: consumed}

	for _, line := range lines {
		rec, ok := ingest.DecodeObject(line.Raw)
		if !ok {
			continue
		}

		eventType := ingest.String(rec, "event_type")
		if eventType == "" {
			continue
		}

		ev := ingest.LineEvent(in, ingest.KindGeminiEvents, event.PlatformGemini, line)
		ev.EventType = eventType
		ev.SessionID = ingest.First(ingest.String(rec, "session_id"), UnknownSession)
		ev.Project = ingest.First(ingest.String(rec, "project"), ctx.DefaultProject, "unknown")
		ev.Timestamp = event.ResolveTimestamp(in.Now, rec["timestamp"])
		ev.CorrelationID = ingest.String(rec, "correlation_id")

		provenance := ev.Payload
		if payload := ingest.Object(rec, "payload"); payload != nil {
			ev.Payload = payload
			if ingest.String(payload, "source_type") == "" {
				ev.Payload["source_type"] = provenance["source_type"]
			}
		}
		ev.Payload["source_key"] = provenance["source_key"]
		ev.Payload["line_offset"] = provenance["line_offset"]

		if tags := ingest.Strings(rec, "tags"); len(tags) > 0 {
			ev.Tags = tags
		}
		ev.PrivacyTags = ingest.Strings(rec, "privacy_tags")

		batch.Events = append(batch.Events, ev)
	}

	return batch
}
