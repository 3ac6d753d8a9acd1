package antigravity

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

// LogContext supplies the identity of the log being tailed.
type LogContext struct {
	Project     string
	SessionSeed string
}

var (
	plannerPattern = regexp.MustCompile(`Requesting planner with (\d+) chat messages`)

	linePrefix = regexp.MustCompile(`^\[?(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)`)
)

// ParseLog decodes the complete lines of in.Chunk. Only planner requests
// become events; every other line is metadata.
func ParseLog(in ingest.Input, ctx LogContext) event.Batch {
	lines, consumed := ingest.Lines(in.Chunk)
	batch := event.Batch{Consumed: consumed}

	project := ingest.First(ctx.Project, "unknown")
	session := fmt.Sprintf("antigravity:%s:%s", project, ingest.First(ctx.SessionSeed, "default"))

	for _, line := range lines {
		text := string(line.Raw)
		m := plannerPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		count, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		var stamp any
		if p := linePrefix.FindStringSubmatch(text); p != nil {
			stamp = p[1]
		}

		ev := ingest.LineEvent(in, ingest.KindAntigravityLogs, event.PlatformAntigravity, line)
		ev.EventType = event.TypeCheckpoint
		ev.Project = project
		ev.SessionID = session
		ev.Timestamp = event.ResolveTimestamp(in.Now, stamp)
		ev.Payload["title"] = "planner request"
		ev.Payload["content"] = fmt.Sprintf("planner requested with %d chat messages", count)
		ev.Payload["message_count"] = count
		ev.Payload["raw"] = ingest.Truncate(text, 500)

		batch.Events = append(batch.Events, ev)
	}

	return batch
}
