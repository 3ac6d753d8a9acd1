package cursor_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
	"github.com/papercomputeco/ctxmem/pkg/ingest/cursor"
)

var _ = Describe("Parse", func() {
	now := func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	parse := func(lines ...string) event.Batch {
		return cursor.Parse(ingest.Input{
			SourceKey: "cursor-hooks:/tmp/hooks.jsonl",
			Chunk:     []byte(strings.Join(lines, "\n") + "\n"),
			Now:       now,
		}, cursor.Context{})
	}

	It("derives a dated session when no id is present", func() {
		batch := parse(`{"hook_event_name":"beforeSubmitPrompt","prompt":"fix the tests","workspace_root":"/a/b/Context-Harness","timestamp":"2026-02-16T11:00:00.000Z"}`)
		Expect(batch.Events).To(HaveLen(1))

		ev := batch.Events[0]
		Expect(ev.SessionID).To(Equal("cursor:Context-Harness:2026-02-16"))
		Expect(ev.Project).To(Equal("Context-Harness"))
		Expect(ev.EventType).To(Equal(event.TypeUserPrompt))
		Expect(ev.Content()).To(Equal("fix the tests"))
	})

	It("prefers the conversation id", func() {
		batch := parse(`{"hook_event_name":"beforeSubmitPrompt","prompt":"hi","conversation_id":"conv-1","generation_id":"gen-1","workspace_roots":["/w/app"]}`)
		Expect(batch.Events[0].SessionID).To(Equal("conv-1"))
		Expect(batch.Events[0].Project).To(Equal("app"))
		Expect(batch.Events[0].CorrelationID).To(Equal("gen-1"))
	})

	It("maps each known hook to its event type", func() {
		batch := parse(
			`{"hook_event_name":"afterMCPExecution","tool_name":"search","tool_input":{"q":"x"},"conversation_id":"c"}`,
			`{"hook_event_name":"afterShellExecution","command":"go test ./...","output":"ok","conversation_id":"c"}`,
			`{"hook_event_name":"afterFileEdit","file_path":"/w/main.go","edits":[{},{}],"conversation_id":"c"}`,
			`{"hook_event_name":"stop","status":"completed","conversation_id":"c"}`,
		)
		types := make([]string, 0, len(batch.Events))
		for _, ev := range batch.Events {
			types = append(types, ev.EventType)
		}
		Expect(types).To(Equal([]string{event.TypeToolUse, event.TypeToolUse, event.TypeToolUse, event.TypeSessionEnd}))
		Expect(batch.Events[0].Content()).To(ContainSubstring(`input: {"q":"x"}`))
		Expect(batch.Events[2].Content()).To(Equal("edited /w/main.go (2 edits)"))
	})

	It("drops unknown hooks and empty prompts", func() {
		batch := parse(
			`{"hook_event_name":"beforeReadFile","file_path":"/x"}`,
			`{"hook_event_name":"beforeSubmitPrompt","prompt":"   "}`,
		)
		Expect(batch.Events).To(BeEmpty())
		Expect(batch.Consumed).To(BeNumerically(">", 0))
	})

	It("falls back to the clock and the unknown project", func() {
		batch := parse(`{"hook_event_name":"beforeSubmitPrompt","prompt":"hi"}`)
		Expect(batch.Events[0].SessionID).To(Equal("cursor:unknown:2026-03-01"))
	})
})
