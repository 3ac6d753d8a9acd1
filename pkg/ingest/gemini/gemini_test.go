package gemini_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
	"github.com/papercomputeco/ctxmem/pkg/ingest/gemini"
)

var _ = Describe("Parse", func() {
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	parse := func(ctx gemini.Context, lines ...string) event.Batch {
		return gemini.Parse(ingest.Input{
			SourceKey: "gemini-events:/spool.jsonl",
			Chunk:     []byte(strings.Join(lines, "\n") + "\n"),
			Now:       now,
		}, ctx)
	}

	It("keeps pre-shaped fields and defaults source_type", func() {
		batch := parse(gemini.Context{}, `{"event_type":"tool_use","session_id":"g-1","project":"svc","timestamp":"2026-01-05T00:00:00Z","payload":{"content":"ran ls"},"tags":["shell"],"privacy_tags":["private"],"correlation_id":"c-1"}`)
		Expect(batch.Events).To(HaveLen(1))

		ev := batch.Events[0]
		Expect(ev.EventType).To(Equal("tool_use"))
		Expect(ev.SessionID).To(Equal("g-1"))
		Expect(ev.Project).To(Equal("svc"))
		Expect(ev.Timestamp).To(Equal("2026-01-05T00:00:00.000Z"))
		Expect(ev.Payload).To(HaveKeyWithValue("content", "ran ls"))
		Expect(ev.Payload).To(HaveKeyWithValue("source_type", "gemini-events"))
		Expect(ev.Tags).To(Equal([]string{"shell"}))
		Expect(ev.PrivacyTags).To(Equal([]string{"private"}))
		Expect(ev.CorrelationID).To(Equal("c-1"))
	})

	It("preserves an explicit source_type", func() {
		batch := parse(gemini.Context{}, `{"event_type":"checkpoint","payload":{"source_type":"gemini-hook"}}`)
		Expect(batch.Events[0].Payload).To(HaveKeyWithValue("source_type", "gemini-hook"))
	})

	It("uses the unknown session and caller project", func() {
		batch := parse(gemini.Context{DefaultProject: "fallback"}, `{"event_type":"user_prompt","payload":{"content":"hi"}}`)
		Expect(batch.Events[0].SessionID).To(Equal(gemini.UnknownSession))
		Expect(batch.Events[0].Project).To(Equal("fallback"))
		Expect(batch.Events[0].Timestamp).To(Equal("2026-01-01T00:00:00.000Z"))
	})

	It("drops records without an event type", func() {
		batch := parse(gemini.Context{}, `{"event_type":"","payload":{}}`, `{"session_id":"x"}`, `garbage`)
		Expect(batch.Events).To(BeEmpty())
	})
})
