package opencode_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest/opencode"
)

var _ = Describe("ParseRow", func() {
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	const key = "opencode-db:/home/me/.local/share/opencode/opencode.db"

	It("suppresses intermediate tool-call steps", func() {
		row := opencode.Row{ID: "m1", SessionID: "s1", Role: "assistant", Finish: "tool-calls"}
		Expect(opencode.ParseRow(key, row, now, opencode.Context{})).To(BeNil())
	})

	It("marks a textless stop as a completed checkpoint", func() {
		row := opencode.Row{ID: "m2", SessionID: "s1", Role: "assistant", Finish: "stop"}
		ev := opencode.ParseRow(key, row, now, opencode.Context{})
		Expect(ev).NotTo(BeNil())
		Expect(ev.EventType).To(Equal(event.TypeCheckpoint))
		Expect(ev.Content()).To(Equal("assistant response completed"))
	})

	It("maps user rows to prompts", func() {
		row := opencode.Row{ID: "m3", SessionID: "s1", Role: "user", Text: " refactor the parser ", Directory: "/src/app", TimeCreated: 1700000000123}
		ev := opencode.ParseRow(key, row, now, opencode.Context{})
		Expect(ev.EventType).To(Equal(event.TypeUserPrompt))
		Expect(ev.Content()).To(Equal("refactor the parser"))
		Expect(ev.SessionID).To(Equal("s1"))
		Expect(ev.Project).To(Equal("/src/app"))
		Expect(ev.Timestamp).To(Equal("2023-11-14T22:13:20.123Z"))
		Expect(ev.DedupeHash).To(MatchRegexp(`^[0-9a-f]{64}$`))
	})

	It("drops empty user rows and unknown roles", func() {
		Expect(opencode.ParseRow(key, opencode.Row{Role: "user"}, now, opencode.Context{})).To(BeNil())
		Expect(opencode.ParseRow(key, opencode.Row{Role: "system", Text: "x"}, now, opencode.Context{})).To(BeNil())
	})

	It("is deterministic for the same row", func() {
		row := opencode.Row{ID: "m4", SessionID: "s", Role: "user", Text: "x"}
		a := opencode.ParseRow(key, row, now, opencode.Context{})
		b := opencode.ParseRow(key, row, now, opencode.Context{})
		Expect(a.DedupeHash).To(Equal(b.DedupeHash))
	})

	It("knows which rows are settled", func() {
		Expect(opencode.Settled(opencode.Row{Role: "assistant"})).To(BeFalse())
		Expect(opencode.Settled(opencode.Row{Role: "assistant", Finish: "tool-calls"})).To(BeTrue())
		Expect(opencode.Settled(opencode.Row{Role: "user"})).To(BeTrue())
		Expect(opencode.Settled(opencode.Row{Role: "assistant", Closed: true})).To(BeTrue())
		Expect(opencode.Settled(opencode.Row{Role: "assistant", Superseded: true})).To(BeTrue())
	})

	It("gives up on a streaming row after the grace period", func() {
		created := now().Add(-opencode.StreamingGrace - time.Minute)
		stale := opencode.Row{Role: "assistant", TimeCreated: created.UnixMilli()}
		Expect(opencode.Abandoned(stale, now())).To(BeTrue())

		fresh := opencode.Row{Role: "assistant", TimeCreated: now().Add(-time.Minute).UnixMilli()}
		Expect(opencode.Abandoned(fresh, now())).To(BeFalse())
		Expect(opencode.Abandoned(opencode.Row{Role: "assistant"}, now())).To(BeFalse())
		Expect(opencode.Abandoned(opencode.Row{Role: "user", TimeCreated: created.UnixMilli()}, now())).To(BeFalse())
	})
})

var _ = Describe("ParseStorage", func() {
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	const key = "opencode-storage:/s/message/ses_1/msg_1.json"

	It("withholds a document that does not parse", func() {
		batch := opencode.ParseStorage(key, []byte(`{"id":"msg_1","role":"us`), now, opencode.Context{})
		Expect(batch.Consumed).To(Equal(0))
		Expect(batch.Events).To(BeEmpty())
	})

	It("consumes valid JSON with fields of an unexpected type", func() {
		chunk := []byte(`{"id":"msg_1","sessionID":"ses_1","role":"user","text":"ship it","path":"/not/an/object","time":{"created":"2026-02-16T11:00:00Z"}}`)
		batch := opencode.ParseStorage(key, chunk, now, opencode.Context{DefaultProject: "fallback"})
		Expect(batch.Consumed).To(Equal(len(chunk)))
		Expect(batch.Events).To(HaveLen(1))
		Expect(batch.Events[0].Timestamp).To(Equal("2026-02-16T11:00:00.000Z"))
		Expect(batch.Events[0].Project).To(Equal("fallback"))

		array := []byte(`["not","a","message"]`)
		batch = opencode.ParseStorage(key, array, now, opencode.Context{})
		Expect(batch.Consumed).To(Equal(len(array)))
		Expect(batch.Events).To(BeEmpty())
	})

	It("consumes a suppressed document", func() {
		chunk := []byte(`{"id":"msg_1","sessionID":"ses_1","role":"assistant","finish":"tool-calls"}`)
		batch := opencode.ParseStorage(key, chunk, now, opencode.Context{})
		Expect(batch.Consumed).To(Equal(len(chunk)))
		Expect(batch.Events).To(BeEmpty())
	})

	It("resolves the directory through the session lookup", func() {
		chunk := []byte(`{"id":"msg_1","sessionID":"ses_1","role":"user","parts":[{"type":"text","text":"hello"}],"path":{"cwd":"/from/payload"},"time":{"created":1700000000000}}`)
		ctx := opencode.Context{SessionDirectory: func(id string) (string, bool) {
			if id == "ses_1" {
				return "/from/lookup", true
			}
			return "", false
		}}

		batch := opencode.ParseStorage(key, chunk, now, ctx)
		Expect(batch.Events).To(HaveLen(1))
		Expect(batch.Events[0].Project).To(Equal("/from/lookup"))
		Expect(batch.Events[0].Content()).To(Equal("hello"))
		Expect(batch.Events[0].Timestamp).To(Equal("2023-11-14T22:13:20.000Z"))
	})

	It("falls back to the payload path and part lookup", func() {
		chunk := []byte(`{"id":"msg_2","session_id":"ses_2","role":"assistant","finish":"stop","path":{"cwd":"/from/payload"}}`)
		ctx := opencode.Context{Parts: func(id string) string { return "the answer" }}

		batch := opencode.ParseStorage(key, chunk, now, ctx)
		Expect(batch.Events[0].Project).To(Equal("/from/payload"))
		Expect(batch.Events[0].SessionID).To(Equal("ses_2"))
		Expect(batch.Events[0].Content()).To(Equal("the answer"))
	})
})
