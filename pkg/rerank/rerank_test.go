package rerank_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/rerank"
)

var _ = Describe("Reranker", func() {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	r := rerank.New(rerank.WithClock(func() time.Time { return now }))

	It("keeps source order for identical candidates", func() {
		items := []rerank.Item{
			{ID: "b", Score: 0.5, Title: "t", Content: "c", CreatedAt: "2026-04-30T00:00:00.000Z", SourceIndex: 0},
			{ID: "a", Score: 0.5, Title: "t", Content: "c", CreatedAt: "2026-04-30T00:00:00.000Z", SourceIndex: 1},
		}
		out := r.Rerank("query", items)
		Expect(out[0].ID).To(Equal("b"))
		Expect(out[1].ID).To(Equal("a"))
	})

	It("rewards an exact title match", func() {
		items := []rerank.Item{
			{ID: "plain", Score: 0.6, Title: "notes", SourceIndex: 0},
			{ID: "titled", Score: 0.5, Title: "TTL cache design", SourceIndex: 1},
		}
		out := r.Rerank("ttl cache", items)
		Expect(out[0].ID).To(Equal("titled"))
		Expect(out[0].RerankScore).To(BeNumerically("~", 0.5*0.7+0.2+0.08, 1e-9))
		Expect(out[1].RerankScore).To(BeNumerically("~", 0.6*0.7, 1e-9))
	})

	It("computes partial token overlap", func() {
		out := r.Rerank("sqlite vector index", []rerank.Item{{ID: "x", Content: "the sqlite index"}})
		Expect(out[0].RerankScore).To(BeNumerically("~", 0.08*2.0/3.0, 1e-9))
	})

	It("adds recency and ignores unparsable dates", func() {
		out := r.Rerank("", []rerank.Item{
			{ID: "bad", CreatedAt: "yesterday", SourceIndex: 0},
			{ID: "fresh", CreatedAt: "2026-05-01T00:00:00.000Z", SourceIndex: 1},
		})
		Expect(out[0].ID).To(Equal("fresh"))
		Expect(out[0].RerankScore).To(BeNumerically("~", 0.02, 1e-9))
		Expect(out[1].RerankScore).To(BeZero())
	})

	It("lets a future timestamp outrank the present", func() {
		out := r.Rerank("", []rerank.Item{
			{ID: "now", CreatedAt: "2026-05-01T00:00:00.000Z", SourceIndex: 0},
			{ID: "ahead", CreatedAt: "2026-05-15T00:00:00.000Z", SourceIndex: 1},
		})
		Expect(out[0].ID).To(Equal("ahead"))
		Expect(out[0].RerankScore).To(BeNumerically("~", 0.02*2.7183, 1e-4))
	})

	It("does not modify its input", func() {
		items := []rerank.Item{{ID: "a", SourceIndex: 1}, {ID: "b", Score: 1, SourceIndex: 0}}
		_ = r.Rerank("q", items)
		Expect(items[0].ID).To(Equal("a"))
	})
})

var _ = Describe("FromFlag", func() {
	DescribeTable("parses loose booleans",
		func(v string, enabled bool) {
			g := rerank.FromFlag(v)
			Expect(g.Enabled).To(Equal(enabled))
			if enabled {
				Expect(g.Reranker).NotTo(BeNil())
			} else {
				Expect(g.Reranker).To(BeNil())
			}
		},
		Entry("one", "1", true),
		Entry("true", "TRUE", true),
		Entry("yes", " yes ", true),
		Entry("on", "on", true),
		Entry("zero", "0", false),
		Entry("empty", "", false),
		Entry("junk", "enabled", false),
	)
})
