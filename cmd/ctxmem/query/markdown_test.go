package querycmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	querycmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/query"
	"github.com/papercomputeco/ctxmem/pkg/answer"
	"github.com/papercomputeco/ctxmem/pkg/retrieval"
	"github.com/papercomputeco/ctxmem/pkg/router"
)

var _ = Describe("Markdown", func() {
	It("renders ranked evidence and provenance", func() {
		resp := &retrieval.Response{
			Compiled: answer.Compiled{
				QuestionKind:  router.KindTimeline,
				EvidenceCount: 1,
				Evidence: []answer.Evidence{{
					Platform:  "codex",
					Project:   "billing",
					SessionID: "sess-1",
					EventType: "checkpoint",
					Title:     "task complete",
					Content:   "line one\nline two",
					CreatedAt: "2026-03-01T10:05:00.000Z",
					Rank:      1,
				}},
				Meta: answer.Meta{
					Platforms:       []string{"codex"},
					Projects:        []string{"billing"},
					TimeSpan:        &answer.TimeSpan{Oldest: "2026-03-01T10:05:00.000Z", Newest: "2026-03-01T10:05:00.000Z"},
					PrivacyExcluded: 2,
				},
			},
			Route:    router.Decision{Kind: router.KindTimeline, Confidence: 0.6, Reason: "matched 2 timeline cue(s)"},
			Reranked: true,
		}

		md := querycmder.Markdown("what happened yesterday", resp)
		Expect(md).To(ContainSubstring("# what happened yesterday"))
		Expect(md).To(ContainSubstring("timeline question (confidence 0.60"))
		Expect(md).To(ContainSubstring("reranked"))
		Expect(md).To(ContainSubstring("## 1. task complete"))
		Expect(md).To(ContainSubstring("> line one\n> line two"))
		Expect(md).To(ContainSubstring("2 private observation(s) excluded"))
	})

	It("says so when nothing matched", func() {
		resp := &retrieval.Response{Compiled: answer.Compiled{QuestionKind: router.KindHybrid, Evidence: []answer.Evidence{}}}
		Expect(querycmder.Markdown("anything", resp)).To(ContainSubstring("No matching observations."))
	})
})
