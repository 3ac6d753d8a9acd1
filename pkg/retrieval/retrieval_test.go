package retrieval_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/rerank"
	"github.com/papercomputeco/ctxmem/pkg/retrieval"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/store"
	"github.com/papercomputeco/ctxmem/pkg/store/inmemory"
	"github.com/papercomputeco/ctxmem/pkg/store/storetest"
)

const ts = "2026-02-16T10:00:00.000Z"

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		now time.Time
		st  *inmemory.Store
	)

	clock := func() time.Time { return now }

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)
		st = inmemory.New(inmemory.WithClock(clock))
	})

	record := func(env store.Envelope) {
		_, err := st.RecordEvent(ctx, env)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
	}

	newService := func(c retrieval.Config) *retrieval.Service {
		c.Store = st
		c.Now = clock
		svc, err := retrieval.New(c)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return svc
	}

	It("requires a store", func() {
		_, err := retrieval.New(retrieval.Config{})
		Expect(err).To(MatchError("retrieval requires a store"))
	})

	It("returns an empty bundle when nothing matches", func() {
		resp, err := newService(retrieval.Config{}).Answer(ctx, retrieval.Request{Query: "anything"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.EvidenceCount).To(BeZero())
		Expect(resp.Evidence).To(BeEmpty())
		Expect(resp.Evidence).NotTo(BeNil())
		Expect(resp.Meta.TimeSpan).To(BeNil())
		Expect(resp.Reranked).To(BeFalse())
	})

	It("routes profile questions and returns redacted evidence", func() {
		env := storetest.Envelope("a", "s1", event.TypeCheckpoint, "the author of this module is Ada, token abc", ts)
		env.ContentRedacted = "the author of this module is Ada, token [REDACTED]"
		record(env)

		resp, err := newService(retrieval.Config{}).Answer(ctx, retrieval.Request{Query: "Who is the author of this module?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Route.Kind).To(Equal(router.KindProfile))
		Expect(resp.Route.Confidence).To(BeNumerically(">=", 0.3))
		Expect(resp.QuestionKind).To(Equal(router.KindProfile))
		Expect(resp.Evidence).To(HaveLen(1))
		Expect(resp.Evidence[0].Content).To(Equal("the author of this module is Ada, token [REDACTED]"))
		Expect(resp.Evidence[0].Rank).To(Equal(1))
	})

	It("honours an explicit kind", func() {
		resp, err := newService(retrieval.Config{}).Answer(ctx, retrieval.Request{Query: "what happened", Kind: "timeline"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Route.Kind).To(Equal(router.KindTimeline))
		Expect(resp.Route.Confidence).To(Equal(1.0))
	})

	It("truncates to top k", func() {
		for i := range 10 {
			record(storetest.Envelope(fmt.Sprint(i), "s1", event.TypeToolUse, fmt.Sprintf("migration step %d", i), ts))
		}

		svc := newService(retrieval.Config{TopK: 5})

		resp, err := svc.Answer(ctx, retrieval.Request{Query: "migration"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.EvidenceCount).To(Equal(5))

		resp, err = svc.Answer(ctx, retrieval.Request{Query: "migration", TopK: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.EvidenceCount).To(Equal(3))
	})

	It("reports privacy exclusions and respects include_private", func() {
		private := storetest.Envelope("p", "s1", event.TypeCheckpoint, "rotate the vault keys", ts)
		private.Event.PrivacyTags = []string{"private"}
		record(private)
		record(storetest.Envelope("q", "s1", event.TypeCheckpoint, "rotate the log files", ts))

		svc := newService(retrieval.Config{})
		resp, err := svc.Answer(ctx, retrieval.Request{Query: "rotate"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.EvidenceCount).To(Equal(1))
		Expect(resp.Meta.PrivacyExcluded).To(Equal(1))

		resp, err = svc.Answer(ctx, retrieval.Request{Query: "rotate", Filters: store.Filters{IncludePrivate: true}})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.EvidenceCount).To(Equal(2))
	})

	Describe("reranking", func() {
		BeforeEach(func() {
			record(storetest.Envelope("plain", "s1", event.TypeCheckpoint, "deploy pipeline notes", ts))

			titled := storetest.Envelope("titled", "s2", event.TypeCheckpoint, "deploy pipeline", ts)
			titled.Event.Payload["title"] = "deploy pipeline"
			record(titled)
		})

		It("keeps store order without a reranker", func() {
			resp, err := newService(retrieval.Config{}).Answer(ctx, retrieval.Request{Query: "deploy pipeline"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Reranked).To(BeFalse())
			Expect(resp.Evidence[0].Content).To(Equal("deploy pipeline notes"))
		})

		It("promotes title matches when enabled", func() {
			gate := rerank.FromFlag("on", rerank.WithClock(clock))
			resp, err := newService(retrieval.Config{Reranker: gate.Reranker}).Answer(ctx, retrieval.Request{Query: "deploy pipeline"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Reranked).To(BeTrue())
			Expect(resp.Evidence).To(HaveLen(2))
			Expect(resp.Evidence[0].Title).To(Equal("deploy pipeline"))
			Expect(resp.Meta.CrossSession).To(BeTrue())
		})
	})

	It("wraps store failures", func() {
		svc := newService(retrieval.Config{})
		Expect(st.Shutdown(ctx, "test")).To(Succeed())

		_, err := svc.Answer(ctx, retrieval.Request{Query: "x"})
		Expect(err).To(MatchError(store.ErrClosed))
		Expect(err.Error()).To(HavePrefix("searching:"))
	})

	Describe("Stats", func() {
		It("memoizes store statistics for the ttl", func() {
			svc := newService(retrieval.Config{StatsTTL: 500 * time.Millisecond})
			record(storetest.Envelope("a", "s1", event.TypeCheckpoint, "one", ts))

			first, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.CacheHit).To(BeFalse())
			Expect(first.Value.Observations).To(Equal(1))

			record(storetest.Envelope("b", "s2", event.TypeCheckpoint, "two", ts))

			second, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.CacheHit).To(BeTrue())
			Expect(second.AgeMS).To(BeNumerically("<=", 500))
			Expect(second.Value.Observations).To(Equal(1))

			Eventually(func(g Gomega) {
				third, err := svc.Stats(ctx)
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(third.CacheHit).To(BeFalse())
				g.Expect(third.Value.Observations).To(Equal(2))
				g.Expect(third.Value.Sessions).To(Equal(2))
			}).WithTimeout(3 * time.Second).WithPolling(20 * time.Millisecond).Should(Succeed())
		})

		It("refreshes after invalidation", func() {
			svc := newService(retrieval.Config{})
			_, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())

			record(storetest.Envelope("a", "s1", event.TypeCheckpoint, "one", ts))
			svc.InvalidateStats()

			res, err := svc.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.CacheHit).To(BeFalse())
			Expect(res.Value.Observations).To(Equal(1))
		})
	})
})
