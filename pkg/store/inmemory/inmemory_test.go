package inmemory_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/store"
	"github.com/papercomputeco/ctxmem/pkg/store/inmemory"
	"github.com/papercomputeco/ctxmem/pkg/store/storetest"
	testutils "github.com/papercomputeco/ctxmem/pkg/utils/test"
)

var _ = Describe("Store", func() {
	storetest.Behaves(func() store.Store { return inmemory.New() })
})

var _ = Describe("Store with a vector index", func() {
	var (
		ctx     context.Context
		vectors *testutils.MockVectorDriver
		index   *store.VectorIndex
		s       *inmemory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		vectors = testutils.NewMockVectorDriver()
		index = &store.VectorIndex{
			Embedder: testutils.NewMockEmbedder("database", "storage"),
			Driver:   vectors,
		}
		s = inmemory.New(inmemory.WithVectorIndex(index))
	})

	It("surfaces semantic matches without lexical overlap", func() {
		res, err := s.RecordEvent(ctx, storetest.Envelope("a", "s", event.TypeCheckpoint, "picked a database", "2026-01-01T00:00:00.000Z"))
		Expect(err).NotTo(HaveOccurred())

		obs, err := s.GetObservations(ctx, []string{res.ID}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(index.Index(ctx, obs[0])).To(Succeed())

		found, err := s.Search(ctx, "storage database", store.Filters{}, router.WeightsFor(router.KindVector))
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Candidates).To(HaveLen(1))
		Expect(found.Candidates[0].Signals.Vector).To(BeNumerically(">", 0))
	})

	It("falls back to lexical search when the index fails", func() {
		vectors.FailQuery = errors.New("index offline")
		_, err := s.RecordEvent(ctx, storetest.Envelope("a", "s", event.TypeCheckpoint, "storage", "2026-01-01T00:00:00.000Z"))
		Expect(err).NotTo(HaveOccurred())

		found, err := s.Search(ctx, "storage", store.Filters{}, router.WeightsFor(router.KindHybrid))
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Candidates).To(HaveLen(1))
		Expect(found.Candidates[0].Signals.Vector).To(BeZero())
	})
})
