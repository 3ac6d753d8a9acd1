// Package storetest holds the shared behaviour suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/store"
)

// Envelope builds a recordable envelope whose dedupe hash derives from key.
func Envelope(key, session, eventType, content, ts string) store.Envelope {
	return store.Envelope{
		Event: event.Event{
			Platform:    event.PlatformCodex,
			Project:     "/proj",
			SessionID:   session,
			EventType:   eventType,
			Timestamp:   ts,
			Payload:     map[string]any{"content": content},
			Tags:        []string{event.PlatformCodex},
			PrivacyTags: []string{},
			DedupeHash:  event.ContentHash("test", key),
		},
		ContentRedacted: content,
	}
}

// Behaves registers the conformance specs. newStore is called before each
// spec; the returned store is shut down afterwards when still open.
func Behaves(newStore func() store.Store) {
	var (
		ctx context.Context
		s   store.Store
	)

	hybrid := router.WeightsFor(router.KindHybrid)

	record := func(env store.Envelope) store.RecordResult {
		res, err := s.RecordEvent(ctx, env)
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	BeforeEach(func() {
		ctx = context.Background()
		s = newStore()
	})

	AfterEach(func() {
		_ = s.Shutdown(ctx, "test complete")
	})

	Describe("RecordEvent", func() {
		It("collapses duplicate hashes onto one observation", func() {
			env := Envelope("k1", "s1", event.TypeUserPrompt, "hello", "2026-01-01T00:00:00.000Z")
			first := record(env)
			second := record(env)

			Expect(first.Inserted).To(BeTrue())
			Expect(second.Inserted).To(BeFalse())
			Expect(second.ID).To(Equal(first.ID))

			st, err := s.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Observations).To(Equal(1))
		})

		It("requires a dedupe hash", func() {
			env := Envelope("k", "s", event.TypeCheckpoint, "x", "2026-01-01T00:00:00.000Z")
			env.Event.DedupeHash = ""
			_, err := s.RecordEvent(ctx, env)
			Expect(err).To(MatchError(store.ErrMissingDedupeHash))
		})
	})

	Describe("Search", func() {
		It("ranks lexical hits and breaks ties by insertion order", func() {
			a := record(Envelope("a", "s1", event.TypeCheckpoint, "sqlite cache", "2026-01-01T00:00:00.000Z"))
			b := record(Envelope("b", "s2", event.TypeCheckpoint, "sqlite cache", "2026-01-01T00:00:00.000Z"))
			record(Envelope("c", "s3", event.TypeCheckpoint, "unrelated", "2026-01-01T00:00:00.000Z"))

			res, err := s.Search(ctx, "sqlite cache", store.Filters{}, hybrid)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Candidates).To(HaveLen(2))
			Expect(res.Candidates[0].Observation.ID).To(Equal(a.ID))
			Expect(res.Candidates[1].Observation.ID).To(Equal(b.ID))
			Expect(res.Candidates[0].Signals.Lexical).To(Equal(1.0))
			Expect(res.Candidates[0].FinalScore).To(BeNumerically(">", 0))
		})

		It("applies filters", func() {
			record(Envelope("a", "s1", event.TypeCheckpoint, "cache", "2026-01-01T00:00:00.000Z"))
			want := record(Envelope("b", "s2", event.TypeUserPrompt, "cache", "2026-02-01T00:00:00.000Z"))

			res, err := s.Search(ctx, "cache", store.Filters{
				EventType: event.TypeUserPrompt,
				Since:     "2026-01-15T00:00:00.000Z",
			}, hybrid)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Candidates).To(HaveLen(1))
			Expect(res.Candidates[0].Observation.ID).To(Equal(want.ID))
		})

		It("excludes private observations and counts them", func() {
			env := Envelope("p", "s1", event.TypeCheckpoint, "cache", "2026-01-01T00:00:00.000Z")
			env.Event.PrivacyTags = []string{"private"}
			record(env)
			record(Envelope("q", "s1", event.TypeCheckpoint, "cache", "2026-01-01T00:00:00.000Z"))

			res, err := s.Search(ctx, "cache", store.Filters{}, hybrid)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Candidates).To(HaveLen(1))
			Expect(res.PrivacyExcluded).To(Equal(1))
		})

		It("caps results at the limit", func() {
			for i := range 5 {
				record(Envelope(fmt.Sprint(i), "s", event.TypeCheckpoint, "cache", "2026-01-01T00:00:00.000Z"))
			}
			res, err := s.Search(ctx, "cache", store.Filters{Limit: 2}, hybrid)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Candidates).To(HaveLen(2))
		})
	})

	Describe("Timeline", func() {
		It("returns chronological neighbours from the same session", func() {
			record(Envelope("1", "s1", event.TypeUserPrompt, "one", "2026-01-01T00:00:01.000Z"))
			mid := record(Envelope("2", "s1", event.TypeUserPrompt, "two", "2026-01-01T00:00:02.000Z"))
			record(Envelope("x", "s2", event.TypeUserPrompt, "other", "2026-01-01T00:00:02.500Z"))
			record(Envelope("3", "s1", event.TypeUserPrompt, "three", "2026-01-01T00:00:03.000Z"))
			record(Envelope("4", "s1", event.TypeUserPrompt, "four", "2026-01-01T00:00:04.000Z"))

			win, err := s.Timeline(ctx, mid.ID, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(win).To(HaveLen(3))
			Expect(win[0].ContentRedacted).To(Equal("one"))
			Expect(win[1].ID).To(Equal(mid.ID))
			Expect(win[2].ContentRedacted).To(Equal("three"))
		})

		It("reports unknown ids", func() {
			_, err := s.Timeline(ctx, "nope", 1, 1)
			Expect(err).To(MatchError(store.NotFoundError{ID: "nope"}))
		})
	})

	Describe("GetObservations", func() {
		It("hydrates in request order and skips unknown ids", func() {
			a := record(Envelope("a", "s", event.TypeCheckpoint, "alpha", "2026-01-01T00:00:00.000Z"))
			b := record(Envelope("b", "s", event.TypeCheckpoint, "beta", "2026-01-01T00:00:00.000Z"))

			obs, err := s.GetObservations(ctx, []string{b.ID, "missing", a.ID}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs).To(HaveLen(2))
			Expect(obs[0].ID).To(Equal(b.ID))
			Expect(obs[1].ID).To(Equal(a.ID))
			Expect(obs[0].TagsJSON).To(Equal(`["codex"]`))
			Expect(obs[0].Importance).To(Equal(store.Importance(event.TypeCheckpoint)))
		})

		It("truncates content in compact mode", func() {
			long := make([]rune, store.CompactLimit+20)
			for i := range long {
				long[i] = 'x'
			}
			a := record(Envelope("a", "s", event.TypeCheckpoint, string(long), "2026-01-01T00:00:00.000Z"))

			obs, err := s.GetObservations(ctx, []string{a.ID}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect([]rune(obs[0].ContentRedacted)).To(HaveLen(store.CompactLimit + 1))
		})
	})

	Describe("Stats", func() {
		It("counts observations, sessions and groupings", func() {
			record(Envelope("a", "s1", event.TypeCheckpoint, "x", "2026-01-01T00:00:00.000Z"))
			record(Envelope("b", "s2", event.TypeCheckpoint, "y", "2026-03-01T00:00:00.000Z"))

			st, err := s.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Observations).To(Equal(2))
			Expect(st.Sessions).To(Equal(2))
			Expect(st.ByPlatform).To(Equal(map[string]int{event.PlatformCodex: 2}))
			Expect(st.ByProject).To(Equal(map[string]int{"/proj": 2}))
			Expect(st.Newest).To(Equal("2026-03-01T00:00:00.000Z"))
		})
	})

	Describe("Shutdown", func() {
		It("rejects calls afterwards", func() {
			Expect(s.Shutdown(ctx, "test")).To(Succeed())

			_, err := s.RecordEvent(ctx, Envelope("a", "s", event.TypeCheckpoint, "x", "2026-01-01T00:00:00.000Z"))
			Expect(err).To(MatchError(store.ErrClosed))
			_, err = s.Search(ctx, "x", store.Filters{}, hybrid)
			Expect(err).To(MatchError(store.ErrClosed))
		})
	})
}
