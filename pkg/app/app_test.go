package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/app"
	"github.com/papercomputeco/ctxmem/pkg/config"
	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/retrieval"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/tail"
)

var _ = Describe("App", func() {
	var (
		ctx      context.Context
		stateDir string
		cfg      *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		stateDir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
	})

	It("opens the sqlite store in the state directory by default", func() {
		a, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(a.Close(ctx)).To(Succeed()) })

		Expect(a.SQLitePath()).To(Equal(filepath.Join(stateDir, "ctxmem.db")))
		Expect(a.SQLitePath()).To(BeARegularFile())
		Expect(a.Vectors).To(BeNil())
	})

	It("rejects an unknown storage driver", func() {
		cfg.Storage.Driver = "postgres"
		_, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring(`unsupported storage driver: "postgres"`)))
	})

	It("rejects an unknown event stream provider", func() {
		cfg.Storage.Driver = "memory"
		cfg.EventStream.Provider = "pulsar"
		_, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("creating event publisher")))
	})

	It("requires an embedder when vector search is enabled", func() {
		cfg.VectorStore.Provider = "sqlite-vec"
		cfg.Embedding.Provider = ""
		_, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("vector store requires an embedding provider")))
	})

	It("tails configured sources and answers from them", func() {
		spool := filepath.Join(stateDir, "spool", "cursor.jsonl")
		Expect(os.MkdirAll(filepath.Dir(spool), 0o755)).To(Succeed())
		Expect(os.WriteFile(spool, []byte(
			`{"hook_event_name":"beforeSubmitPrompt","prompt":"why does the cache expire early","conversation_id":"c-1","workspace_root":"/w/app"}`+"\n"+
				`{"hook_event_name":"stop","status":"completed","conversation_id":"c-1","workspace_root":"/w/app"}`+"\n",
		), 0o600)).To(Succeed())

		cfg.Storage.Driver = "memory"
		cfg.Retrieval.Rerank = "on"
		cfg.Ingest.Sources = []config.SourceConfig{
			{Kind: "cursor-hooks", Pattern: filepath.Join(stateDir, "spool", "*.jsonl")},
		}

		a, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(a.Close(ctx)).To(Succeed()) })

		t, err := a.Tailer()
		Expect(err).NotTo(HaveOccurred())

		res, err := t.Poll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Inserted).To(Equal(2))
		Expect(filepath.Join(stateDir, tail.CursorFile)).To(BeARegularFile())

		resp, err := a.Retrieval.Answer(ctx, retrieval.Request{Query: "cache expire"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Reranked).To(BeFalse())
		Expect(resp.Evidence).To(HaveLen(1))
		Expect(resp.Evidence[0].Project).To(Equal("app"))
		Expect(resp.Route.Kind).To(Equal(router.KindHybrid))

		stats, err := a.Retrieval.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Value.Observations).To(Equal(2))

		Eventually(func() int64 { return a.Pool.Stats().Processed }).Should(Equal(int64(2)))
	})

	It("rejects unknown source kinds", func() {
		cfg.Storage.Driver = "memory"
		cfg.Ingest.Sources = []config.SourceConfig{{Kind: "emacs", Pattern: "*"}}

		a, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(a.Close(ctx)).To(Succeed()) })

		_, err = a.Tailer()
		Expect(err).To(MatchError(ContainSubstring(`unknown kind "emacs"`)))
	})

	It("is safe to close twice", func() {
		cfg.Storage.Driver = "memory"
		a, err := app.Open(cfg, stateDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Close(ctx)).To(Succeed())
		Expect(a.Close(ctx)).To(Succeed())
	})
})

var _ = Describe("NewLogger", func() {
	It("writes JSON at the configured level", func() {
		var buf bytes.Buffer
		l := app.NewLogger(config.LogConfig{Level: "warn", Format: "json"}, false, &buf)

		l.Info("hidden")
		l.Warn("shown")
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring(`"msg":"shown"`))
	})

	It("lets debug override the level", func() {
		var buf bytes.Buffer
		l := app.NewLogger(config.LogConfig{Level: "error"}, true, &buf)

		l.Debug("visible")
		Expect(buf.String()).To(ContainSubstring("visible"))
	})
})

var _ = Describe("Bootstrap", func() {
	It("opens an app from the config directory", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[storage]\ndriver = \"memory\"\n\n[retrieval]\ntop_k = 2\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		var logs bytes.Buffer
		a, err := app.Bootstrap(v, dir, false, &logs)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(a.Close(context.Background())).To(Succeed()) })

		Expect(a.StateDir).To(Equal(dir))
		Expect(a.Config.Retrieval.TopK).To(Equal(2))
		Expect(logs.String()).To(ContainSubstring("using in-memory storage"))
	})

	It("tees JSON logs into log.file", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[log]\nfile = \"ctxmem.log\"\n\n[storage]\ndriver = \"memory\"\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		var logs bytes.Buffer
		a, err := app.Bootstrap(v, dir, false, &logs)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Close(context.Background())).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "ctxmem.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"using in-memory storage"`))
		Expect(logs.String()).To(ContainSubstring("using in-memory storage"))
	})
})
