package sourcescmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ctxmemcmder "github.com/papercomputeco/ctxmem/cmd/ctxmem"
	"github.com/papercomputeco/ctxmem/pkg/config"
)

var _ = Describe("sources command", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := ctxmemcmder.NewCtxmemCmd()
		out.Reset()
		cmd.SetOut(out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append(append([]string{"sources"}, args...), "--config-dir", configDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	It("adds a source to config.toml", func() {
		Expect(run("add", "cursor-hooks", "/tmp/hooks.jsonl", "--project", "api")).To(Succeed())

		cfger, err := config.NewConfiger(configDir)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Ingest.Sources).To(Equal([]config.SourceConfig{
			{Kind: "cursor-hooks", Pattern: "/tmp/hooks.jsonl", Project: "api"},
		}))
	})

	It("lists configured sources", func() {
		Expect(run("add", "gemini-events", "~/.gemini/telemetry.log")).To(Succeed())
		Expect(run("add", "opencode-db", "~/.local/share/opencode/opencode.db", "--session-seed", "oc")).To(Succeed())

		Expect(run("list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("gemini-events"))
		Expect(out.String()).To(ContainSubstring("opencode-db"))
		Expect(out.String()).To(ContainSubstring("session=oc"))
	})

	It("reports an empty source list", func() {
		Expect(run("list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No sources configured"))
	})

	It("rejects unknown kinds", func() {
		Expect(run("add", "vscode", "/tmp/x")).To(MatchError(ContainSubstring("unknown source kind")))
	})

	It("rejects duplicates", func() {
		Expect(run("add", "codex-sessions", "/tmp/a.jsonl")).To(Succeed())
		Expect(run("add", "codex-sessions", "/tmp/a.jsonl")).To(MatchError(ContainSubstring("already configured")))
	})

	It("requires a kind and a pattern", func() {
		Expect(run("add", "codex-sessions")).To(HaveOccurred())
	})
})

var _ = Describe("sources add --project-from-repo", func() {
	var origDir string

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	It("names the project after the working directory", func() {
		base := GinkgoT().TempDir()
		work := filepath.Join(base, "billing")
		configDir := filepath.Join(base, "state")
		Expect(os.MkdirAll(work, 0o755)).To(Succeed())
		Expect(os.Chdir(work)).To(Succeed())

		cmd := ctxmemcmder.NewCtxmemCmd()
		cmd.SetOut(GinkgoWriter)
		cmd.SetArgs([]string{"sources", "add", "cursor-hooks", "hooks.jsonl", "--project-from-repo", "--config-dir", configDir})
		Expect(cmd.Execute()).To(Succeed())

		cfger, err := config.NewConfiger(configDir)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Ingest.Sources[0].Project).To(Equal("billing"))
	})
})
