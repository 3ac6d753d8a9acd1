package ctxmemcmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ctxmemcmder "github.com/papercomputeco/ctxmem/cmd/ctxmem"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/utils"
)

const rollout = `{"type":"session_meta","timestamp":"2026-03-01T10:00:00.000Z","payload":{"id":"sess-1","cwd":"/work/billing"}}
{"type":"response_item","timestamp":"2026-03-01T10:00:01.000Z","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"add exponential retry backoff to the invoice sync job"}]}}
{"type":"event_msg","timestamp":"2026-03-01T10:05:00.000Z","payload":{"type":"task_complete","turn_id":"t1","last_agent_message":"Retry backoff now doubles up to 30s with jitter."}}
`

var _ = Describe("NewCtxmemCmd", func() {
	It("registers every subcommand", func() {
		cmd := ctxmemcmder.NewCtxmemCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("init", "config", "sources", "ingest", "query", "route", "stats", "version"))
	})

	It("has persistent debug and config-dir flags", func() {
		cmd := ctxmemcmder.NewCtxmemCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})

var _ = Describe("ctxmem end to end", func() {
	var (
		configDir string
		logsDir   string
		out       *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := ctxmemcmder.NewCtxmemCmd()
		out.Reset()
		cmd.SetOut(out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		logsDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		dir := filepath.Join(logsDir, "2026", "03", "01")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "rollout-1.jsonl"), []byte(rollout), 0o600)).To(Succeed())
	})

	It("ingests configured sources and answers questions", func() {
		Expect(run("sources", "add", "codex-sessions", filepath.Join(logsDir, "**", "*.jsonl"))).To(Succeed())

		Expect(run("ingest")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("2 new"))

		Expect(run("ingest")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("0 new"))

		Expect(run("query", "retry", "backoff", "--json")).To(Succeed())

		var resp struct {
			QuestionKind  string `json:"question_kind"`
			EvidenceCount int    `json:"evidence_count"`
			Evidence      []struct {
				Platform  string `json:"platform"`
				SessionID string `json:"session_id"`
				Rank      int    `json:"rank"`
			} `json:"evidence"`
		}
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		Expect(resp.EvidenceCount).To(Equal(2))
		Expect(resp.Evidence[0].Platform).To(Equal("codex"))
		Expect(resp.Evidence[0].SessionID).To(Equal("sess-1"))
		Expect(resp.Evidence[0].Rank).To(Equal(1))

		Expect(run("stats", "--json")).To(Succeed())
		var stats struct {
			Observations int `json:"observations"`
			Sessions     int `json:"sessions"`
		}
		Expect(json.Unmarshal(out.Bytes(), &stats)).To(Succeed())
		Expect(stats.Observations).To(Equal(2))
		Expect(stats.Sessions).To(Equal(1))

		_, err := os.Stat(filepath.Join(configDir, "ctxmem.db"))
		Expect(err).NotTo(HaveOccurred())
		_, err = os.Stat(filepath.Join(configDir, "cursors.json"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports when no sources are configured", func() {
		Expect(run("ingest")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No sources configured"))
	})

	It("honors the --top-k flag over the config file", func() {
		Expect(run("sources", "add", "codex-sessions", filepath.Join(logsDir, "**", "*.jsonl"))).To(Succeed())
		Expect(run("config", "set", "retrieval.top_k", "5")).To(Succeed())
		Expect(run("ingest")).To(Succeed())

		Expect(run("query", "retry backoff", "--json", "--top-k", "1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`"evidence_count": 1`))
	})

	It("rejects unknown question kinds", func() {
		Expect(run("query", "anything", "--kind", "astrology")).To(MatchError(ContainSubstring("unknown kind")))
	})

	It("rejects malformed time filters", func() {
		Expect(run("query", "anything", "--since", "last tuesday")).To(MatchError(ContainSubstring("invalid --since")))
	})

	It("rejects unknown storage drivers", func() {
		Expect(run("stats", "--storage", "postgres")).To(HaveOccurred())
	})

	It("routes without opening the store", func() {
		Expect(run("route", "what", "happened", "yesterday", "--json")).To(Succeed())

		var d router.Decision
		Expect(json.Unmarshal(out.Bytes(), &d)).To(Succeed())
		Expect(d.Kind).To(Equal(router.KindTimeline))

		_, err := os.Stat(filepath.Join(configDir, "ctxmem.db"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("rejects an unknown forced kind when routing", func() {
		Expect(run("route", "anything", "--kind", "astrology")).To(MatchError(ContainSubstring("unknown kind")))
		Expect(run("route", "anything", "--kind", "Graph", "--json")).To(Succeed())
	})

	It("prints the version", func() {
		Expect(run("version", "--json")).To(Succeed())

		var b utils.BuildInfo
		Expect(json.Unmarshal(out.Bytes(), &b)).To(Succeed())
		Expect(b.Version).To(Equal(utils.Version))
		Expect(strings.TrimSpace(out.String())).To(HavePrefix("{"))
	})
})
