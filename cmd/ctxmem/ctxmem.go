// Package ctxmemcmder
package ctxmemcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/config"
	ingestcmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/ingest"
	initcmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/init"
	querycmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/query"
	routecmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/route"
	sourcescmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/sources"
	statscmder "github.com/papercomputeco/ctxmem/cmd/ctxmem/stats"
	versioncmder "github.com/papercomputeco/ctxmem/cmd/version"
	"github.com/papercomputeco/ctxmem/pkg/utils"
)

const ctxmemLongDesc string = `ctxmem is long-lived memory for AI coding assistants.

It tails the session logs of Codex, Cursor, Gemini, OpenCode and Antigravity,
keeps a deduplicated observation store, and answers questions with ranked,
redacted evidence.

Get started:
  ctxmem init --preset local
  ctxmem sources add codex-sessions "~/.codex/sessions/**/*.jsonl"
  ctxmem ingest --watch
  ctxmem query "what did we decide about the cache?"`

const ctxmemShortDesc string = "ctxmem - memory for coding agents"

func NewCtxmemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ctxmem",
		Short:         ctxmemShortDesc,
		Long:          ctxmemLongDesc,
		Version:       utils.Build().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .ctxmem/ state directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(sourcescmder.NewSourcesCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(routecmder.NewRouteCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
