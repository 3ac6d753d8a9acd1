// Package sourcescmder manages the [[ingest.sources]] entries of the config.
package sourcescmder

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/config"
	"github.com/papercomputeco/ctxmem/pkg/git"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

const sourcesLongDesc string = `Manage ingest sources.

A source pairs an adapter kind with a glob pattern. Patterns may use ** and
a leading ~/. Every file the pattern matches is tailed by "ctxmem ingest".

Kinds:
  codex-sessions      ~/.codex/sessions/**/*.jsonl
  cursor-hooks        hook payload spool files (JSONL)
  gemini-events       Gemini CLI telemetry logs (JSONL)
  opencode-db         ~/.local/share/opencode/opencode.db
  opencode-storage    ~/.local/share/opencode/storage/message/**/*.json
  antigravity-files   brain artifacts (*.md)
  antigravity-logs    Antigravity logs (JSONL)

Examples:
  ctxmem sources add codex-sessions "~/.codex/sessions/**/*.jsonl"
  ctxmem sources add cursor-hooks ./hooks.jsonl --project api
  ctxmem sources add cursor-hooks ./hooks.jsonl --project-from-repo
  ctxmem sources list`

const sourcesShortDesc string = "Manage ingest sources"

func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: sourcesShortDesc,
		Long:  sourcesLongDesc,
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func newAddCmd() *cobra.Command {
	var (
		src      config.SourceConfig
		fromRepo bool
	)

	cmd := &cobra.Command{
		Use:   "add <kind> <pattern>",
		Short: "Add an ingest source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			src.Kind = args[0]
			src.Pattern = args[1]
			if fromRepo && src.Project == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("getting current directory: %w", err)
				}
				src.Project = git.RepoName(cwd)
			}
			return runAdd(cmd.OutOrStdout(), configDir, src)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return kindNames(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveDefault
		},
	}

	cmd.Flags().StringVar(&src.Project, "project", "", "Project name used when the log does not carry one")
	cmd.Flags().BoolVar(&fromRepo, "project-from-repo", false, "Use the current git repository name as the project")
	cmd.Flags().StringVar(&src.SessionSeed, "session-seed", "", "Session id used when the log does not carry one")

	return cmd
}

func runAdd(w io.Writer, configDir string, src config.SourceConfig) error {
	if _, ok := ingest.ParseKind(src.Kind); !ok {
		return fmt.Errorf("unknown source kind: %q\n\nValid kinds: %s", src.Kind, strings.Join(kindNames(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.AddSource(src); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Added %s %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(src.Kind), cliui.ValueStyle.Render(src.Pattern))
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ingest sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Ingest.Sources) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No sources configured."))
		return nil
	}

	for i, src := range cfg.Ingest.Sources {
		fmt.Fprintf(w, "%d. %s %s", i+1, cliui.KeyStyle.Render(src.Kind), cliui.ValueStyle.Render(src.Pattern))
		if src.Project != "" {
			fmt.Fprintf(w, " %s", cliui.DimStyle.Render("project="+src.Project))
		}
		if src.SessionSeed != "" {
			fmt.Fprintf(w, " %s", cliui.DimStyle.Render("session="+src.SessionSeed))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func kindNames() []string {
	kinds := ingest.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return names
}
