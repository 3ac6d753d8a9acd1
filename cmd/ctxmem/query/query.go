// Package querycmder provides the query command, which answers a question
// from the observation store with ranked, redacted evidence.
package querycmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/ctxmem/pkg/app"
	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/config"
	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/retrieval"
	"github.com/papercomputeco/ctxmem/pkg/router"
	"github.com/papercomputeco/ctxmem/pkg/store"
)

const queryLongDesc string = `Answer a question from memory.

The question is routed to a kind (profile, timeline, graph, vector, hybrid)
that picks the scoring weights, the store is searched, the head of the
result list is optionally reranked, and the top evidence is printed.

Observations tagged private or secret are left out unless --include-private
is set. Evidence content is always the redacted form.

--since and --until accept an RFC 3339 timestamp, a date (2006-01-02) or a
duration relative to now (72h).

Output is rendered markdown on a terminal and JSON otherwise, or always JSON
with --json.

Examples:
  ctxmem query "what did we decide about retries?"
  ctxmem query "what happened yesterday" --kind timeline --since 24h
  ctxmem query "auth middleware" --project api --top-k 3 --rerank on
  ctxmem query "deploy steps" --json | jq '.evidence[].content'`

const queryShortDesc string = "Answer a question from memory"

var queryFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagRerank,
	config.FlagTopK,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagLogFormat,
}

type queryCommander struct {
	kind           string
	platform       string
	project        string
	session        string
	eventType      string
	since          string
	until          string
	includePrivate bool
	asJSON         bool

	flags struct {
		storage, sqlite, rerank      string
		topK                         int
		vectorProvider, vectorTarget string
		embedProvider, embedTarget   string
		embedModel, logFormat        string
	}

	viper     *viper.Viper
	configDir string
	debug     bool
	now       func() time.Time
}

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{now: time.Now}

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, queryFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "))
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Registry, config.FlagRerank, &f.rerank)
	config.AddIntFlag(cmd, config.Registry, config.FlagTopK, &f.topK)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingProv, &f.embedProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &f.embedModel)
	config.AddStringFlag(cmd, config.Registry, config.FlagLogFormat, &f.logFormat)

	cmd.Flags().StringVar(&cmder.kind, "kind", "", "Force a question kind ("+kindList()+")")
	cmd.Flags().StringVar(&cmder.platform, "platform", "", "Only match this platform (codex, cursor, gemini, opencode, antigravity)")
	cmd.Flags().StringVar(&cmder.project, "project", "", "Only match this project")
	cmd.Flags().StringVar(&cmder.session, "session", "", "Only match this session id")
	cmd.Flags().StringVar(&cmder.eventType, "event-type", "", "Only match this event type")
	cmd.Flags().StringVar(&cmder.since, "since", "", "Only match observations created at or after this time")
	cmd.Flags().StringVar(&cmder.until, "until", "", "Only match observations created before this time")
	cmd.Flags().BoolVar(&cmder.includePrivate, "include-private", false, "Include observations tagged private or secret")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the answer as JSON")

	return cmd
}

func (c *queryCommander) run(ctx context.Context, out, logOut io.Writer, question string) (err error) {
	if err := router.CheckKind(c.kind); err != nil {
		return err
	}

	filters, err := c.filters()
	if err != nil {
		return err
	}

	a, err := app.Bootstrap(c.viper, c.configDir, c.debug, logOut)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()

	resp, err := a.Retrieval.Answer(ctx, retrieval.Request{
		Query:   question,
		Kind:    c.kind,
		Filters: filters,
	})
	if err != nil {
		return err
	}

	if c.asJSON || !cliui.IsTerminal(out) {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	rendered, rerr := cliui.RenderMarkdown(Markdown(question, resp), 0)
	if rerr != nil {
		a.Logger.Debug("rendering markdown", "error", rerr)
	}
	fmt.Fprint(out, rendered)
	return nil
}

func (c *queryCommander) filters() (store.Filters, error) {
	since, err := resolveTime(c.since, c.now())
	if err != nil {
		return store.Filters{}, fmt.Errorf("invalid --since: %w", err)
	}
	until, err := resolveTime(c.until, c.now())
	if err != nil {
		return store.Filters{}, fmt.Errorf("invalid --until: %w", err)
	}

	return store.Filters{
		Platform:       c.platform,
		Project:        c.project,
		SessionID:      c.session,
		EventType:      c.eventType,
		Since:          since,
		Until:          until,
		IncludePrivate: c.includePrivate,
	}, nil
}

// resolveTime converts a flag value into the canonical timestamp form.
func resolveTime(value string, now time.Time) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return "", fmt.Errorf("negative duration %q", value)
		}
		return event.Format(now.Add(-d)), nil
	}

	if t, err := time.ParseInLocation(time.DateOnly, value, time.UTC); err == nil {
		return event.Format(t), nil
	}

	if t, ok := event.ParseTime(value); ok {
		return event.Format(t), nil
	}

	return "", fmt.Errorf("unrecognized time %q", value)
}

func kindList() string {
	kinds := router.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
