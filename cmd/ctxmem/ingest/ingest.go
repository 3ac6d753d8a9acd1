// Package ingestcmder provides the ingest command, which tails the configured
// assistant logs into the observation store.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/ctxmem/pkg/app"
	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/config"
	"github.com/papercomputeco/ctxmem/pkg/tail"
)

const ingestLongDesc string = `Ingest assistant session logs.

Polls every configured source once, recording new events in the observation
store. Progress is kept in cursors.json so re-running only reads what was
appended since the last run.

With --watch, ingest keeps running: sources are re-polled on file system
changes and every --poll-interval until interrupted.

Examples:
  ctxmem ingest
  ctxmem ingest --watch --poll-interval 5s
  ctxmem ingest --storage memory --watch`

const ingestShortDesc string = "Ingest assistant session logs"

var ingestFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPollInterval,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEventStreamProv,
	config.FlagEventStreamTpc,
	config.FlagLogFormat,
}

type ingestCommander struct {
	watch bool

	flags struct {
		storage, sqlite, pollInterval string
		vectorProvider, vectorTarget  string
		embedProvider, embedTarget    string
		embedModel                    string
		streamProvider, streamTopic   string
		logFormat                     string
	}

	viper     *viper.Viper
	configDir string
	debug     bool
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, ingestFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Registry, config.FlagPollInterval, &f.pollInterval)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingProv, &f.embedProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &f.embedModel)
	config.AddStringFlag(cmd, config.Registry, config.FlagEventStreamProv, &f.streamProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagEventStreamTpc, &f.streamTopic)
	config.AddStringFlag(cmd, config.Registry, config.FlagLogFormat, &f.logFormat)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep running and ingest new events as they are written")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, out, logOut io.Writer) (err error) {
	a, err := app.Bootstrap(c.viper, c.configDir, c.debug, logOut)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()

	tailer, err := a.Tailer()
	if err != nil {
		return err
	}

	sources, err := a.Sources()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintf(out, "%s\n", cliui.DimStyle.Render(`No sources configured. Add one with "ctxmem sources add <kind> <pattern>".`))
		return nil
	}

	if c.watch {
		return c.runWatch(ctx, out, a, tailer)
	}

	var res tail.Result
	err = cliui.Step(out, fmt.Sprintf("Polling %d source(s)", len(sources)), func() error {
		var perr error
		res, perr = tailer.Poll(ctx)
		return perr
	})
	if err != nil {
		return err
	}

	printResult(out, res)
	return nil
}

func (c *ingestCommander) runWatch(ctx context.Context, out io.Writer, a *app.App, tailer *tail.Tailer) error {
	interval := a.Config.Ingest.PollEvery()
	fmt.Fprintf(out, "%s Watching sources every %s (ctrl-c to stop)\n", cliui.SuccessMark, cliui.FormatDuration(interval))

	return tailer.Watch(ctx, interval, func(res tail.Result) {
		if res.Inserted == 0 && res.Failed == 0 {
			return
		}
		a.Retrieval.InvalidateStats()
		printResult(out, res)
	})
}

func printResult(w io.Writer, res tail.Result) {
	mark := cliui.SuccessMark
	if res.Failed > 0 {
		mark = cliui.FailMark
	}
	fmt.Fprintf(w, "%s %d file(s), %d event(s): %d new, %d duplicate, %d failed\n",
		mark, res.Files, res.Events, res.Inserted, res.Duplicates, res.Failed)
}
