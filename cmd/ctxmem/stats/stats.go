// Package statscmder provides the stats command, which summarizes the
// observation store.
package statscmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/ctxmem/pkg/app"
	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/config"
)

const statsLongDesc string = `Summarize the observation store.

Shows how many observations and sessions are stored, broken down by platform
and project, and when the newest observation was recorded.

Examples:
  ctxmem stats
  ctxmem stats --json`

const statsShortDesc string = "Summarize the observation store"

var statsFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagLogFormat,
}

type statsCommander struct {
	asJSON bool

	flags struct {
		storage, sqlite, logFormat string
	}

	viper     *viper.Viper
	configDir string
	debug     bool
}

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, statsFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &cmder.flags.storage)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.flags.sqlite)
	config.AddStringFlag(cmd, config.Registry, config.FlagLogFormat, &cmder.flags.logFormat)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print statistics as JSON")

	return cmd
}

func (c *statsCommander) run(ctx context.Context, out, logOut io.Writer) (err error) {
	a, err := app.Bootstrap(c.viper, c.configDir, c.debug, logOut)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()

	res, err := a.Retrieval.Stats(ctx)
	if err != nil {
		return err
	}
	st := res.Value

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(out, "%s\n", cliui.HeadingStyle.Render("Observation store"))
	cliui.KeyValue(out, "database", a.SQLitePath())
	cliui.KeyValue(out, "observations", st.Observations)
	cliui.KeyValue(out, "sessions", st.Sessions)
	if st.Newest != "" {
		cliui.KeyValue(out, "newest", st.Newest)
	}

	writeCounts(out, "By platform", st.ByPlatform)
	writeCounts(out, "By project", st.ByProject)
	return nil
}

func writeCounts(w io.Writer, heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", cliui.HeadingStyle.Render(heading))
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		cliui.KeyValue(w, k, counts[k])
	}
}
