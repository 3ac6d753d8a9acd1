// Package initcmder provides the init command, which creates a .ctxmem/
// state directory and seeds its config.toml.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/config"
	"github.com/papercomputeco/ctxmem/pkg/dotdir"
)

const initLongDesc string = `Initialize a .ctxmem/ directory.

Creates .ctxmem/ in the current working directory (or at --config-dir). A
local .ctxmem/ takes precedence over ~/.ctxmem/ for configuration, the
observation database and tail cursors.

A config.toml is written when none exists. --preset selects its contents and
always overwrites:
  local       SQLite store, lexical retrieval (default)
  semantic    adds sqlite-vec embeddings and reranking
  streaming   semantic plus Kafka observation publishing
  <url>       fetch a config.toml over HTTP(S)

Examples:
  ctxmem init
  ctxmem init --preset semantic
  ctxmem init --preset https://example.com/ctxmem.toml`

const initShortDesc string = "Initialize a .ctxmem/ directory"

const fetchTimeout = 30 * time.Second

type initCommander struct {
	preset    string
	configDir string
	out       io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Config preset name or URL ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	dir := c.configDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dotdir.DirName)
	}

	_, statErr := os.Stat(dir)
	existed := statErr == nil

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dotdir.DirName, err)
	}

	if existed {
		fmt.Fprintf(c.out, "%s Already initialized: %s\n", cliui.SuccessMark, dir)
	} else {
		fmt.Fprintf(c.out, "%s Initialized %s\n", cliui.SuccessMark, dir)
	}

	_, err = os.Stat(cfger.GetTarget())
	hasConfig := err == nil
	if hasConfig && c.preset == "" {
		return nil
	}

	cfg, err := c.presetConfig(ctx)
	if err != nil {
		return err
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s Wrote %s\n", cliui.SuccessMark, cliui.DimStyle.Render(cfger.GetTarget()))
	return nil
}

func (c *initCommander) presetConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
