// Package configcmder manages the persistent ctxmem configuration stored in
// the .ctxmem/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ctxmem/pkg/config"
)

const configLongDesc string = `Manage persistent ctxmem configuration.

Configuration is stored as config.toml in the .ctxmem/ directory and provides
default values for command flags. Flags and CTXMEM_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  storage.driver, storage.sqlite_path, ingest.poll_interval,
  retrieval.rerank, retrieval.top_k, worker.workers,
  vector_store.provider, embedding.model, eventstream.brokers

Ingest sources are [[ingest.sources]] tables; manage them with
"ctxmem sources".

Examples:
  ctxmem config set retrieval.rerank on
  ctxmem config get storage.sqlite_path
  ctxmem config list`

const configShortDesc string = "Manage persistent ctxmem configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
