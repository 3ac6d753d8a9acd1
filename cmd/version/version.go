// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")

	return cmd
}

func run(w io.Writer, asJSON bool) error {
	b := utils.Build()
	if asJSON {
		return json.NewEncoder(w).Encode(b)
	}

	cliui.KeyValue(w, "version", b.Version)
	cliui.KeyValue(w, "sha", b.Sha)
	cliui.KeyValue(w, "built", b.Buildtime)
	return nil
}
