// Package routecmder provides the route command, which shows how a question
// would be classified without touching the store.
package routecmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ctxmem/pkg/cliui"
	"github.com/papercomputeco/ctxmem/pkg/router"
)

const routeLongDesc string = `Show how a question is routed.

Prints the question kind, the confidence, the reason and the scoring weights
that "ctxmem query" would use.

Examples:
  ctxmem route "what changed last week?"
  ctxmem route "who owns the billing service" --json`

const routeShortDesc string = "Show how a question is routed"

type routeCommander struct {
	kind   string
	asJSON bool
}

func NewRouteCmd() *cobra.Command {
	cmder := &routeCommander{}

	cmd := &cobra.Command{
		Use:   "route <question>",
		Short: routeShortDesc,
		Long:  routeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&cmder.kind, "kind", "", "Force a question kind")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the decision as JSON")

	return cmd
}

func (c *routeCommander) run(w io.Writer, question string) error {
	if err := router.CheckKind(c.kind); err != nil {
		return err
	}

	d := router.Route(question, c.kind)

	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	cliui.KeyValue(w, "kind", d.Kind)
	cliui.KeyValue(w, "confidence", fmt.Sprintf("%.2f", d.Confidence))
	cliui.KeyValue(w, "reason", d.Reason)
	cliui.KeyValue(w, "lexical", d.Weights.Lexical)
	cliui.KeyValue(w, "vector", d.Weights.Vector)
	cliui.KeyValue(w, "recency", d.Weights.Recency)
	cliui.KeyValue(w, "tag_boost", d.Weights.TagBoost)
	cliui.KeyValue(w, "importance", d.Weights.Importance)
	cliui.KeyValue(w, "graph", d.Weights.Graph)
	return nil
}
