package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapio/internal/client"
	"github.com/alfredjeanlab/grapio/internal/ui"
)

var consumersCmd = &cobra.Command{
	Use:               "consumers",
	Short:             "List consumers that have resolved flags (HTTP only)",
	GroupID:           "views",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		stale, _ := cmd.Flags().GetDuration("stale")
		c := client.NewHTTPClient(httpURL, authToken)
		roster, err := c.Consumers(context.Background(), stale)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, roster)
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONSUMER\tLAST SEEN\tVIA\tFLAGS\tFETCHES")
		for _, e := range roster {
			ago := time.Duration(e.IdleSecs * float64(time.Second)).Round(time.Second).String() + " ago"
			if e.Idle {
				ago = ui.RenderMuted(ago + " (idle)")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", ui.RenderAccent(e.Consumer), ago, e.LastTransport, e.LastFlagCount, e.FetchCount)
		}
		return w.Flush()
	},
}

func init() {
	consumersCmd.Flags().Duration("stale", 0, "hide consumers idle for longer than this")
}
