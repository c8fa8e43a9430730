package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/grapio/internal/client"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/ui"
)

const maxValueWidth = 60

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printResult reports a write. A rejected write is returned as an error so
// the command exits non-zero.
func printResult(w io.Writer, res *client.Result) error {
	if jsonOutput {
		if err := printJSON(w, res); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Fprintln(w, ui.RenderOK(res.Message))
	}
	if !res.Success {
		return fmt.Errorf("rejected: %s", res.Message)
	}
	return nil
}

// truncate shortens s to fit a table column.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func printFlagTable(w io.Writer, flags []*model.FeatureFlag) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCONSUMER\tVALUE")
	for _, f := range flags {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ui.RenderAccent(f.Key), f.Consumer, truncate(f.Value, maxValueWidth))
	}
	return tw.Flush()
}

func printIdentityTable(w io.Writer, ids []model.FlagIdentity) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCONSUMER")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%s\n", ui.RenderAccent(id.Key), id.Consumer)
	}
	return tw.Flush()
}

func printTypedTable(w io.Writer, flags []client.TypedFlag) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tVALUE")
	for _, f := range flags {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ui.RenderAccent(f.Key), ui.RenderMuted(f.Type), truncate(f.Text(), maxValueWidth))
	}
	return tw.Flush()
}

// stdout is replaced in tests.
var stdout io.Writer = os.Stdout
