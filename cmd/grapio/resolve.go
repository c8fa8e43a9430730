package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:     "resolve <consumer>",
	Short:   "Show the typed flag set a consumer sees",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags, err := flagsClient.Resolve(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, flags)
		}
		return printTypedTable(stdout, flags)
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the grapio server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := flagsClient.Health(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(stdout, map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stdout, "Health: %s\n", status)
		}
		// HTTP reports "ok", gRPC health reports SERVING.
		if status != "ok" && status != "SERVING" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
