package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapio/internal/model"
)

var setCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Create or update a flag",
	GroupID: "flags",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")
		res, err := flagsClient.SetFlag(context.Background(), args[0], args[1], consumer)
		if err != nil {
			return err
		}
		return printResult(stdout, res)
	},
}

var unsetCmd = &cobra.Command{
	Use:     "unset <key>",
	Short:   "Remove a flag",
	GroupID: "flags",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")
		res, err := flagsClient.UnsetFlag(context.Background(), args[0], consumer)
		if err != nil {
			return err
		}
		return printResult(stdout, res)
	},
}

var getCmd = &cobra.Command{
	Use:     "get <key>",
	Short:   "Show the record stored for exactly (key, consumer)",
	GroupID: "flags",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")
		flag, found, err := flagsClient.GetFlag(context.Background(), args[0], consumer)
		if err != nil {
			return err
		}
		if !found {
			id := model.FlagIdentity{Key: args[0], Consumer: model.NormalizeConsumer(consumer)}
			return fmt.Errorf("flag %s not found", id)
		}
		if jsonOutput {
			return printJSON(stdout, flag)
		}
		return printFlagTable(stdout, []*model.FeatureFlag{flag})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List flags",
	Long:    "Without filters, list every (key, consumer) identity. With --key, list that key's records; with --consumer, the consumer's own records plus universal ones.",
	GroupID: "flags",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		consumer, _ := cmd.Flags().GetString("consumer")
		ctx := context.Background()

		switch {
		case key != "" && consumer != "":
			return errors.New("specify at most one of --key or --consumer")
		case key != "" || cmd.Flags().Changed("consumer"):
			list, err := listRecords(ctx, key, consumer)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(stdout, list)
			}
			return printFlagTable(stdout, list)
		default:
			ids, err := flagsClient.ListIdentities(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(stdout, ids)
			}
			return printIdentityTable(stdout, ids)
		}
	},
}

func listRecords(ctx context.Context, key, consumer string) ([]*model.FeatureFlag, error) {
	if key != "" {
		return flagsClient.ListByKey(ctx, key)
	}
	return flagsClient.ListByConsumer(ctx, consumer)
}

func init() {
	for _, c := range []*cobra.Command{setCmd, unsetCmd, getCmd} {
		c.Flags().StringP("consumer", "c", "", "consumer the flag applies to (default: every consumer)")
	}
	listCmd.Flags().StringP("key", "k", "", "list the records of one key")
	listCmd.Flags().StringP("consumer", "c", "", "list the records visible to one consumer")
}
