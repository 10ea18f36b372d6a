package main

import (
	"fmt"

	"github.com/nao1215/tgsimilar/internal/input"
	"github.com/spf13/cobra"
)

// NewChannelsCmd creates the channels command group.
func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the stored channel list",
		Long: `Channels stores or prints the channel list used by "crawl" and by
POST /api/run-crawler when no channels are given.`,
	}
	cmd.AddCommand(newChannelsSetCmd())
	cmd.AddCommand(newChannelsShowCmd())
	return cmd
}

func newChannelsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [channels...]",
		Short: "Validate and store a channel list",
		Long: `Set validates the given channels and replaces the stored list.
Invalid entries and duplicates are reported and skipped.

Examples:
  tgsimilar channels set @durov telegram
  tgsimilar channels set -f channels.csv`,
		RunE: runChannelsSetCmd,
	}
	cmd.Flags().StringP("file", "f", "", "File containing the channel list")
	addDBFlag(cmd)
	return cmd
}

func runChannelsSetCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	raw := append([]string(nil), args...)
	if listFile := stringFlag(cmd, "file"); listFile != "" {
		entries, err := input.LoadFile(listFile)
		if err != nil {
			return err
		}
		raw = append(raw, entries...)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: pass channels as arguments or with --file", input.ErrEmptyList)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeWith(logger, "database", store)

	res := input.NewValidator(input.WithLogger(logger)).Validate(raw)
	for _, r := range res.Rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %q: %s\n", r.Entry, r.Reason)
	}
	if len(res.Channels) == 0 {
		return fmt.Errorf("%w: no valid channels", input.ErrEmptyList)
	}
	if err := store.SaveChannelList(cmd.Context(), res.Channels); err != nil {
		return fmt.Errorf("failed to store channel list: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored %d channels (%d invalid, %d duplicates)\n",
		len(res.Channels), res.Dropped(), res.Duplicates)
	return nil
}

func newChannelsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored channel list",
		Args:  cobra.NoArgs,
		RunE:  runChannelsShowCmd,
	}
	addDBFlag(cmd)
	return cmd
}

func runChannelsShowCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	store, err := openExistingStore(cfg)
	if err != nil {
		return err
	}
	defer closeWith(logger, "database", store)

	channels, err := store.LoadChannelList(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load channel list: %w", err)
	}
	if len(channels) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No channels stored")
		return nil
	}
	for _, ch := range channels {
		fmt.Fprintf(cmd.OutOrStdout(), "@%s\n", ch)
	}
	return nil
}
