package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/tgsimilar/internal/database"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [source-channel]",
		Short: "List past crawl runs or the stored recommendations of a channel",
		Long: `History lists stored crawl runs, newest first.

With a channel argument it prints every similar channel stored for that
source channel across all runs.

Examples:
  tgsimilar history
  tgsimilar history -n 5
  tgsimilar history @durov`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 for all)")
	addDBFlag(cmd)
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		return printDiscovered(cmd, store, args[0])
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawl runs stored")
		return nil
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(out io.Writer, runs []database.RunSummary) {
	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-17s  %5s  %5s  %5s  %s\n",
		"ID", "Started", "Status", "Total", "OK", "Fail", "Discovered")
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-17s  %5d  %5d  %5d  %d\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			r.Total,
			r.Succeeded,
			r.Failed,
			r.Discovered)
	}
}

func printDiscovered(cmd *cobra.Command, store *database.Store, raw string) error {
	source, err := model.NewChannelID(raw)
	if err != nil {
		return fmt.Errorf("invalid channel %q: %w", raw, err)
	}
	channels, err := store.QueryDiscovered(cmd.Context(), source.String())
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", source, err)
	}

	out := cmd.OutOrStdout()
	if len(channels) == 0 {
		fmt.Fprintf(out, "No similar channels stored for @%s\n", source)
		return nil
	}
	fmt.Fprintf(out, "Similar channels stored for @%s (%d):\n\n", source, len(channels))
	for _, ch := range channels {
		members := report.Unknown
		if ch.MemberCount != nil {
			members = strconv.FormatInt(*ch.MemberCount, 10)
		}
		fmt.Fprintf(out, "  • @%s  %s  members: %s  (%s)\n",
			ch.Username, ch.Title, members, ch.DiscoveredAt.Local().Format(time.DateTime))
	}
	return nil
}
