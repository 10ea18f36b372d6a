package main

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/nao1215/tgsimilar/internal/crawler"
	"github.com/nao1215/tgsimilar/internal/input"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/service"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [channels...]",
		Short: "Collect similar channels for a list of channels",
		Long: `Crawl asks the platform for the similar channels of every given channel and
prints the discovered channels.

Channels are given as arguments or read from a file (.txt one per line
with "#" comment lines, .csv first column, .json array of strings). Without either, the channel
list stored by a previous crawl or "channels set" is used.

Examples:
  # Crawl two channels and print a text summary
  tgsimilar crawl @durov telegram

  # Crawl a list and export CSV
  tgsimilar crawl -f channels.txt --format csv -o similar.csv

  # Four workers through a local Tor SOCKS proxy
  tgsimilar crawl -f channels.txt -c 4 --proxy 127.0.0.1:9050`,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("file", "f", "", "File containing the channel list")
	cmd.Flags().String("code", "", "Login code for a first login without a terminal (or $TELEGRAM_LOGIN_CODE)")
	addCrawlFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := signalContext(logger)
	defer cancel()

	t, err := openTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWith(logger, "transport", t)

	client, err := newPlatformClient(cfg, t, crawlAuthenticator(cmd, cfg), logger)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeWith(logger, "database", store)

	orch := crawler.New(client,
		crawler.WithLogger(logger),
		crawler.WithProgress(progressPrinter(cmd.ErrOrStderr())),
	)
	svc := service.New(store, orch, policyFromConfig(cfg), service.WithLogger(logger))

	var outcome *service.Outcome
	if len(raw) > 0 {
		outcome, err = svc.SubmitAndRun(ctx, raw)
	} else {
		outcome, err = svc.Run(ctx)
	}
	if outcome != nil {
		printRejections(cmd.ErrOrStderr(), outcome)
	}
	if errors.Is(err, service.ErrNoChannels) {
		return fmt.Errorf("%w: pass channels as arguments or with --file", err)
	}
	if outcome == nil || outcome.Run == nil {
		return err
	}
	if outcome.PersistErr != nil {
		logger.Warn("crawl result was not fully stored", "error", outcome.PersistErr)
	}

	if werr := writeReport(cmd, cfg, outcome.Run); werr != nil {
		return errors.Join(err, werr)
	}
	if err != nil {
		return err
	}
	if outcome.Run.Status == model.RunCancelled {
		return fmt.Errorf("crawl cancelled after %d of %d channels",
			outcome.Run.Succeeded+outcome.Run.Failed, outcome.Run.Total)
	}
	return nil
}

// progressPrinter returns a callback printing one line per finished channel.
func progressPrinter(w io.Writer) func(model.ItemResult) {
	var done atomic.Int64
	return func(res model.ItemResult) {
		n := done.Add(1)
		switch res.Status {
		case model.ItemSucceeded:
			fmt.Fprintf(w, "[%d] @%s: %d similar\n", n, res.Source, len(res.Channels))
		case model.ItemFailed:
			fmt.Fprintf(w, "[%d] @%s: failed (%s) %s\n", n, res.Source, res.ErrorClass, res.Error)
		case model.ItemCancelled, model.ItemPending:
			fmt.Fprintf(w, "[%d] @%s: %s\n", n, res.Source, res.Status)
		}
	}
}

func printRejections(w io.Writer, outcome *service.Outcome) {
	for _, r := range outcome.Validation.Rejected {
		fmt.Fprintf(w, "skipped %q: %s\n", r.Entry, r.Reason)
	}
	if n := outcome.Validation.Duplicates; n > 0 {
		fmt.Fprintf(w, "skipped %d duplicate entries\n", n)
	}
}
