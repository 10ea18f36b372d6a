package main

import (
	"fmt"

	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/service"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored crawl result",
		Long: `Export writes the last stored crawl result, or an earlier run selected
with --run, without contacting the platform.

Examples:
  # CSV of the last crawl
  tgsimilar export --format csv -o similar.csv

  # Markdown report of an earlier run (see "tgsimilar history")
  tgsimilar export --run 6f1c... --format markdown`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}
	cmd.Flags().String("run", "", "Run ID to export instead of the last result")
	addReportFlags(cmd)
	addDBFlag(cmd)
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
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

	var run *model.CrawlRun
	if id := stringFlag(cmd, "run"); id != "" {
		if run, err = store.GetRun(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to load run %s: %w", id, err)
		}
		if run == nil {
			return fmt.Errorf("run not found: %s", id)
		}
	} else {
		if run, err = store.LoadLastResult(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load last result: %w", err)
		}
		if run == nil {
			return service.ErrNoResults
		}
	}

	return writeReport(cmd, cfg, run)
}
