package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tgsimilar.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tgsimilar",
		Short: "Collect similar channel recommendations for Telegram channels",
		Long: `tgsimilar asks the platform which channels it recommends as similar to each
channel of a list, and exports the discovered channels as CSV, Markdown, JSON
or plain text.

Credentials are read from the environment (TELEGRAM_API_ID, TELEGRAM_API_HASH,
TELEGRAM_PHONE), from a .env file in the current directory, or from the
.tgsimilar configuration file created by "tgsimilar init".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (default: .tgsimilar)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewChannelsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
