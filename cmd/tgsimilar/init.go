package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/tgsimilar/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/tgsimilar.yaml
var configTemplate embed.FS

const templatePath = "templates/tgsimilar.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a tgsimilar configuration file",
		Long: `Init writes a commented .tgsimilar configuration file.

The file documents credentials, gateway, crawl pacing, proxy, database and
server settings. Credentials may also stay in the environment or a .env file.

Examples:
  # Create .tgsimilar in current directory
  tgsimilar init

  # Create config file at a specific path
  tgsimilar init -o ~/.tgsimilar

  # Force overwrite existing file
  tgsimilar init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold the API hash.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nSet your credentials in the telegram section or export:")
	fmt.Fprintf(out, "  %s, %s, %s\n", config.EnvAPIID, config.EnvAPIHash, config.EnvPhone)
	return nil
}
