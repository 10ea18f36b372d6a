package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/tgsimilar/internal/config"
	"github.com/nao1215/tgsimilar/internal/crawler"
	"github.com/nao1215/tgsimilar/internal/database"
	tglog "github.com/nao1215/tgsimilar/internal/log"
	"github.com/nao1215/tgsimilar/internal/model"
	"github.com/nao1215/tgsimilar/internal/platform"
	"github.com/nao1215/tgsimilar/internal/report"
	"github.com/nao1215/tgsimilar/internal/transport"
	"github.com/spf13/cobra"
)

// addCrawlFlags registers the flags shared by crawl and serve.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().String("gateway", "", "Account gateway base URL")
	cmd.Flags().IntP("concurrency", "c", 0, "Number of channels crawled in parallel")
	cmd.Flags().String("delay", "", "Pause between channels, seconds or duration (e.g. 3, 1.5s)")
	cmd.Flags().Int("max-retries", -1, "Transient retries per channel")
	cmd.Flags().Duration("request-timeout", 0, "Timeout of a single platform call")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon and route traffic through it")
	cmd.Flags().Bool("enrich", false, "Read public channel pages for missing member counts")
	addDBFlag(cmd)
}

// addDBFlag registers --db-dir.
func addDBFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "", "Database directory (default: $XDG_DATA_HOME/tgsimilar)")
}

// addReportFlags registers the export flags shared by crawl and export.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", config.DefaultReportFormat, "Report format: csv, markdown, json, text")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
}

// buildConfig layers defaults, .env, the config file, the environment and
// finally explicitly set flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	cfg.ConfigFilePath = stringFlag(cmd, "config")
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.ApplyFile(f)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.LogJSON = boolFlag(cmd, "log-json")

	if flags.Changed("gateway") {
		cfg.GatewayURL = stringFlag(cmd, "gateway")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency") //nolint:errcheck // registered by addCrawlFlags
	}
	if flags.Changed("delay") {
		d, err := config.ParseDelay(stringFlag(cmd, "delay"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", config.ErrInvalidDelay, stringFlag(cmd, "delay"))
		}
		cfg.Delay = d
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries, _ = flags.GetInt("max-retries") //nolint:errcheck // registered by addCrawlFlags
	}
	if flags.Changed("request-timeout") {
		cfg.RequestTimeout, _ = flags.GetDuration("request-timeout") //nolint:errcheck // registered by addCrawlFlags
	}
	if flags.Changed("proxy") {
		cfg.ProxyAddress = stringFlag(cmd, "proxy")
	}
	if flags.Changed("tor") {
		cfg.EmbeddedTor = boolFlag(cmd, "tor")
	}
	if flags.Changed("enrich") {
		cfg.EnrichMembers = boolFlag(cmd, "enrich")
	}
	if flags.Changed("code") {
		cfg.LoginCode = stringFlag(cmd, "code")
	}
	if flags.Changed("db-dir") {
		cfg.DBDir = stringFlag(cmd, "db-dir")
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = stringFlag(cmd, "listen")
	}
	if flags.Changed("format") {
		cfg.ReportFormat = stringFlag(cmd, "format")
	}
	if flags.Changed("output") {
		cfg.ReportFile = stringFlag(cmd, "output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringFlag returns the flag value, or "" when the command does not have it.
func stringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// boolFlag returns the flag value, or false when the command does not have it.
func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// setupLogger creates the masked logger and makes it the default.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := tglog.New(w, tglog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogJSON,
		Level:   slog.LevelInfo,
	})
	slog.SetDefault(logger)
	return logger
}

// policyFromConfig converts the crawl settings into a crawler policy.
func policyFromConfig(cfg *config.Config) crawler.Policy {
	return crawler.Policy{
		Concurrency:    cfg.Concurrency,
		Delay:          cfg.Delay,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		MaxBackoff:     cfg.MaxBackoff,
		AttemptCeiling: cfg.AttemptCeiling,
		RequestTimeout: cfg.RequestTimeout,
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// openTransport builds the HTTP transport selected by cfg.
func openTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*transport.Transport, error) {
	t, err := transport.New(ctx, transport.Options{
		ProxyAddress:      cfg.ProxyAddress,
		EmbeddedTor:       cfg.EmbeddedTor,
		TorStartupTimeout: cfg.TorStartupTimeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up transport: %w", err)
	}
	return t, nil
}

// newPlatformClient creates the gateway client. auth answers login prompts.
func newPlatformClient(cfg *config.Config, t *transport.Transport, auth platform.Authenticator, logger *slog.Logger) (*platform.GatewayClient, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	creds := platform.Credentials{
		APIID:       cfg.APIID,
		APIHash:     cfg.APIHash,
		Phone:       cfg.Phone,
		SessionName: cfg.SessionName,
	}
	opts := []platform.GatewayOption{
		platform.WithHTTPClient(t.HTTPClient()),
		platform.WithAuthenticator(auth),
		platform.WithUserAgent(cfg.UserAgent),
		platform.WithLogger(logger),
	}
	if cfg.EnrichMembers {
		opts = append(opts, platform.WithEnricher(
			platform.NewProfileEnricher(t.HTTPClient(), "", cfg.UserAgent)))
	}
	return platform.NewGatewayClient(cfg.GatewayURL, creds, opts...)
}

// crawlAuthenticator answers login prompts from cfg when a code or password
// was given, and on the terminal otherwise.
func crawlAuthenticator(cmd *cobra.Command, cfg *config.Config) platform.Authenticator {
	if cfg.LoginCode != "" || cfg.LoginPassword != "" {
		return platform.StaticAuthenticator{
			LoginCode:     cfg.LoginCode,
			LoginPassword: cfg.LoginPassword,
		}
	}
	return platform.NewPromptAuthenticator(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// openStore opens the database in cfg.DBDir.
func openStore(cfg *config.Config) (*database.Store, error) {
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// openExistingStore opens the database without creating it.
func openExistingStore(cfg *config.Config) (*database.Store, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	store, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return nil, fmt.Errorf("no crawl data found (run \"tgsimilar crawl\" first): %w", err)
	}
	return store, nil
}

// writeReport writes run in the configured format to cfg.ReportFile or stdout.
// A file in a machine format is paired with the text summary on stdout.
func writeReport(cmd *cobra.Command, cfg *config.Config, run *model.CrawlRun) error {
	if cfg.ReportFile == "" {
		w, err := report.NewWriter(cfg.ReportFormat, cmd.OutOrStdout(), cfg.Verbose)
		if err != nil {
			return err
		}
		_, err = w.Write(run)
		return err
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w, err := report.NewWriter(cfg.ReportFormat, f, cfg.Verbose)
	if err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return err
	}
	if cfg.ReportFormat != report.FormatText {
		w = report.NewMultiWriter(w, report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(cfg.Verbose)))
	}
	if _, err := w.Write(run); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", cfg.ReportFile)
	return nil
}

// closeWith closes c and logs failures.
func closeWith(logger *slog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Warn("failed to close "+what, "error", err)
	}
}
