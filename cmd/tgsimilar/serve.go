package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/tgsimilar/internal/api"
	"github.com/nao1215/tgsimilar/internal/config"
	"github.com/nao1215/tgsimilar/internal/crawler"
	"github.com/nao1215/tgsimilar/internal/platform"
	"github.com/nao1215/tgsimilar/internal/service"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve starts the HTTP API:

  GET  /health                 service status and pending login prompt
  PUT  /api/channels           store a channel list (JSON or file upload)
  GET  /api/channels           stored channel list
  POST /api/run-crawler        crawl the stored list
  GET  /api/results            last result
  GET  /export-csv             last result as CSV download
  GET  /api/runs[/:id]         run history
  GET  /api/discovered         stored recommendations, ?source= filters
  POST /api/auth/code          answer a login code prompt
  POST /api/auth/password      answer a two-step password prompt

Login prompts raised by the gateway are answered through /api/auth/*.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().String("listen", config.DefaultListenAddr, "Address of the HTTP API")
	addCrawlFlags(cmd)
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	ctx, cancel := signalContext(logger)
	defer cancel()

	t, err := openTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWith(logger, "transport", t)

	auth := platform.NewPendingAuthenticator()
	client, err := newPlatformClient(cfg, t, auth, logger)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeWith(logger, "database", store)

	orch := crawler.New(client, crawler.WithLogger(logger))
	svc := service.New(store, orch, policyFromConfig(cfg), service.WithLogger(logger))
	handler := api.NewHandler(svc,
		api.WithHistory(store),
		api.WithAuthenticator(auth),
		api.WithLogger(logger),
	)

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.NewServer(handler)

	logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "database", store.Path(), "transport", t.Mode())
	if err := api.ListenAndServe(ctx, cfg.ListenAddr, engine, shutdownTimeout); err != nil {
		return fmt.Errorf("failed to serve %s: %w", cfg.ListenAddr, err)
	}
	logger.Info("HTTP API stopped")
	return nil
}
