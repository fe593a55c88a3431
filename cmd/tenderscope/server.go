package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/tenderscope/internal/api"
	"github.com/kalambet/tenderscope/internal/config"
	"github.com/kalambet/tenderscope/internal/embedding"
	"github.com/kalambet/tenderscope/internal/logging"
	"github.com/kalambet/tenderscope/internal/ollama"
	"github.com/kalambet/tenderscope/internal/pipeline"
	"github.com/kalambet/tenderscope/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serve search_tenders, pipeline_health, run_validation and list_tenders
over the Model Context Protocol using stdio. Logs go to stderr.

Example MCP client configuration:
  {
    "mcpServers": {
      "tenderscope": {"command": "/path/to/tenderscope", "args": ["mcp"]}
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

// openService loads the persisted dataset and returns a started pipeline.
// The returned close function releases storage.
func openService(ctx context.Context, cfg config.Config, logger *slog.Logger, progress io.Writer) (*pipeline.Service, func(), error) {
	emb, err := embedding.New(embedding.Config{
		Provider:      cfg.Embedding.Provider,
		Dimensions:    cfg.Embedding.Dimensions,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OllamaModel:   cfg.Ollama.EmbedModel,
	})
	if err != nil {
		return nil, nil, err
	}
	if oe, ok := emb.(*embedding.OllamaEmbedder); ok {
		if err := ollama.EnsureReady(ctx, oe.Client(), oe.Model(), progress); err != nil {
			return nil, nil, err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	if versions, err := store.AppliedMigrations(); err == nil && len(versions) > 0 {
		logger.Debug("storage ready", "dir", cfg.Storage.DataDir, "schema_version", versions[len(versions)-1])
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}

	svc := pipeline.New(store, emb, pipeline.Options{
		ChunkSize:        cfg.Ingest.ChunkSize,
		HealthyThreshold: cfg.Quality.HealthyThreshold,
		Logger:           logger,
	})
	if err := svc.Start(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, "tenderscope", cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting", "version", version, "embedding", cfg.Embedding.Provider, "dimensions", cfg.Embedding.Dimensions)

	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(localURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		printWarning("tenderscope is already running on %s", cfg.Addr())
		return fmt.Errorf("server already running on %s", cfg.Addr())
	}

	svc, closeStore, err := openService(ctx, cfg, logger, os.Stderr)
	if err != nil {
		return err
	}
	defer closeStore()

	go pipeline.NewRevalidator(svc, cfg.RevalidateEvery()).Run(ctx)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewHandler(api.Deps{
			Pipeline:            svc,
			Logger:              logger,
			Version:             version,
			MaxUploadBytes:      int64(cfg.Ingest.MaxUploadBytes),
			MaxSearchLimit:      cfg.Search.MaxLimit,
			IngestRatePerMinute: cfg.Server.IngestRatePerMinute,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, "tenderscope-mcp", cfg.Log.Level)
	slog.SetDefault(logger)

	svc, closeStore, err := openService(ctx, cfg, logger, os.Stderr)
	if err != nil {
		return err
	}
	defer closeStore()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Pipeline:       svc,
		Version:        version,
		MaxSearchLimit: cfg.Search.MaxLimit,
	})
	logger.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
