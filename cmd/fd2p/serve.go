package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntanasZilinskas/fd2p"
	"github.com/AntanasZilinskas/fd2p/infrastructure/api"
	apimiddleware "github.com/AntanasZilinskas/fd2p/infrastructure/api/middleware"
	"github.com/AntanasZilinskas/fd2p/internal/config"
	"github.com/AntanasZilinskas/fd2p/internal/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.fd2p)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/fd2p.db)
  DB_PASSWORD                  Password used when a Postgres DB_URL has none
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)

  TITLES_TABLE                 Record table (default: music_features)
  MATCH_FUNCTION               Similarity function (default: match_similar_songs)
  TEXT_SEARCH_FUNCTION         Text search function (default: search_songs_by_title)
  BATCH_SIZE                   Records per backfill batch (default: 25)
  BATCH_CONCURRENCY            Concurrent embeddings per batch (default: 4)
  SEARCH_TOP_N                 Default similar titles returned (default: 5)
  SEARCH_MAX_RESULTS           Default text search results (default: 10)
  EMBEDDING_DIMENSION          Expected vector length, 0 disables (default: 384)

  EMBEDDING_ENDPOINT_*         Remote embedding service; built-in model when unset
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 0)
  MODEL_DIR                    Built-in model directory (default: {data_dir}/models)
  HTTP_CACHE_DIR               Cache remote embedding responses on disk

  PERIODIC_BACKFILL_ENABLED    Backfill on a timer (default: false)
  PERIODIC_BACKFILL_INTERVAL_SECONDS  Backfill interval (default: 3600)
  CORS_ALLOWED_ORIGINS         Comma-separated browser origins (default: *)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	slogger := log.Configure(cfg).Slog()

	opts, err := clientOptions(cfg, slogger)
	if err != nil {
		return err
	}
	opts = append(opts, fd2p.WithPeriodicBackfillConfig(cfg.PeriodicBackfill()))

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting fd2p", attrs...)

	client, err := fd2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create fd2p client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close fd2p client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client, version, cfg.CORSAllowedOrigins())
	router := apiServer.Router()

	// Middleware must be added before MountRoutes.
	router.Use(apimiddleware.Logging(slogger))
	apiServer.MountRoutes()

	server := api.NewServer(cfg.Addr(), slogger)
	server.Router().Mount("/", router)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
