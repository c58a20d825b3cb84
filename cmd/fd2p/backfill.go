package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AntanasZilinskas/fd2p"
	"github.com/AntanasZilinskas/fd2p/internal/log"
	"github.com/spf13/cobra"
)

func backfillCmd() *cobra.Command {
	var (
		envFile     string
		batchSize   int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed every record that has no title embedding",
		Long: `Embed every record that has no title embedding, one batch at a time.

Records whose embedding fails are logged and left empty for the next run.
Interrupting the command stops it between batches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd, envFile, batchSize, concurrency)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per batch (default: BATCH_SIZE)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent embeddings per batch (default: BATCH_CONCURRENCY)")

	return cmd
}

func runBackfill(cmd *cobra.Command, envFile string, batchSize, concurrency int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	slogger := log.NewLogger(cfg).Slog()

	opts, err := clientOptions(cfg, slogger)
	if err != nil {
		return err
	}
	batch := cfg.Batch()
	if batchSize > 0 {
		batch = batch.WithSize(batchSize)
	}
	if concurrency > 0 {
		batch = batch.WithConcurrency(concurrency)
	}
	opts = append(opts, fd2p.WithBatchConfig(batch))

	client, err := fd2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create fd2p client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close fd2p client", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := client.Embeddings.Backfill(ctx)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "batches: %d  fetched: %d  embedded: %d  failed: %d\n",
		result.Batches, result.Fetched, result.Embedded, result.Failed)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	return nil
}
