package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AntanasZilinskas/fd2p"
	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/internal/log"
	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		envFile string
		limit   int
		text    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find titles similar to a query",
		Long: `Find titles semantically similar to a query and print them as JSON.

With --text the titles containing the query are returned instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, envFile, strings.Join(args, " "), limit, text)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of results (default: SEARCH_TOP_N or SEARCH_MAX_RESULTS)")
	cmd.Flags().BoolVar(&text, "text", false, "Match title text instead of meaning")

	return cmd
}

func runSearch(cmd *cobra.Command, envFile, query string, limit int, text bool) error {
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

	client, err := fd2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create fd2p client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close fd2p client", slog.Any("error", err))
		}
	}()

	ctx := context.Background()
	var rows []search.Row
	if text {
		rows, err = client.Search.Lexical(ctx, query, limit)
	} else {
		rows, err = client.Search.Similar(ctx, query, limit)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
