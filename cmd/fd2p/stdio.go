package main

import (
	"fmt"
	"log/slog"

	"github.com/AntanasZilinskas/fd2p"
	"github.com/AntanasZilinskas/fd2p/internal/log"
	"github.com/AntanasZilinskas/fd2p/internal/mcp"
	"github.com/spf13/cobra"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants search song titles by meaning or by text.
Configuration is loaded from environment variables and .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Logs go to stderr; stdout carries the protocol.
	slogger := log.NewLogger(cfg).Slog()

	slogger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

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

	return mcp.NewServer(client.Search, version, slogger).ServeStdio()
}
