package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AntanasZilinskas/fd2p"
	"github.com/AntanasZilinskas/fd2p/infrastructure/provider"
	"github.com/AntanasZilinskas/fd2p/internal/config"
)

// clientOptions returns the fd2p.Option slice derived from AppConfig.
// Callers append entrypoint-specific options before passing the slice to fd2p.New.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) ([]fd2p.Option, error) {
	opts := []fd2p.Option{
		fd2p.WithDatabaseURL(cfg.DBURL()),
		fd2p.WithDataDir(cfg.DataDir()),
		fd2p.WithModelDir(cfg.ModelDir()),
		fd2p.WithLogger(logger),
		fd2p.WithStoreConfig(cfg.Store()),
		fd2p.WithBatchConfig(cfg.Batch()),
		fd2p.WithSearchDefaults(cfg.SearchTopN(), cfg.SearchMaxResults()),
		fd2p.WithEmbeddingDimension(cfg.EmbeddingDimension()),
	}

	embOpts, err := embeddingOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding config: %w", err)
	}
	return append(opts, embOpts...), nil
}

// embeddingOptions returns the options for the remote embedding provider when
// the endpoint is configured, or nothing so the built-in model is used.
func embeddingOptions(cfg config.AppConfig) ([]fd2p.Option, error) {
	endpoint := cfg.EmbeddingEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, nil
	}

	openaiCfg := provider.OpenAIConfig{
		APIKey:     endpoint.APIKey(),
		BaseURL:    endpoint.BaseURL(),
		Model:      endpoint.Model(),
		Timeout:    endpoint.Timeout(),
		MaxRetries: endpoint.MaxRetries(),
	}

	var opts []fd2p.Option
	if cacheDir := cfg.HTTPCacheDir(); cacheDir != "" {
		transport, err := provider.NewCachingTransport(cacheDir, nil)
		if err != nil {
			return nil, fmt.Errorf("http cache: %w", err)
		}
		openaiCfg.HTTPClient = &http.Client{
			Timeout:   endpoint.Timeout(),
			Transport: transport,
		}
		opts = append(opts, fd2p.WithCloser(transport))
	}

	return append(opts, fd2p.WithOpenAIConfig(openaiCfg)), nil
}
