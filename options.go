package fd2p

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/AntanasZilinskas/fd2p/infrastructure/provider"
	"github.com/AntanasZilinskas/fd2p/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL             string
	dataDir           string
	modelDir          string
	store             config.StoreConfig
	batch             config.BatchConfig
	searchTopN        int
	searchMaxResults  int
	dimension         int
	dimensionSet      bool
	embeddingProvider provider.Provider
	logger            *slog.Logger
	periodicBackfill  config.PeriodicBackfillConfig
	closers           []io.Closer
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:          config.DefaultDataDir(),
		store:            config.NewStoreConfig(),
		batch:            config.NewBatchConfig(),
		searchTopN:       config.DefaultSearchTopN,
		searchMaxResults: config.DefaultSearchMaxResults,
		dimension:        config.DefaultEmbeddingDimension,
		periodicBackfill: config.NewPeriodicBackfillConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite stores titles in a SQLite file. Similarity and text search run
// in process.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		if path != ":memory:" {
			path = filepath.Clean(path)
		}
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres stores titles in PostgreSQL. Searches call the configured
// database functions.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) { c.dbURL = dsn }
}

// WithDatabaseURL selects the store by URL scheme: sqlite:///, postgres:// or postgresql://.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) { c.dbURL = url }
}

// WithOpenAI embeds through the OpenAI API.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = provider.NewOpenAIProvider(apiKey)
	}
}

// WithOpenAIConfig embeds through an OpenAI-compatible API.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = provider.NewOpenAIProviderFromConfig(cfg)
	}
}

// WithEmbeddingProvider sets a custom embedding provider.
func WithEmbeddingProvider(p provider.Provider) Option {
	return func(c *clientConfig) { c.embeddingProvider = p }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) { c.dataDir = dir }
}

// WithModelDir sets where the built-in model is looked up.
// Defaults to {dataDir}/models.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) { c.modelDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithStoreConfig sets the table and database function names.
func WithStoreConfig(s config.StoreConfig) Option {
	return func(c *clientConfig) { c.store = s }
}

// WithBatchConfig sets the backfill batch size and concurrency.
func WithBatchConfig(b config.BatchConfig) Option {
	return func(c *clientConfig) { c.batch = b }
}

// WithSearchDefaults sets the result counts used when a request gives none.
func WithSearchDefaults(topN, maxResults int) Option {
	return func(c *clientConfig) {
		if topN > 0 {
			c.searchTopN = topN
		}
		if maxResults > 0 {
			c.searchMaxResults = maxResults
		}
	}
}

// WithEmbeddingDimension sets the expected vector length. Zero disables the check.
func WithEmbeddingDimension(n int) Option {
	return func(c *clientConfig) {
		if n >= 0 {
			c.dimension = n
			c.dimensionSet = true
		}
	}
}

// WithPeriodicBackfillConfig sets the periodic backfill schedule.
func WithPeriodicBackfillConfig(cfg config.PeriodicBackfillConfig) Option {
	return func(c *clientConfig) { c.periodicBackfill = cfg }
}

// WithCloser registers a resource to close with the client.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) {
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}
}
