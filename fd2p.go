// Package fd2p embeds song titles and searches them by meaning or by text.
//
// Titles live in a relational table with a nullable vector column. The
// client fills missing vectors in batches, embeds single rows on demand, and
// answers similarity and lexical queries.
//
// Basic usage:
//
//	client, err := fd2p.New(
//	    fd2p.WithPostgres(os.Getenv("DB_URL")),
//	    fd2p.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Embed every title that has no vector yet
//	result, err := client.Embeddings.Backfill(ctx)
//
//	// Nearest titles to a phrase
//	rows, err := client.Search.Similar(ctx, "lonely", 5)
package fd2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/AntanasZilinskas/fd2p/application/service"
	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/infrastructure/persistence"
	"github.com/AntanasZilinskas/fd2p/infrastructure/provider"
	"github.com/AntanasZilinskas/fd2p/internal/config"
	"github.com/AntanasZilinskas/fd2p/internal/database"
)

// Client is the main entry point for the fd2p library.
//
// Access operations via struct fields:
//
//	client.Embeddings.Backfill(ctx)
//	client.Embeddings.EmbedRecord(ctx, title.NewRecord(id, name))
//	client.Search.Similar(ctx, "query", 5)
type Client struct {
	Embeddings *service.Embedding
	Search     *service.Search

	db       database.Database
	periodic *service.PeriodicBackfill
	provider provider.Provider
	closers  []io.Closer

	logger *slog.Logger
	closed atomic.Bool
	mu     sync.Mutex
}

// New creates a new Client with the given options. When periodic backfill
// is enabled it starts immediately.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, errors.Join(err, closeClosers(cfg.closers))
	}

	embeddingProvider, err := resolveProvider(cfg, dataDir, logger)
	if err != nil {
		return nil, errors.Join(err, closeClosers(cfg.closers))
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open database: %w", err), closeAll(embeddingProvider, cfg.closers))
	}

	// fail releases everything opened so far.
	fail := func(err error) (*Client, error) {
		return nil, errors.Join(err, closeAll(embeddingProvider, cfg.closers), db.Close())
	}

	if err := persistence.PrepareSchema(ctx, db, cfg.store.Table(), cfg.dimension); err != nil {
		return fail(fmt.Errorf("prepare schema: %w", err))
	}

	store, err := persistence.NewTitleStore(db, cfg.store.Table(), logger)
	if err != nil {
		return fail(fmt.Errorf("title store: %w", err))
	}

	similarity, lexical, err := buildIndexes(db, cfg.store)
	if err != nil {
		return fail(fmt.Errorf("search indexes: %w", err))
	}

	embedder := provider.NewTextEmbedder(embeddingProvider)

	embeddings, err := service.NewEmbedding(store, embedder, logger,
		service.WithBatchSize(cfg.batch.Size()),
		service.WithConcurrency(cfg.batch.Concurrency()),
		service.WithDimension(cfg.dimension),
	)
	if err != nil {
		return fail(fmt.Errorf("embedding service: %w", err))
	}

	searchSvc, err := service.NewSearch(embedder, similarity, lexical, logger,
		service.WithDefaultTopN(cfg.searchTopN),
		service.WithDefaultMaxResults(cfg.searchMaxResults),
	)
	if err != nil {
		return fail(fmt.Errorf("search service: %w", err))
	}

	client := &Client{
		Embeddings: embeddings,
		Search:     searchSvc,
		db:         db,
		periodic:   service.NewPeriodicBackfill(cfg.periodicBackfill, embeddings, logger),
		provider:   embeddingProvider,
		closers:    cfg.closers,
		logger:     logger,
	}

	client.periodic.Start(ctx)

	logger.Info("fd2p client ready",
		slog.String("table", cfg.store.Table()),
		slog.Bool("postgres", db.IsPostgres()),
		slog.Int("batch_size", cfg.batch.Size()),
		slog.Int("batch_concurrency", cfg.batch.Concurrency()),
	)
	return client, nil
}

// resolveProvider returns the configured provider, or the built-in model
// when none is configured.
func resolveProvider(cfg *clientConfig, dataDir string, logger *slog.Logger) (provider.Provider, error) {
	if cfg.embeddingProvider != nil {
		return cfg.embeddingProvider, nil
	}

	modelDir := cfg.modelDir
	if modelDir == "" {
		modelDir = filepath.Join(dataDir, config.DefaultModelSubdir)
	}

	local := provider.NewLocalEmbedding(modelDir)
	if !local.Available() {
		return nil, fmt.Errorf("%w: nothing in %s; run 'fd2p download-model' or configure EMBEDDING_ENDPOINT_BASE_URL", ErrNoEmbeddingModel, modelDir)
	}
	if cfg.dimensionSet && cfg.dimension != 0 && cfg.dimension != provider.LocalModelDimension {
		return nil, fmt.Errorf("%w: built-in model produces %d, configured %d",
			persistence.ErrDimensionMismatch, provider.LocalModelDimension, cfg.dimension)
	}

	logger.Info("built-in embedding provider enabled", slog.String("model_dir", modelDir))
	return local, nil
}

// buildIndexes picks the search backends for the database. PostgreSQL calls
// the stored functions; SQLite searches in process.
func buildIndexes(db database.Database, store config.StoreConfig) (search.SimilarityIndex, search.LexicalIndex, error) {
	if db.IsPostgres() {
		similarity, err := persistence.NewMatchFunction(db, store.MatchFunction())
		if err != nil {
			return nil, nil, err
		}
		lexical, err := persistence.NewTextSearchFunction(db, store.TextSearchFunction())
		if err != nil {
			return nil, nil, err
		}
		return similarity, lexical, nil
	}

	similarity, err := persistence.NewLocalSimilarityIndex(db, store.Table())
	if err != nil {
		return nil, nil, err
	}
	lexical, err := persistence.NewLocalLexicalIndex(db, store.Table())
	if err != nil {
		return nil, nil, err
	}
	return similarity, lexical, nil
}

// Close stops the periodic backfill and releases all resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.periodic.Stop()

	if err := closeAll(c.provider, c.closers); err != nil {
		c.logger.Error("failed to release resources", slog.Any("error", err))
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("fd2p client closed")
	return nil
}

// closeAll closes the provider and then every closer, joining their errors.
func closeAll(p provider.Provider, closers []io.Closer) error {
	return errors.Join(p.Close(), closeClosers(closers))
}

func closeClosers(closers []io.Closer) error {
	errs := make([]error, 0, len(closers))
	for _, closer := range closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
