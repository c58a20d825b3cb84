// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AntanasZilinskas/fd2p/domain/repository"
	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/domain/title"
	"github.com/AntanasZilinskas/fd2p/internal/config"
	"golang.org/x/sync/errgroup"
)

// BackfillResult summarises one backfill run.
type BackfillResult struct {
	// Batches is the number of non-empty fetches.
	Batches int
	// Fetched is the number of records read.
	Fetched int
	// Embedded is the number of embeddings written.
	Embedded int
	// Failed is the number of records whose embedding could not be generated.
	Failed int
}

// EmbeddingOption configures an Embedding service.
type EmbeddingOption func(*Embedding)

// WithBatchSize sets how many records are fetched per batch.
func WithBatchSize(n int) EmbeddingOption {
	return func(s *Embedding) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithConcurrency bounds the embedding calls in flight within a batch.
func WithConcurrency(n int) EmbeddingOption {
	return func(s *Embedding) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDimension rejects vectors whose length differs from n. Zero disables the check.
func WithDimension(n int) EmbeddingOption {
	return func(s *Embedding) {
		if n >= 0 {
			s.dimension = n
		}
	}
}

// Embedding computes title embeddings and writes them back to the store.
type Embedding struct {
	store       title.Store
	embedder    search.Embedder
	logger      *slog.Logger
	batchSize   int
	concurrency int
	dimension   int
	running     chan struct{}
}

// NewEmbedding creates a new Embedding service.
func NewEmbedding(store title.Store, embedder search.Embedder, logger *slog.Logger, opts ...EmbeddingOption) (*Embedding, error) {
	if store == nil {
		return nil, fmt.Errorf("NewEmbedding: nil store")
	}
	if embedder == nil {
		return nil, fmt.Errorf("NewEmbedding: nil embedder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Embedding{
		store:       store,
		embedder:    embedder,
		logger:      logger,
		batchSize:   config.DefaultBatchSize,
		concurrency: config.DefaultBatchConcurrency,
		dimension:   config.DefaultEmbeddingDimension,
		running:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EmbedRecord embeds a single record's title and stores it on that record.
// Nothing is retried. A missing row is logged and is not an error.
func (s *Embedding) EmbedRecord(ctx context.Context, record title.Record) error {
	if record.ID() <= 0 {
		return fmt.Errorf("%w: record id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(record.Title()) == "" {
		return fmt.Errorf("%w: record %d has no title", ErrInvalidInput, record.ID())
	}

	vector, err := s.embed(ctx, record.Title())
	if err != nil {
		return fmt.Errorf("record %d: %w", record.ID(), err)
	}

	affected, err := s.store.UpdateEmbedding(ctx, record.ID(), vector)
	if err != nil {
		return fmt.Errorf("%w: record %d: %w", ErrWrite, record.ID(), err)
	}
	if affected == 0 {
		s.logger.Warn("no record updated", slog.Int64("id", record.ID()))
		return nil
	}

	s.logger.Debug("record embedded", slog.Int64("id", record.ID()))
	return nil
}

// Backfill embeds every record that has no embedding, one batch at a time,
// until a fetch returns fewer rows than the batch size. Records that fail
// are logged and left without an embedding. Each fetch starts after the
// last id of the previous batch, so failed records are not fetched again
// in the same run. Concurrent calls wait for the running one to finish.
func (s *Embedding) Backfill(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult

	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	case <-ctx.Done():
		return result, ctx.Err()
	}

	var cursor []repository.Option
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		options := append([]repository.Option{
			title.WithoutEmbedding(),
			repository.WithOrderAsc(title.ColumnID),
			repository.WithLimit(s.batchSize),
		}, cursor...)
		records, err := s.store.Find(ctx, options...)
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if len(records) == 0 {
			break
		}

		result.Batches++
		result.Fetched += len(records)
		cursor = []repository.Option{title.WithIDAfter(records[len(records)-1].ID())}

		embeddings, batchFailed := s.embedBatch(ctx, records)
		result.Failed += len(batchFailed)

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if len(embeddings) > 0 {
			if err := s.store.SaveEmbeddings(ctx, embeddings); err != nil {
				return result, fmt.Errorf("%w: batch %d: %w", ErrWrite, result.Batches, err)
			}
			result.Embedded += len(embeddings)
		}

		s.logger.Info("batch embedded",
			slog.Int("batch", result.Batches),
			slog.Int("fetched", len(records)),
			slog.Int("embedded", len(embeddings)),
			slog.Int("failed", len(batchFailed)),
		)

		if len(records) < s.batchSize {
			break
		}
	}

	s.logger.Info("backfill complete",
		slog.Int("batches", result.Batches),
		slog.Int("embedded", result.Embedded),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// embedBatch embeds every record concurrently. Each task records its own
// outcome, so one failure never cancels the others.
func (s *Embedding) embedBatch(ctx context.Context, records []title.Record) ([]title.Embedding, []int64) {
	vectors := make([][]float64, len(records))
	errs := make([]error, len(records))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			if strings.TrimSpace(rec.Title()) == "" {
				errs[i] = fmt.Errorf("%w: blank title", ErrInvalidInput)
				return nil
			}
			vectors[i], errs[i] = s.embed(ctx, rec.Title())
			return nil
		})
	}
	_ = g.Wait()

	embeddings := make([]title.Embedding, 0, len(records))
	var failed []int64
	for i, rec := range records {
		if errs[i] != nil {
			s.logger.Error("failed to embed record",
				slog.Int64("id", rec.ID()),
				slog.String("error", errs[i].Error()),
			)
			failed = append(failed, rec.ID())
			continue
		}
		embeddings = append(embeddings, title.NewEmbedding(rec.ID(), rec.Title(), vectors[i]))
	}
	return embeddings, failed
}

// embed returns the vector for one text, checking its shape.
func (s *Embedding) embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbed, len(vectors))
	}
	vector := vectors[0]
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrEmbed)
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, errors.Join(ErrEmbed, fmt.Errorf("dimension %d, expected %d", len(vector), s.dimension))
	}
	return vector, nil
}
