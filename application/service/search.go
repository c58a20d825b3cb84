package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/internal/config"
)

// SearchOption configures a Search service.
type SearchOption func(*Search)

// WithDefaultTopN sets the similarity result count used when a caller passes none.
func WithDefaultTopN(n int) SearchOption {
	return func(s *Search) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithDefaultMaxResults sets the lexical result count used when a caller passes none.
func WithDefaultMaxResults(n int) SearchOption {
	return func(s *Search) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// Search answers title queries. Rows come back exactly as the index produced them.
type Search struct {
	embedder   search.Embedder
	similarity search.SimilarityIndex
	lexical    search.LexicalIndex
	logger     *slog.Logger
	topN       int
	maxResults int
}

// NewSearch creates a new Search service.
func NewSearch(
	embedder search.Embedder,
	similarity search.SimilarityIndex,
	lexical search.LexicalIndex,
	logger *slog.Logger,
	opts ...SearchOption,
) (*Search, error) {
	if embedder == nil {
		return nil, fmt.Errorf("NewSearch: nil embedder")
	}
	if similarity == nil {
		return nil, fmt.Errorf("NewSearch: nil similarity index")
	}
	if lexical == nil {
		return nil, fmt.Errorf("NewSearch: nil lexical index")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Search{
		embedder:   embedder,
		similarity: similarity,
		lexical:    lexical,
		logger:     logger,
		topN:       config.DefaultSearchTopN,
		maxResults: config.DefaultSearchMaxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Similar embeds query once and returns the topN closest titles.
// A non-positive topN uses the default.
func (s *Search) Similar(ctx context.Context, query string, topN int) ([]search.Row, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topN <= 0 {
		topN = s.topN
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbed, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: no vector for query", ErrEmbed)
	}

	rows, err := s.similarity.MatchSimilar(ctx, vectors[0], topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	s.logger.Debug("similar titles", slog.Int("top_n", topN), slog.Int("rows", len(rows)))
	return nonNil(rows), nil
}

// Lexical returns up to maxResults titles matching query text.
// A non-positive maxResults uses the default.
func (s *Search) Lexical(ctx context.Context, query string, maxResults int) ([]search.Row, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	rows, err := s.lexical.SearchTitles(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	s.logger.Debug("title search", slog.Int("max_results", maxResults), slog.Int("rows", len(rows)))
	return nonNil(rows), nil
}

// nonNil makes an empty result encode as [] rather than null.
func nonNil(rows []search.Row) []search.Row {
	if rows == nil {
		return []search.Row{}
	}
	return rows
}
