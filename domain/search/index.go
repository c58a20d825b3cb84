package search

import "context"

// Row is one result row exactly as the backing store returned it.
// Column names and value types are the store's, not ours.
type Row map[string]any

// SimilarityIndex ranks stored titles by vector closeness.
type SimilarityIndex interface {
	// MatchSimilar returns at most topN rows closest to vector, best first.
	MatchSimilar(ctx context.Context, vector []float64, topN int) ([]Row, error)
}

// LexicalIndex matches stored titles by text.
type LexicalIndex interface {
	// SearchTitles returns at most maxResults rows matching query.
	SearchTitles(ctx context.Context, query string, maxResults int) ([]Row, error)
}
