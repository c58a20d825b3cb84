package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/domain/title"
	"github.com/AntanasZilinskas/fd2p/internal/database"
)

// LocalSimilarityIndex ranks titles by cosine similarity in process. It is
// the stand-in for the match function on databases without pgvector.
type LocalSimilarityIndex struct {
	repo database.Repository[title.Record, TitleModel]
}

// NewLocalSimilarityIndex creates a LocalSimilarityIndex over table.
func NewLocalSimilarityIndex(db database.Database, table string) (*LocalSimilarityIndex, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	return &LocalSimilarityIndex{
		repo: database.NewRepositoryForTable[title.Record, TitleModel](db, titleMapper{}, "title", table),
	}, nil
}

// MatchSimilar returns rows of id, title and similarity, best first.
func (x *LocalSimilarityIndex) MatchSimilar(ctx context.Context, vector []float64, topN int) ([]search.Row, error) {
	var candidates []TitleModel
	err := x.repo.DB(ctx).
		Where(title.ColumnEmbedding + " IS NOT NULL").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load title embeddings: %w", err)
	}

	matches := topK(vector, candidates, topN)
	rows := make([]search.Row, len(matches))
	for i, m := range matches {
		rows[i] = search.Row{
			"id":         m.id,
			"title":      m.title,
			"similarity": m.similarity,
		}
	}
	return rows, nil
}

// LocalLexicalIndex matches titles with a case-insensitive substring search.
type LocalLexicalIndex struct {
	repo database.Repository[title.Record, TitleModel]
}

// NewLocalLexicalIndex creates a LocalLexicalIndex over table.
func NewLocalLexicalIndex(db database.Database, table string) (*LocalLexicalIndex, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	return &LocalLexicalIndex{
		repo: database.NewRepositoryForTable[title.Record, TitleModel](db, titleMapper{}, "title", table),
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchTitles returns rows of id and title containing query, ordered by title.
func (x *LocalLexicalIndex) SearchTitles(ctx context.Context, query string, maxResults int) ([]search.Row, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	var found []TitleModel
	err := x.repo.DB(ctx).
		Select(title.ColumnID, title.ColumnTitle).
		Where("LOWER("+title.ColumnTitle+") LIKE ? ESCAPE '\\'", pattern).
		Order(title.ColumnTitle).
		Order(title.ColumnID).
		Limit(maxResults).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}

	rows := make([]search.Row, len(found))
	for i, f := range found {
		rows[i] = search.Row{"id": f.ID, "title": f.Title}
	}
	return rows, nil
}

var (
	_ search.SimilarityIndex = (*LocalSimilarityIndex)(nil)
	_ search.LexicalIndex    = (*LocalLexicalIndex)(nil)
)
