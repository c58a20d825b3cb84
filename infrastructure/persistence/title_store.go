package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AntanasZilinskas/fd2p/domain/repository"
	"github.com/AntanasZilinskas/fd2p/domain/title"
	"github.com/AntanasZilinskas/fd2p/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertChunk bounds the rows per INSERT statement.
const upsertChunk = 100

// TitleStore implements title.Store on a gorm database.
type TitleStore struct {
	repo   database.Repository[title.Record, TitleModel]
	db     database.Database
	logger *slog.Logger
}

// NewTitleStore creates a TitleStore over table.
func NewTitleStore(db database.Database, table string, logger *slog.Logger) (*TitleStore, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleStore{
		repo:   database.NewRepositoryForTable[title.Record, TitleModel](db, titleMapper{}, "title", table),
		db:     db,
		logger: logger,
	}, nil
}

// Find returns records matching options.
func (s *TitleStore) Find(ctx context.Context, options ...repository.Option) ([]title.Record, error) {
	return s.repo.Find(ctx, options...)
}

// Count returns the number of records matching options.
func (s *TitleStore) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	return s.repo.Count(ctx, options...)
}

// SaveEmbeddings upserts all embeddings in one transaction, keyed by id.
// Only title_embedding is overwritten for existing rows.
func (s *TitleStore) SaveEmbeddings(ctx context.Context, embeddings []title.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	models := make([]TitleModel, len(embeddings))
	for i, e := range embeddings {
		models[i] = TitleModel{
			ID:             e.ID(),
			Title:          e.Title(),
			TitleEmbedding: database.NewPgVector(e.Vector()),
		}
	}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return tx.Table(s.repo.Table()).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: title.ColumnID}},
				DoUpdates: clause.AssignmentColumns([]string{title.ColumnEmbedding}),
			}).
			CreateInBatches(&models, upsertChunk).Error
	})
	if err != nil {
		return fmt.Errorf("upsert %d title embeddings: %w", len(embeddings), err)
	}

	s.logger.Debug("title embeddings saved", slog.Int("count", len(embeddings)))
	return nil
}

// UpdateEmbedding sets the embedding of the row with id and returns the
// number of rows changed.
func (s *TitleStore) UpdateEmbedding(ctx context.Context, id int64, vector []float64) (int64, error) {
	result := s.repo.DB(ctx).
		Where(title.ColumnID+" = ?", id).
		Update(title.ColumnEmbedding, database.NewPgVector(vector))
	if result.Error != nil {
		return 0, fmt.Errorf("update title embedding %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

var _ title.Store = (*TitleStore)(nil)
