package title

import (
	"context"

	"github.com/AntanasZilinskas/fd2p/domain/repository"
)

// Store persists title records and their embeddings.
type Store interface {
	// Find returns records matching the options.
	Find(ctx context.Context, options ...repository.Option) ([]Record, error)

	// Count returns the number of records matching the options.
	Count(ctx context.Context, options ...repository.Option) (int64, error)

	// SaveEmbeddings upserts the embedding of every given record keyed by id.
	// The write is atomic: either all embeddings are stored or none.
	SaveEmbeddings(ctx context.Context, embeddings []Embedding) error

	// UpdateEmbedding sets the embedding of one record and returns the
	// number of rows affected.
	UpdateEmbedding(ctx context.Context, id int64, vector []float64) (int64, error)
}
