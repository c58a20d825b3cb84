package title

import "github.com/AntanasZilinskas/fd2p/domain/repository"

// Column names of the title table.
const (
	ColumnID        = "id"
	ColumnTitle     = "title"
	ColumnEmbedding = "title_embedding"
)

// WithoutEmbedding selects records whose embedding is absent.
func WithoutEmbedding() repository.Option {
	return repository.WithNull(ColumnEmbedding)
}

// WithEmbedding selects records that already have an embedding.
func WithEmbedding() repository.Option {
	return repository.WithNotNull(ColumnEmbedding)
}

// WithIDNotIn excludes the given record ids. An empty list excludes nothing.
func WithIDNotIn(ids []int64) repository.Option {
	return repository.WithConditionNotIn(ColumnID, ids)
}

// WithIDAfter selects records whose id is greater than id.
func WithIDAfter(id int64) repository.Option {
	return repository.WithConditionGreater(ColumnID, id)
}

// WithIDIn selects the given record ids.
func WithIDIn(ids []int64) repository.Option {
	return repository.WithConditionIn(ColumnID, ids)
}
