package service

import "errors"

// Errors returned by the title services. Callers match them with errors.Is;
// the wrapped cause carries the detail.
var (
	// ErrInvalidInput indicates a record without an id or with a blank title.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyQuery indicates a blank search query.
	ErrEmptyQuery = errors.New("query is required")

	// ErrEmbed indicates the embedding provider failed or returned an unusable vector.
	ErrEmbed = errors.New("generate embedding")

	// ErrFetch indicates records could not be read from the store.
	ErrFetch = errors.New("fetch records")

	// ErrWrite indicates embeddings could not be written to the store.
	ErrWrite = errors.New("write embeddings")

	// ErrSearch indicates a search index call failed.
	ErrSearch = errors.New("search index")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("fd2p: client is closed")
)
