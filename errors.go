package fd2p

import (
	"errors"

	"github.com/AntanasZilinskas/fd2p/application/service"
)

// Exported errors for library consumers.
var (
	// ErrNoDatabase indicates no database was configured.
	ErrNoDatabase = errors.New("fd2p: no database configured")

	// ErrNoEmbeddingModel indicates neither a remote provider nor a local model is available.
	ErrNoEmbeddingModel = errors.New("fd2p: no embedding model available")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = service.ErrClientClosed
)
