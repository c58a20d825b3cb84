// Package search defines the embedding and lookup ports used by the title services.
package search

import "context"

// Embedder converts text into embedding vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
