// Package embedding turns passage and query text into vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are
// deterministic for a fixed model and do not retry; upstream failures are
// reported as apperr.ErrEmbeddingUnavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
