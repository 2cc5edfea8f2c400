// Package embeddings provides the embedding capability the vector
// collections use to index fact text.
package embeddings

import "context"

// Embedder converts text into vector embeddings. Drivers embed documents
// internally, so the memory tiers never handle raw vectors.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
