// ABOUTME: Embedding gateway interface, text to fixed-dimension vectors
// ABOUTME: The model itself is an external collaborator behind this boundary

package embed

import "context"

// Embedder converts text into a fixed-dimension vector. Identical text must
// yield a stable vector within one indexing run; cross-run stability is not
// required.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
