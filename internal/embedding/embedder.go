// Package embedding maps text to fixed-length dense vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. Embeddings are deterministic
// for identical input within a process lifetime; the dimension is fixed at
// construction and never changes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
