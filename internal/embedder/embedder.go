// Package embedder turns chunk text into fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint.
package embedder

import "context"

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}
