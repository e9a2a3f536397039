// Package retrieval implements the retriever contract over a local index
// of pre-embedded corpus chunks. Index building is an offline concern; at
// runtime the index is read-only and safe for concurrent queries.
package retrieval

import (
	"context"

	"github.com/grounded-agent/server/internal/agent/model"
)

// Retriever returns ranked passages with provenance for a query. Calling
// Retrieve twice with the same query against an unmodified index yields
// identical ordered results.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]model.Passage, error)
}

// Embedder maps text to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
