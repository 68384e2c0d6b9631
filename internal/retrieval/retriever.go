// Package retrieval implements the Stage 1 Retriever: approximate nearest
// neighbor search over item embeddings (spec §6 "Retriever"). Its internals
// (HNSW construction) are an external collaborator's concern; this package
// only wires the query contract.
package retrieval

import (
	"context"

	"github.com/wavecue/sonora/internal/model"
)

// Retriever returns at most k candidates sorted by ascending cosine
// distance, honoring the optional filters. Implementations treat this as an
// I/O suspension point (spec §5): they may block on network or disk.
type Retriever interface {
	Retrieve(ctx context.Context, queryEmbedding []float32, k int, filters model.Filters) ([]model.Candidate, error)
}
