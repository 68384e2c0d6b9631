// Package rerank implements the optional Stage 2.5 neural cross-encoder
// collaborator and the linear blend with the composite score (spec §4.7).
package rerank

import "context"

// Pair is one (item_id, text_surface) the Reranker scores.
type Pair struct {
	ItemID string
	Text   string
}

// Reranker scores up to len(pairs) candidates in [0,1], preserving pair
// identity. Its internals (the cross-encoder model) are an external
// collaborator's concern (spec §4.7); this package only wires the call.
type Reranker interface {
	Rerank(ctx context.Context, query string, pairs []Pair) (map[string]float64, error)
}

// Blend computes blended(c) = lambda*neural(c) + (1-lambda)*composite(c)
// (spec §4.7). lambda outside [0,1] is the caller's programming error —
// config.Validate rejects it at startup, so it is not re-clamped here.
func Blend(lambda, neural, composite float64) float64 {
	return lambda*neural + (1-lambda)*composite
}
