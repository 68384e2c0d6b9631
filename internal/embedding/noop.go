// Package embedding provides the EmbeddingProvider stub that satisfies
// ranking.EmbeddingProvider at the query boundary (spec §6 "Embedding
// provider"). The real embedding model is an external collaborator whose
// internals are out of scope; this package only gives cmd/sonorad something
// to wire when no such collaborator is configured.
package embedding

import (
	"context"
	"errors"
)

// ErrNoProvider signals that no real embedding provider is configured.
var ErrNoProvider = errors.New("embedding: no provider configured (noop)")

// NoopProvider returns ErrNoProvider for every call, which the pipeline
// surfaces as RetrievalFailed (spec §7). Wiring a real provider means
// implementing ranking.EmbeddingProvider against whatever model serves
// query embeddings; this stub exists only so sonorad can start up without one.
type NoopProvider struct{}

// Embed implements ranking.EmbeddingProvider.
func (NoopProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrNoProvider
}
