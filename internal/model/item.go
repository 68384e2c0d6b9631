// Package model holds the data types shared across the ranking pipeline:
// catalog items, retrieval candidates, per-item statistics, and the
// request/response boundary types.
package model

import "time"

// Item is a catalog entry: a music track or sound effect. Embeddings,
// genre/mood/format/bpm, and created_at are the only fields the ranking
// core reads; everything else about an item (title, audio URL, license)
// is opaque to it and lives outside this module.
type Item struct {
	ID        string
	Embedding []float32
	Genre     string // "" is normalized to UnknownGenre by callers that bucket on it.
	Mood      string
	Format    string
	BPM       int
	CreatedAt time.Time
}

// UnknownGenre is the bucket genre-less items fall into for diversification.
const UnknownGenre = "__unknown__"

// GenreOrUnknown returns g, or UnknownGenre if g is empty.
func GenreOrUnknown(g string) string {
	if g == "" {
		return UnknownGenre
	}
	return g
}

// Candidate is one retrieval hit: an item id paired with its retrieval
// distance and the attributes/embedding needed by downstream stages.
// RetrievalDistance is a nonnegative cosine distance in [0, 2].
type Candidate struct {
	ItemID            string
	RetrievalDistance float64
	Embedding         []float32
	Genre             string
	Mood              string
	Format            string
	BPM               int
	CreatedAt         time.Time
	// TextSurface is the opaque text the Reranker scores the query against
	// (e.g. title + tags); unused outside the optional rerank stage.
	TextSurface string
}

// SemanticSimilarity maps RetrievalDistance to [0,1] per the Retriever's
// fixed cosine-distance convention (spec §3): sim = 1 - distance/2.
func (c Candidate) SemanticSimilarity() float64 {
	sim := 1 - c.RetrievalDistance/2
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Filters restricts retrieval to a categorical/numeric subset of the catalog.
// All fields are optional; a nil/zero field is not applied.
type Filters struct {
	Genre  string
	Mood   string
	Format string
	BPMMin *int
	BPMMax *int
}
