package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecue/sonora/internal/model"
)

func blendedWithGenre(id, genre string, blended float64, embedding []float32) Blended {
	return Blended{
		Scored:  Scored{Candidate: model.Candidate{ItemID: id, Genre: genre, Embedding: embedding}},
		Blended: blended,
	}
}

func TestDiversifier_MinPerGenreHonoredWhenEnoughCandidates(t *testing.T) {
	d := NewDiversifier(0.70, 2)

	var items []Blended
	for i := 0; i < 6; i++ {
		items = append(items, blendedWithGenre(fmt.Sprintf("pop-%d", i), "pop", 0.9-float64(i)*0.01, []float32{1, 0}))
	}
	for i := 0; i < 6; i++ {
		items = append(items, blendedWithGenre(fmt.Sprintf("folk-%d", i), "folk", 0.8-float64(i)*0.01, []float32{0, 1}))
	}

	result := d.Diversify(items, 5)
	require.Len(t, result, 5)

	counts := map[string]int{}
	for _, r := range result {
		counts[r.Candidate.Genre]++
	}
	assert.GreaterOrEqual(t, counts["pop"], 2)
	assert.GreaterOrEqual(t, counts["folk"], 2)
}

func TestDiversifier_MMRReshufflesNearDuplicates(t *testing.T) {
	// Spec §8 scenario 2: 8 near-identical pop candidates, 2 dissimilar folk
	// candidates. N=5, min_per_genre=2: at least 2 folk items must appear.
	d := NewDiversifier(0.70, 2)

	var items []Blended
	for i := 0; i < 8; i++ {
		items = append(items, blendedWithGenre(fmt.Sprintf("pop-%d", i), "pop", 0.95-float64(i)*0.001, []float32{1, 0.01}))
	}
	items = append(items, blendedWithGenre("folk-0", "folk", 0.70, []float32{0, 1}))
	items = append(items, blendedWithGenre("folk-1", "folk", 0.69, []float32{-0.1, 0.9}))

	result := d.Diversify(items, 5)
	require.Len(t, result, 5)

	folkCount := 0
	for _, r := range result {
		if r.Candidate.Genre == "folk" {
			folkCount++
		}
	}
	assert.GreaterOrEqual(t, folkCount, 2)
}

func TestDiversifier_UnknownGenreBucketed(t *testing.T) {
	d := NewDiversifier(0.70, 1)
	items := []Blended{
		blendedWithGenre("a", "", 0.9, []float32{1, 0}),
		blendedWithGenre("b", "", 0.8, []float32{0, 1}),
	}
	result := d.Diversify(items, 2)
	require.Len(t, result, 2)
	assert.Equal(t, model.UnknownGenre, result[0].Candidate.Genre)
}

func TestDiversifier_IdempotentOnOwnOutput(t *testing.T) {
	d := NewDiversifier(0.70, 2)
	var items []Blended
	for i := 0; i < 10; i++ {
		genre := "pop"
		if i%3 == 0 {
			genre = "folk"
		}
		items = append(items, blendedWithGenre(fmt.Sprintf("item-%d", i), genre, 1.0-float64(i)*0.01, []float32{float32(i % 2), float32((i + 1) % 2)}))
	}

	first := d.Diversify(items, 5)
	second := d.Diversify(first, 5)

	require.Len(t, first, 5)
	require.Len(t, second, 5)
	for i := range first {
		assert.Equal(t, first[i].Candidate.ItemID, second[i].Candidate.ItemID)
	}
}

func TestDiversifier_FillsUnconstrainedWhenPoolSmall(t *testing.T) {
	d := NewDiversifier(0.70, 2)
	items := []Blended{
		blendedWithGenre("a", "pop", 0.9, []float32{1, 0}),
		blendedWithGenre("b", "pop", 0.8, []float32{0.9, 0.1}),
		blendedWithGenre("c", "folk", 0.7, []float32{0, 1}),
	}
	result := d.Diversify(items, 5)
	assert.Len(t, result, 3, "cannot produce more results than candidates available")
}
