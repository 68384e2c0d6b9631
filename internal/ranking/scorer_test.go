package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecue/sonora/internal/model"
)

func defaultWeights() Weights {
	return Weights{Semantic: 0.50, Popularity: 0.25, Exploration: 0.15, Freshness: 0.10}
}

func TestWeights_ValidateRejectsBadSum(t *testing.T) {
	w := Weights{Semantic: 0.5, Popularity: 0.25, Exploration: 0.15, Freshness: 0.11}
	err := w.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
}

func TestNewScorer_PanicsOnBadWeights(t *testing.T) {
	assert.Panics(t, func() {
		NewScorer(Weights{Semantic: 1}, NewPopularityEstimator(1, 9), NewExplorationEstimator(1, 9, ExplorationUCB), NewFreshnessEstimator(30))
	})
}

func TestScorer_CompositeInUnitInterval(t *testing.T) {
	scorer := NewScorer(defaultWeights(), NewPopularityEstimator(1, 9), NewExplorationEstimator(1, 9, ExplorationUCB), NewFreshnessEstimator(30))
	cand := model.Candidate{ItemID: "a", RetrievalDistance: 0.4, CreatedAt: time.Now()}
	scored := scorer.Score(cand, model.ItemStatistics{}, nil)
	assert.GreaterOrEqual(t, scored.Composite, 0.0)
	assert.LessOrEqual(t, scored.Composite, 1.0)
}

func TestScorer_ColdStartDoesNotSink(t *testing.T) {
	// Spec §8 scenario 1: A has heavy evidence, B and C are cold; all three
	// share the query's embedding (semantic=1.0 for every candidate).
	scorer := NewScorer(defaultWeights(), NewPopularityEstimator(1, 9), NewExplorationEstimator(1, 9, ExplorationUCB), NewFreshnessEstimator(30))
	now := time.Now()

	a := model.Candidate{ItemID: "a", RetrievalDistance: 0, CreatedAt: now}
	b := model.Candidate{ItemID: "b", RetrievalDistance: 0, CreatedAt: now}
	c := model.Candidate{ItemID: "c", RetrievalDistance: 0, CreatedAt: now}

	stats := map[string]model.ItemStatistics{
		"a": {DebiasedImpressions: 100, DebiasedClicks: 50},
	}

	scored := scorer.ScoreAll([]model.Candidate{a, b, c}, stats, 3, nil)
	require.Len(t, scored, 3)
	assert.Equal(t, "a", scored[0].Candidate.ItemID, "heavy-evidence item should rank first")

	ids := []string{scored[0].Candidate.ItemID, scored[1].Candidate.ItemID, scored[2].Candidate.ItemID}
	assert.Contains(t, ids, "b")
	assert.Contains(t, ids, "c")
}

func TestScorer_TieBreakDescendingSemanticThenItemID(t *testing.T) {
	scorer := NewScorer(Weights{Semantic: 1.0}, NewPopularityEstimator(1, 9), NewExplorationEstimator(1, 9, ExplorationUCB), NewFreshnessEstimator(30))

	// Identical composite (both semantic=1.0, weight entirely on semantic):
	// tie-break falls through to item_id ascending.
	zItem := model.Candidate{ItemID: "zzz", RetrievalDistance: 0}
	aItem := model.Candidate{ItemID: "aaa", RetrievalDistance: 0}

	scored := scorer.ScoreAll([]model.Candidate{zItem, aItem}, nil, 0, nil)
	require.Len(t, scored, 2)
	assert.Equal(t, "aaa", scored[0].Candidate.ItemID)
	assert.Equal(t, "zzz", scored[1].Candidate.ItemID)
}

func TestScorer_TieBreakIsDeterministicAcrossRuns(t *testing.T) {
	scorer := NewScorer(defaultWeights(), NewPopularityEstimator(1, 9), NewExplorationEstimator(1, 9, ExplorationUCB), NewFreshnessEstimator(30))
	now := time.Now()
	candidates := []model.Candidate{
		{ItemID: "track-3", RetrievalDistance: 0.2, CreatedAt: now},
		{ItemID: "track-1", RetrievalDistance: 0.2, CreatedAt: now},
		{ItemID: "track-2", RetrievalDistance: 0.2, CreatedAt: now},
	}

	first := scorer.ScoreAll(candidates, nil, 0, nil)
	second := scorer.ScoreAll(candidates, nil, 0, nil)
	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].Candidate.ItemID, second[i].Candidate.ItemID)
	}
}
