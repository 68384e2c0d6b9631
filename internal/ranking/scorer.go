package ranking

import (
	"math/rand"
	"sort"

	"github.com/wavecue/sonora/internal/model"
)

// Weights are the composite-scoring coefficients (spec §4.6). Load/Validate
// in internal/config is the only place that should construct one directly
// from untrusted input; NewScorer re-validates regardless so the invariant
// holds even for callers that build a Scorer without going through config.
type Weights struct {
	Semantic    float64
	Popularity  float64
	Exploration float64
	Freshness   float64
}

// WeightSumTolerance mirrors config.WeightSumTolerance; duplicated here so
// this package has no import-cycle dependency on internal/config.
const WeightSumTolerance = 1e-6

// Scored is one candidate with its four normalized signal values and the
// resulting composite score, prior to any rerank blend.
type Scored struct {
	Candidate   model.Candidate
	Semantic    float64
	Popularity  float64
	Exploration float64
	Freshness   float64
	Composite   float64
}

// Scorer computes the composite score of §4.6 from a candidate set and a
// statistics snapshot, applying the popularity/exploration/freshness
// estimators and the configured weights.
type Scorer struct {
	weights     Weights
	popularity  PopularityEstimator
	exploration ExplorationEstimator
	freshness   FreshnessEstimator
}

// NewScorer builds a Scorer. It panics if weights do not sum to 1±tolerance:
// config.Load already rejects this at startup, so reaching here with bad
// weights means a caller constructed a Scorer by hand and skipped Validate.
func NewScorer(weights Weights, popularity PopularityEstimator, exploration ExplorationEstimator, freshness FreshnessEstimator) Scorer {
	if err := weights.Validate(); err != nil {
		panic(err)
	}
	return Scorer{weights: weights, popularity: popularity, exploration: exploration, freshness: freshness}
}

// Validate checks that the weights sum to 1 within WeightSumTolerance.
func (w Weights) Validate() error {
	sum := w.Semantic + w.Popularity + w.Exploration + w.Freshness
	d := sum - 1.0
	if d < 0 {
		d = -d
	}
	if d > WeightSumTolerance {
		return errWeightSum(sum)
	}
	return nil
}

// Score computes the composite score for one candidate given its statistics
// snapshot. stats is the zero value (all zeros) for items never recorded;
// the PopularityEstimator's prior and the ExplorationEstimator's posterior
// are both well-defined at zero, producing the cold-start scores the spec
// requires rather than dividing by zero.
func (s Scorer) Score(c model.Candidate, stats model.ItemStatistics, rngSrc rand.Source) Scored {
	sem := c.SemanticSimilarity()
	pop := s.popularity.Estimate(stats)
	exp := s.exploration.Score(stats, rngSrc)
	fresh := s.freshness.Estimate(c.CreatedAt)
	composite := s.weights.Semantic*sem + s.weights.Popularity*pop + s.weights.Exploration*exp + s.weights.Freshness*fresh
	return Scored{
		Candidate:   c,
		Semantic:    sem,
		Popularity:  pop,
		Exploration: exp,
		Freshness:   fresh,
		Composite:   clamp01(composite),
	}
}

// ScoreAll scores every candidate and returns the top k in tie-broken
// descending order: composite desc, then semantic desc, then item_id asc
// (spec §4.6). rngSrc is only consulted when the exploration estimator is
// in thompson_sample mode; it may be nil for ucb mode.
func (s Scorer) ScoreAll(candidates []model.Candidate, stats map[string]model.ItemStatistics, k int, rngSrc rand.Source) []Scored {
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		out[i] = s.Score(c, stats[c.ItemID], rngSrc)
	}
	SortByComposite(out)
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// SortByComposite sorts in place by the spec §4.6 tie-break rule.
func SortByComposite(scored []Scored) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Semantic != b.Semantic {
			return a.Semantic > b.Semantic
		}
		return a.Candidate.ItemID < b.Candidate.ItemID
	})
}
