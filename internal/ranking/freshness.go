package ranking

import (
	"math"
	"time"

	"github.com/wavecue/sonora/internal/model"
)

// FreshnessEstimator scores items by exponential recency decay (spec §4.5):
// score = exp(-Δ/τ), τ = half_life_days / ln(2), Δ = age in days.
type FreshnessEstimator struct {
	tau float64
	now func() time.Time
}

// NewFreshnessEstimator builds an estimator from a half-life in days.
// Non-positive values fall back to the spec default of 30 days.
func NewFreshnessEstimator(halfLifeDays float64) FreshnessEstimator {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	return FreshnessEstimator{tau: halfLifeDays / math.Ln2, now: time.Now}
}

// Estimate returns the freshness score for createdAt. A zero createdAt
// (item metadata missing a creation timestamp) returns the spec's 0.5
// fallback rather than treating the item as infinitely old.
func (e FreshnessEstimator) Estimate(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	ageDays := e.now().Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return clamp01(math.Exp(-ageDays / e.tau))
}

// EstimateItem is a convenience wrapper over Estimate for a Candidate's item.
func (e FreshnessEstimator) EstimateItem(item model.Item) float64 {
	return e.Estimate(item.CreatedAt)
}
