package ranking

import "github.com/wavecue/sonora/internal/model"

// PopularityEstimator computes a smoothed click-through-rate estimate from
// debiased statistics using a Beta(alpha0, beta0) prior (spec §4.3).
type PopularityEstimator struct {
	alpha0 float64
	beta0  float64
}

// NewPopularityEstimator builds an estimator with the given Beta prior.
// Non-positive values fall back to the spec's default (1, 9).
func NewPopularityEstimator(alpha0, beta0 float64) PopularityEstimator {
	if alpha0 <= 0 {
		alpha0 = 1
	}
	if beta0 <= 0 {
		beta0 = 9
	}
	return PopularityEstimator{alpha0: alpha0, beta0: beta0}
}

// Estimate returns a CTR estimate in [0,1]. An item with zero statistics
// returns the prior mean alpha0/(alpha0+beta0) — 0.1 for the defaults.
func (e PopularityEstimator) Estimate(s model.ItemStatistics) float64 {
	ctr := (s.DebiasedClicks + e.alpha0) / (s.DebiasedImpressions + e.alpha0 + e.beta0)
	return clamp01(ctr)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
