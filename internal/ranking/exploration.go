package ranking

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wavecue/sonora/internal/model"
)

// ExplorationMode selects between the deterministic UCB score and a
// stochastic Thompson-sampling draw (spec §4.4).
type ExplorationMode string

const (
	ExplorationUCB      ExplorationMode = "ucb"
	ExplorationThompson ExplorationMode = "thompson"
)

// ExplorationEstimator scores cold/under-explored items from the same
// Beta posterior the PopularityEstimator summarizes. The UCB form is the
// production default: two identical queries at the same instant return
// identical orderings. Thompson sampling trades that determinism for
// exploration variance and requires an injected RNG (spec §5).
type ExplorationEstimator struct {
	alpha0 float64
	beta0  float64
	mode   ExplorationMode
}

// NewExplorationEstimator builds an estimator. An unrecognized mode falls
// back to UCB.
func NewExplorationEstimator(alpha0, beta0 float64, mode ExplorationMode) ExplorationEstimator {
	if alpha0 <= 0 {
		alpha0 = 1
	}
	if beta0 <= 0 {
		beta0 = 9
	}
	if mode != ExplorationThompson {
		mode = ExplorationUCB
	}
	return ExplorationEstimator{alpha0: alpha0, beta0: beta0, mode: mode}
}

// posterior returns the Beta(alpha, beta) posterior parameters for an item's
// statistics snapshot.
func (e ExplorationEstimator) posterior(s model.ItemStatistics) (alpha, beta float64) {
	alpha = e.alpha0 + s.DebiasedClicks
	beta = e.beta0 + math.Max(s.DebiasedImpressions-s.DebiasedClicks, 0)
	return alpha, beta
}

// Estimate returns the UCB score for s: mean + 2*sqrt(variance), clamped to
// [0,1]. Used regardless of mode when rng is nil, and always for the UCB mode.
func (e ExplorationEstimator) Estimate(s model.ItemStatistics) float64 {
	alpha, beta := e.posterior(s)
	total := alpha + beta
	mean := alpha / total
	variance := (alpha * beta) / (total * total * (total + 1))
	return clamp01(mean + 2*math.Sqrt(variance))
}

// Sample draws one Thompson-sampling score from the Beta(alpha, beta)
// posterior using src. Only meaningful when the estimator's mode is
// ExplorationThompson; callers pick Estimate vs Sample based on Mode().
func (e ExplorationEstimator) Sample(s model.ItemStatistics, src rand.Source) float64 {
	alpha, beta := e.posterior(s)
	dist := distuv.Beta{Alpha: alpha, Beta: beta, Src: src}
	return clamp01(dist.Rand())
}

// Mode reports the configured exploration mode.
func (e ExplorationEstimator) Mode() ExplorationMode {
	return e.mode
}

// Score dispatches to Estimate or Sample based on the configured mode.
// src is ignored in UCB mode and may be nil.
func (e ExplorationEstimator) Score(s model.ItemStatistics, src rand.Source) float64 {
	if e.mode == ExplorationThompson && src != nil {
		return e.Sample(s, src)
	}
	return e.Estimate(s)
}
