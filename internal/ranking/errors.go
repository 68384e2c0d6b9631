package ranking

import (
	"errors"
	"fmt"
)

// Error taxonomy (spec §7). Callers match with errors.Is; PipelineCoordinator
// uses these to decide which failures abort the request (RetrievalFailed,
// InvalidInput) versus which degrade gracefully (RerankFailed,
// StatisticsReadFailed).
var (
	ErrConfigurationInvalid  = errors.New("ranking: configuration invalid")
	ErrRetrievalFailed       = errors.New("ranking: retrieval failed")
	ErrRerankFailed          = errors.New("ranking: rerank failed")
	ErrStatisticsReadFailed  = errors.New("ranking: statistics read failed")
	ErrStatisticsWriteFailed = errors.New("ranking: statistics write failed")
	ErrInvalidInput          = errors.New("ranking: invalid input")
)

func errWeightSum(sum float64) error {
	return fmt.Errorf("%w: weights must sum to 1 (±%g), got %g", ErrConfigurationInvalid, WeightSumTolerance, sum)
}
