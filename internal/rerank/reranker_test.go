package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlend_PureNeuralAtLambdaOne(t *testing.T) {
	assert.InDelta(t, 0.9, Blend(1.0, 0.9, 0.2), 1e-9)
}

func TestBlend_PureCompositeAtLambdaZero(t *testing.T) {
	assert.InDelta(t, 0.2, Blend(0.0, 0.9, 0.2), 1e-9)
}

func TestBlend_WeightedAverageInBetween(t *testing.T) {
	// lambda=0.6: 0.6*0.9 + 0.4*0.2 = 0.54 + 0.08 = 0.62
	assert.InDelta(t, 0.62, Blend(0.6, 0.9, 0.2), 1e-9)
}
