package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFreshnessEstimator_MissingCreatedAtReturnsHalf(t *testing.T) {
	e := NewFreshnessEstimator(30)
	assert.Equal(t, 0.5, e.Estimate(time.Time{}))
}

func TestFreshnessEstimator_HalfLifeDecaysToHalf(t *testing.T) {
	e := NewFreshnessEstimator(30)
	e.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }
	createdAt := e.now().AddDate(0, 0, -30)
	assert.InDelta(t, 0.5, e.Estimate(createdAt), 1e-9)
}

func TestFreshnessEstimator_BrandNewItemIsOne(t *testing.T) {
	e := NewFreshnessEstimator(30)
	e.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }
	assert.InDelta(t, 1.0, e.Estimate(e.now()), 1e-9)
}

func TestFreshnessEstimator_DefaultsOnInvalidHalfLife(t *testing.T) {
	e := NewFreshnessEstimator(0)
	e.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }
	createdAt := e.now().AddDate(0, 0, -30)
	assert.InDelta(t, 0.5, e.Estimate(createdAt), 1e-9)
}
