package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecue/sonora/internal/model"
)

func TestShardedStore_GetReturnsZeroForUnknownItem(t *testing.T) {
	s := NewShardedStore()
	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatistics{ItemID: "missing"}, got)
}

func TestShardedStore_RecordAccumulates(t *testing.T) {
	s := NewShardedStore()
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, "track-1", model.EventImpression, 1, 1.0, now))
	require.NoError(t, s.Record(ctx, "track-1", model.EventClick, 1, 1.0, now.Add(time.Second)))

	got, err := s.Get(ctx, "track-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ImpressionCount)
	assert.Equal(t, uint64(1), got.ClickCount)
	assert.InDelta(t, 1.0, got.DebiasedImpressions, 1e-9)
	assert.InDelta(t, 1.0, got.DebiasedClicks, 1e-9)
	assert.Equal(t, now.Add(time.Second), got.LastEventAt)
}

// TestShardedStore_ConcurrentClicksLinearizable drives 100 concurrent click
// recordings for one item (spec §8 "Concurrent clicks") and asserts the
// final state matches exactly, with no lost updates.
func TestShardedStore_ConcurrentClicksLinearizable(t *testing.T) {
	s := NewShardedStore()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.Record(ctx, "hot-item", model.EventClick, 1, 1.0, time.Now())
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "hot-item")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), got.ClickCount)
	assert.InDelta(t, float64(n), got.DebiasedClicks, 1e-9)
}

func TestShardedStore_GetManyOmitsUnknownItems(t *testing.T) {
	s := NewShardedStore()
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, "a", model.EventImpression, 1, 1.0, time.Now()))

	got, err := s.GetMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	_, ok := got["b"]
	assert.False(t, ok)
}

func TestShardedStore_DeleteRemovesRow(t *testing.T) {
	s := NewShardedStore()
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, "a", model.EventImpression, 1, 1.0, time.Now()))
	require.NoError(t, s.Delete(ctx, "a"))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.ImpressionCount)
}
