package stats

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/wavecue/sonora/internal/model"
)

// defaultShardCount is deliberately small (a power of two): sonora's hot path
// is a single-digit number of concurrent search requests recording
// impressions for the same handful of catalog items, not a high-cardinality
// write load that needs hundreds of shards.
const defaultShardCount = 64

// ShardedStore is an in-process StatisticsStore: a fixed number of shards,
// each a mutex-guarded map keyed by item_id. Hashing item_id to a shard
// keeps Record linearizable per item_id (spec §4.2) while letting unrelated
// items update under different locks. Useful for tests and for
// deployments too small to warrant Postgres (SPEC_FULL "Supplemented
// features").
type ShardedStore struct {
	shards []*shard
}

type shard struct {
	mu   sync.Mutex
	rows map[string]model.ItemStatistics
}

// NewShardedStore builds a ShardedStore with defaultShardCount shards.
func NewShardedStore() *ShardedStore {
	shards := make([]*shard, defaultShardCount)
	for i := range shards {
		shards[i] = &shard{rows: make(map[string]model.ItemStatistics)}
	}
	return &ShardedStore{shards: shards}
}

func (s *ShardedStore) shardFor(itemID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(itemID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Record implements Store.Record. The shard's mutex makes every update to a
// given item_id's row atomic with respect to every other goroutine hashing
// to the same shard (and, since hashing is stable, to the same item_id).
func (s *ShardedStore) Record(_ context.Context, itemID string, kind model.EventKind, _ int, weight float64, at time.Time) error {
	sh := s.shardFor(itemID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	row := sh.rows[itemID]
	row.ItemID = itemID
	switch kind {
	case model.EventImpression:
		row.ImpressionCount++
		row.DebiasedImpressions += weight
	case model.EventClick:
		row.ClickCount++
		row.DebiasedClicks += weight
	}
	if at.After(row.LastEventAt) {
		row.LastEventAt = at
	}
	sh.rows[itemID] = row
	return nil
}

// Get implements Store.Get.
func (s *ShardedStore) Get(_ context.Context, itemID string) (model.ItemStatistics, error) {
	sh := s.shardFor(itemID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	row, ok := sh.rows[itemID]
	if !ok {
		return model.ItemStatistics{ItemID: itemID}, nil
	}
	return row, nil
}

// GetMany implements Store.GetMany as one pass over itemIDs, locking each
// id's shard only long enough to copy out that id's row. Each row is a
// consistent snapshot; rows of different ids are read under separate locks.
func (s *ShardedStore) GetMany(_ context.Context, itemIDs []string) (map[string]model.ItemStatistics, error) {
	out := make(map[string]model.ItemStatistics, len(itemIDs))
	for _, id := range itemIDs {
		sh := s.shardFor(id)
		sh.mu.Lock()
		if row, ok := sh.rows[id]; ok {
			out[id] = row
		}
		sh.mu.Unlock()
	}
	return out, nil
}

// Delete implements Store.Delete.
func (s *ShardedStore) Delete(_ context.Context, itemID string) error {
	sh := s.shardFor(itemID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.rows, itemID)
	return nil
}
