// Package stats implements StatisticsStore: the atomic per-item aggregation
// of impression/click feedback that the ranking package's popularity and
// exploration estimators read from (spec §4.2).
package stats

import (
	"context"
	"time"

	"github.com/wavecue/sonora/internal/model"
)

// Store is the capability the Scorer depends on — never on a concrete
// backing. record is linearizable per item_id: concurrent Record calls for
// the same item_id behave as some serial order of those calls; there is no
// ordering guarantee across different item_ids (spec §4.2 concurrency
// contract). Two implementations are provided: Postgres (atomic UPSERT row
// store) and Sharded (in-process, sharded-mutex counter map).
type Store interface {
	// Record atomically folds one feedback event into item_id's row:
	// impression_count or click_count increments by 1 depending on kind,
	// debiased_impressions or debiased_clicks increments by weight(rank),
	// and last_event_at advances to max(last_event_at, at).
	Record(ctx context.Context, itemID string, kind model.EventKind, rank int, weight float64, at time.Time) error

	// Get returns item_id's statistics snapshot, or the zero value if the
	// item has never received a feedback event. A missing row is never an
	// error condition: it's cold-start, not a not-found (spec §3 Lifecycle).
	Get(ctx context.Context, itemID string) (model.ItemStatistics, error)

	// GetMany is the batched read the PipelineCoordinator uses to hydrate
	// every retrieved candidate's statistics in one read-amplification unit
	// (spec §4.2). Item ids absent from the result map have no statistics
	// row; callers treat a missing entry identically to a zeroed one.
	GetMany(ctx context.Context, itemIDs []string) (map[string]model.ItemStatistics, error)

	// Delete removes item_id's statistics row. A no-op if the item has no
	// row. It touches only the statistics row: it does not delete the
	// catalog item, and it is not run in one transaction with that deletion.
	Delete(ctx context.Context, itemID string) error
}
