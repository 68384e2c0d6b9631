package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wavecue/sonora/internal/model"
	"github.com/wavecue/sonora/internal/storage"
)

// maxRetries/baseDelay mirror the teacher's WithRetry defaults for
// serialization-failure/deadlock retries on the UPSERT path.
const (
	maxRetries = 3
	baseDelay  = 25 * time.Millisecond
)

// PostgresStore is the StatisticsStore backed by a single-statement atomic
// UPSERT per item_id, the row-store alternative named in spec §9's design
// notes. A successful Record fans out a best-effort ChannelFeedback
// notification for callers that want to invalidate a cache on write.
type PostgresStore struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewPostgresStore wraps an existing storage.DB.
func NewPostgresStore(db *storage.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Record implements Store.Record as one ON CONFLICT DO UPDATE statement:
// the row-level lock Postgres takes for the UPDATE branch makes concurrent
// writers to the same item_id serialize, satisfying the linearizable-per-key
// contract without an explicit application-level lock.
func (s *PostgresStore) Record(ctx context.Context, itemID string, kind model.EventKind, _ int, weight float64, at time.Time) error {
	var impressionCount, clickCount int64
	var debiasedImpressions, debiasedClicks float64
	switch kind {
	case model.EventImpression:
		impressionCount = 1
		debiasedImpressions = weight
	case model.EventClick:
		clickCount = 1
		debiasedClicks = weight
	}

	err := storage.WithRetry(ctx, maxRetries, baseDelay, func() error {
		_, err := s.db.Pool().Exec(ctx, `
			INSERT INTO item_statistics
				(item_id, impression_count, click_count, debiased_impressions, debiased_clicks, last_event_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (item_id) DO UPDATE SET
				impression_count = item_statistics.impression_count + EXCLUDED.impression_count,
				click_count = item_statistics.click_count + EXCLUDED.click_count,
				debiased_impressions = item_statistics.debiased_impressions + EXCLUDED.debiased_impressions,
				debiased_clicks = item_statistics.debiased_clicks + EXCLUDED.debiased_clicks,
				last_event_at = GREATEST(item_statistics.last_event_at, EXCLUDED.last_event_at)`,
			itemID, impressionCount, clickCount, debiasedImpressions, debiasedClicks, at,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("stats: record %s: %w", itemID, err)
	}

	// Best-effort: a missed invalidation is a stale cache entry, not data
	// loss. The feedback write above already succeeded.
	if notifyErr := s.db.Notify(ctx, storage.ChannelFeedback, `{"item_id":"`+itemID+`"}`); notifyErr != nil {
		s.logger.Warn("stats: feedback notify failed", "item_id", itemID, "error", notifyErr)
	}
	return nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, itemID string) (model.ItemStatistics, error) {
	var row model.ItemStatistics
	row.ItemID = itemID
	err := s.db.Pool().QueryRow(ctx, `
		SELECT impression_count, click_count, debiased_impressions, debiased_clicks, last_event_at
		FROM item_statistics WHERE item_id = $1`, itemID,
	).Scan(&row.ImpressionCount, &row.ClickCount, &row.DebiasedImpressions, &row.DebiasedClicks, &row.LastEventAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.ItemStatistics{ItemID: itemID}, nil
		}
		return model.ItemStatistics{}, fmt.Errorf("stats: get %s: %w", itemID, err)
	}
	return row, nil
}

// GetMany implements Store.GetMany as a single ANY($1) query: one read
// amplification unit regardless of candidate count (spec §4.2).
func (s *PostgresStore) GetMany(ctx context.Context, itemIDs []string) (map[string]model.ItemStatistics, error) {
	out := make(map[string]model.ItemStatistics, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT item_id, impression_count, click_count, debiased_impressions, debiased_clicks, last_event_at
		FROM item_statistics WHERE item_id = ANY($1)`, itemIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: get_many: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.ItemStatistics
		if err := rows.Scan(&row.ItemID, &row.ImpressionCount, &row.ClickCount, &row.DebiasedImpressions, &row.DebiasedClicks, &row.LastEventAt); err != nil {
			return nil, fmt.Errorf("stats: get_many scan: %w", err)
		}
		out[row.ItemID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: get_many: %w", err)
	}
	return out, nil
}

// Delete implements Store.Delete.
func (s *PostgresStore) Delete(ctx context.Context, itemID string) error {
	_, err := s.db.Pool().Exec(ctx, `DELETE FROM item_statistics WHERE item_id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("stats: delete %s: %w", itemID, err)
	}
	return nil
}
