package storage

import (
	"context"
	"fmt"
)

// ChannelFeedback carries a best-effort fan-out of recorded feedback
// events, for callers that want to invalidate a cache entry as soon as
// an item's statistics change rather than waiting on the next read.
const ChannelFeedback = "sonora_feedback"

// Notify sends a notification on the specified channel.
func (db *DB) Notify(ctx context.Context, channel, payload string) error {
	_, err := db.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	if err != nil {
		return fmt.Errorf("storage: notify %s: %w", channel, err)
	}
	return nil
}
