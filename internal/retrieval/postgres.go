package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/wavecue/sonora/internal/model"
)

// PostgresRetriever implements Retriever as a sequential scan over the
// items table's pgvector embedding column, ordered by the `<=>` cosine
// distance operator. It is the fallback candidate finder sonorad wires in
// when no Qdrant URL is configured (it is not a failover for an unreachable
// Qdrant), grounded on
// akashi's PgCandidateFinder (internal/storage/decisions.go): same
// embedding-column sequential scan, reworked from decisions/org-scoping to
// sonora's items/genre-mood-format-bpm filters.
type PostgresRetriever struct {
	pool *pgxpool.Pool
}

// NewPostgresRetriever builds a PostgresRetriever over an existing pool.
func NewPostgresRetriever(pool *pgxpool.Pool) *PostgresRetriever {
	return &PostgresRetriever{pool: pool}
}

// buildPostgresFilter appends filters's genre/mood/format/bpm conditions to
// seedArgs (which must already hold the query embedding as $1), returning the
// WHERE conditions and the full positional argument list in $N order.
func buildPostgresFilter(filters model.Filters, seedArgs []any) (conds []string, args []any) {
	args = seedArgs
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = []string{"embedding IS NOT NULL"}
	if filters.Genre != "" {
		conds = append(conds, "genre = "+arg(filters.Genre))
	}
	if filters.Mood != "" {
		conds = append(conds, "mood = "+arg(filters.Mood))
	}
	if filters.Format != "" {
		conds = append(conds, "format = "+arg(filters.Format))
	}
	if filters.BPMMin != nil {
		conds = append(conds, "bpm >= "+arg(*filters.BPMMin))
	}
	if filters.BPMMax != nil {
		conds = append(conds, "bpm <= "+arg(*filters.BPMMax))
	}
	return conds, args
}

// Retrieve implements Retriever.Retrieve. k <= 0 falls back to 500.
func (r *PostgresRetriever) Retrieve(ctx context.Context, queryEmbedding []float32, k int, filters model.Filters) ([]model.Candidate, error) {
	if k <= 0 {
		k = 500
	}
	emb := pgvector.NewVector(queryEmbedding)

	conds, args := buildPostgresFilter(filters, []any{emb})
	args = append(args, k)
	limitArg := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT item_id, embedding <=> $1 AS distance, genre, mood, format, bpm, created_at, text_surface, embedding
		FROM items
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT %s`, strings.Join(conds, " AND "), limitArg)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("retrieval: postgres candidate scan: %w", err)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var (
			itemID      string
			distance    float64
			genre       *string
			mood        *string
			format      *string
			bpm         *int
			createdAt   *time.Time
			textSurface *string
			embedding   pgvector.Vector
		)
		if err := rows.Scan(&itemID, &distance, &genre, &mood, &format, &bpm, &createdAt, &textSurface, &embedding); err != nil {
			return nil, fmt.Errorf("retrieval: postgres candidate scan row: %w", err)
		}
		c := model.Candidate{
			ItemID:            itemID,
			RetrievalDistance: distance,
			Embedding:         embedding.Slice(),
		}
		if textSurface != nil {
			c.TextSurface = *textSurface
		}
		if genre != nil {
			c.Genre = *genre
		}
		if mood != nil {
			c.Mood = *mood
		}
		if format != nil {
			c.Format = *format
		}
		if bpm != nil {
			c.BPM = *bpm
		}
		if createdAt != nil {
			c.CreatedAt = *createdAt
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retrieval: postgres candidate scan: %w", err)
	}
	return out, nil
}
