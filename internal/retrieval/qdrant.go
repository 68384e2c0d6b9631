package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/time/rate"

	"github.com/wavecue/sonora/internal/model"
)

// Config holds the connection settings for the Qdrant-backed Retriever.
type Config struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// QdrantRetriever implements Retriever backed by a Qdrant collection of item
// embeddings. A token-bucket limiter paces outbound queries so a burst of
// concurrent searches cannot overwhelm the collaborator.
type QdrantRetriever struct {
	client     *qdrant.Client
	collection string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL,
// preferring the gRPC port (6334) when the caller supplied the REST port.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("retrieval: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("retrieval: invalid port in qdrant URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantRetriever connects to Qdrant over gRPC. rateLimitRPS <= 0 disables
// limiting.
func NewQdrantRetriever(cfg Config, rateLimitRPS float64, logger *slog.Logger) (*QdrantRetriever, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: connect to qdrant at %s:%d: %w", host, port, err)
	}

	var limiter *rate.Limiter
	if rateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimitRPS), 1)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantRetriever{client: client, collection: cfg.Collection, limiter: limiter, logger: logger}, nil
}

// Retrieve implements Retriever.Retrieve.
func (q *QdrantRetriever) Retrieve(ctx context.Context, queryEmbedding []float32, k int, filters model.Filters) ([]model.Candidate, error) {
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("retrieval: rate limit wait: %w", err)
		}
	}

	must := buildFilter(filters)
	limit := uint64(k) //nolint:gosec // k is bounded by config.RetrievalK

	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(queryEmbedding),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant query: %w", err)
	}

	out := make([]model.Candidate, 0, len(scored))
	for _, sp := range scored {
		c, ok := toCandidate(sp)
		if !ok {
			q.logger.Warn("retrieval: skipping point with unreadable payload", "id", sp.Id.String())
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func buildFilter(filters model.Filters) []*qdrant.Condition {
	var must []*qdrant.Condition
	if filters.Genre != "" {
		must = append(must, qdrant.NewMatch("genre", filters.Genre))
	}
	if filters.Mood != "" {
		must = append(must, qdrant.NewMatch("mood", filters.Mood))
	}
	if filters.Format != "" {
		must = append(must, qdrant.NewMatch("format", filters.Format))
	}
	if filters.BPMMin != nil || filters.BPMMax != nil {
		r := &qdrant.Range{}
		if filters.BPMMin != nil {
			r.Gte = qdrant.PtrOf(float64(*filters.BPMMin))
		}
		if filters.BPMMax != nil {
			r.Lte = qdrant.PtrOf(float64(*filters.BPMMax))
		}
		must = append(must, qdrant.NewRange("bpm", r))
	}
	return must
}

// toCandidate converts one scored Qdrant point into a Candidate. The
// retrieval_distance field is the cosine distance the query convention fixes
// (spec §3): 1 - score for a cosine-similarity collection.
func toCandidate(sp *qdrant.ScoredPoint) (model.Candidate, bool) {
	itemID := sp.Id.GetUuid()
	if itemID == "" {
		itemID = strconv.FormatUint(sp.Id.GetNum(), 10)
	}
	if itemID == "" {
		return model.Candidate{}, false
	}

	payload := sp.GetPayload()
	c := model.Candidate{
		ItemID:            itemID,
		RetrievalDistance: 1 - float64(sp.Score),
		Genre:             payloadString(payload, "genre"),
		Mood:              payloadString(payload, "mood"),
		Format:            payloadString(payload, "format"),
		BPM:               int(payloadInt(payload, "bpm")),
		TextSurface:       payloadString(payload, "text_surface"),
	}
	if unixSeconds := payloadInt(payload, "created_at_unix"); unixSeconds > 0 {
		c.CreatedAt = time.Unix(unixSeconds, 0).UTC()
	}
	if vectors := sp.GetVectors(); vectors != nil {
		c.Embedding = vectors.GetVector().GetData()
	}
	return c, true
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	return v.GetIntegerValue()
}

// Close shuts down the underlying gRPC connection.
func (q *QdrantRetriever) Close() error {
	return q.client.Close()
}
