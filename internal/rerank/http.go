package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// HTTPReranker calls a neural cross-encoder service over HTTP, wrapped in a
// circuit breaker: repeated RerankFailed trips the breaker so a down
// reranker degrades the pipeline to pure-composite ordering instead of
// piling up timeouts on every search.
type HTTPReranker struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[map[string]float64]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Config holds the HTTP reranker's tuning knobs.
type Config struct {
	URL             string
	Timeout         time.Duration
	BreakerFailures uint32
	RateLimitRPS    float64
}

// NewHTTPReranker builds an HTTPReranker. The breaker trips after
// BreakerFailures consecutive request failures and stays open for ten times
// Timeout before letting a half-open probe through, mirroring cartographus's
// consecutive-failures policy.
func NewHTTPReranker(cfg Config, logger *slog.Logger) *HTTPReranker {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:    "neural_reranker",
		Timeout: cfg.Timeout * 10,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &HTTPReranker{
		url:     cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[map[string]float64](settings),
		limiter: limiter,
		logger:  logger,
	}
}

type rerankRequest struct {
	Query string `json:"query"`
	Pairs []Pair `json:"pairs"`
}

// Rerank implements Reranker.Rerank. A breaker trip, timeout, or malformed
// response all surface as a plain error; the caller (PipelineCoordinator)
// is responsible for degrading to blended=composite and flagging
// rerank_skipped (spec §4.7, §7 RerankFailed).
func (r *HTTPReranker) Rerank(ctx context.Context, query string, pairs []Pair) (map[string]float64, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rerank: rate limit wait: %w", err)
		}
	}

	result, err := r.breaker.Execute(func() (map[string]float64, error) {
		return r.call(ctx, query, pairs)
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return result, nil
}

func (r *HTTPReranker) call(ctx context.Context, query string, pairs []Pair) (map[string]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Pairs: pairs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reranker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain to allow connection reuse
		return nil, fmt.Errorf("reranker returned status %d", resp.StatusCode)
	}

	var scores map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return scores, nil
}
