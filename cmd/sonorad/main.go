package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wavecue/sonora/internal/config"
	"github.com/wavecue/sonora/internal/embedding"
	"github.com/wavecue/sonora/internal/ranking"
	"github.com/wavecue/sonora/internal/rerank"
	"github.com/wavecue/sonora/internal/retrieval"
	"github.com/wavecue/sonora/internal/stats"
	"github.com/wavecue/sonora/internal/storage"
	"github.com/wavecue/sonora/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("SONORA_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord, cleanup, err := build(ctx, logger)
	if err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	defer cleanup()

	slog.Info("sonorad ready", "version", version)

	// sonorad has no HTTP surface (spec §1): it's a library-shaped ranking
	// engine. This entrypoint builds the wiring against whatever
	// Retriever/EmbeddingProvider is configured and then waits for a shutdown
	// signal; it issues no searches itself. Callers embed PipelineCoordinator
	// directly rather than talking to this process over a wire protocol.
	_ = coord

	<-ctx.Done()
	slog.Info("sonorad stopped")
	return 0
}

// build wires every collaborator named in the spec's Configuration section
// and returns a ready-to-use PipelineCoordinator plus its teardown.
func build(ctx context.Context, logger *slog.Logger) (*ranking.PipelineCoordinator, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry metrics: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, nil, fmt.Errorf("storage: %w", err)
	}

	statsStore := newStatsStore(db, cfg, logger)

	retriever, retrieverClose, err := newRetriever(cfg, db, logger)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, nil, fmt.Errorf("retrieval: %w", err)
	}

	reranker := newReranker(cfg, logger)

	weights := ranking.Weights{
		Semantic:    cfg.WeightSemantic,
		Popularity:  cfg.WeightPopularity,
		Exploration: cfg.WeightExploration,
		Freshness:   cfg.WeightFreshness,
	}
	popularity := ranking.NewPopularityEstimator(cfg.PriorAlpha, cfg.PriorBeta)
	exploration := ranking.NewExplorationEstimator(cfg.PriorAlpha, cfg.PriorBeta, ranking.ExplorationMode(cfg.ExplorationMode))
	freshness := ranking.NewFreshnessEstimator(cfg.FreshnessHalfLifeDays)
	scorer := ranking.NewScorer(weights, popularity, exploration, freshness)
	diversifier := ranking.NewDiversifier(cfg.MMRLambda, cfg.MinPerGenre)
	position := ranking.NewPositionBias(cfg.PositionBiasAlpha, cfg.PositionBiasFloor)

	coord := ranking.NewPipelineCoordinator(
		embedding.NoopProvider{},
		retriever,
		statsStore,
		scorer,
		reranker,
		diversifier,
		position,
		ranking.PipelineCoordinatorConfig{
			RetrievalK:    cfg.RetrievalK,
			RerankK:       cfg.RerankK,
			ResultN:       cfg.ResultN,
			RerankBlend:   cfg.RerankBlend,
			RerankEnabled: cfg.RerankEnabled,
			StageTimeout:  cfg.StageTimeout,
		},
		metrics,
		logger,
		newThompsonSource,
	)

	cleanup := func() {
		if retrieverClose != nil {
			_ = retrieverClose()
		}
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
	}
	return coord, cleanup, nil
}

// newThompsonSource seeds a fresh, unsynchronized RNG per search request.
// ExplorationEstimator.Score ignores it entirely in UCB mode.
func newThompsonSource() rand.Source {
	return rand.NewSource(rand.Int63()) //nolint:gosec // exploration sampling, not security-sensitive
}

func newStatsStore(db *storage.DB, cfg config.Config, logger *slog.Logger) stats.Store {
	return stats.NewPostgresStore(db, logger)
}

// newRetriever prefers Qdrant (spec §3's Stage 1 collaborator); when no
// QDRANT_URL is configured it falls back to a Postgres pgvector sequential
// scan over the same items.embedding column, suitable for small deployments
// or local development without a Qdrant cluster.
func newRetriever(cfg config.Config, db *storage.DB, logger *slog.Logger) (retrieval.Retriever, func() error, error) {
	if cfg.QdrantURL == "" {
		logger.Warn("qdrant: disabled (no QDRANT_URL), falling back to postgres sequential scan retriever")
		return retrieval.NewPostgresRetriever(db.Pool()), nil, nil
	}
	r, err := retrieval.NewQdrantRetriever(retrieval.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dims:       uint64(cfg.EmbeddingDims), //nolint:gosec // validated positive in config.Validate
	}, cfg.RetrieverRateLimitRPS, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

func newReranker(cfg config.Config, logger *slog.Logger) rerank.Reranker {
	if !cfg.RerankEnabled || cfg.RerankerURL == "" {
		logger.Info("rerank: disabled")
		return nil
	}
	return rerank.NewHTTPReranker(rerank.Config{
		URL:             cfg.RerankerURL,
		Timeout:         cfg.RerankerTimeout,
		BreakerFailures: cfg.RerankerBreakerFailures,
		RateLimitRPS:    cfg.RerankerRateLimitRPS,
	}, logger)
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
