package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wavecue/sonora/internal/model"
	"github.com/wavecue/sonora/internal/rerank"
	"github.com/wavecue/sonora/internal/retrieval"
	"github.com/wavecue/sonora/internal/stats"
	"github.com/wavecue/sonora/internal/telemetry"
)

// impressionWorkers bounds how many concurrent Record calls one search's
// impression fan-out may hold open against the statistics store, the same
// way akashi's BackfillScoring bounds its conflict-scoring fan-out.
const impressionWorkers = 8

// EmbeddingProvider is the external collaborator that turns query text into
// a vector (spec §6 "Embedding provider"). Its internals are out of scope;
// errors surface as RetrievalFailed.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PipelineCoordinatorConfig holds the tuning knobs a PipelineCoordinator
// needs beyond its collaborators (spec §4.9, §6 "Configuration").
type PipelineCoordinatorConfig struct {
	RetrievalK    int
	RerankK       int
	ResultN       int
	RerankBlend   float64
	RerankEnabled bool
	StageTimeout  time.Duration
}

// PipelineCoordinator orchestrates one search request end to end: retrieve,
// score, optionally rerank, diversify, and fire-and-forget an impression
// event per returned item (spec §4.9).
type PipelineCoordinator struct {
	embedder    EmbeddingProvider
	retriever   retrieval.Retriever
	statsStore  stats.Store
	scorer      Scorer
	reranker    rerank.Reranker
	diversifier Diversifier
	position    PositionBias

	cfg PipelineCoordinatorConfig

	metrics *telemetry.PipelineMetrics
	logger  *slog.Logger

	// newRNG builds the request-scoped RNG source for Thompson sampling
	// (spec §5). nil is valid for UCB mode, which never consults it.
	newRNG func() rand.Source
}

// NewPipelineCoordinator builds a PipelineCoordinator. metrics and logger
// may be nil; logger defaults to slog.Default(), metrics instruments become
// no-ops via telemetry.NewPipelineMetrics when OTEL is unconfigured.
func NewPipelineCoordinator(
	embedder EmbeddingProvider,
	retriever retrieval.Retriever,
	statsStore stats.Store,
	scorer Scorer,
	reranker rerank.Reranker,
	diversifier Diversifier,
	position PositionBias,
	cfg PipelineCoordinatorConfig,
	metrics *telemetry.PipelineMetrics,
	logger *slog.Logger,
	newRNG func() rand.Source,
) *PipelineCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineCoordinator{
		embedder:    embedder,
		retriever:   retriever,
		statsStore:  statsStore,
		scorer:      scorer,
		reranker:    reranker,
		diversifier: diversifier,
		position:    position,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
		newRNG:      newRNG,
	}
}

// Search runs the full pipeline for one request (spec §4.9, §5). Only an
// invalid request (ErrInvalidInput) or an embedding/Retriever failure
// (ErrRetrievalFailed) aborts the request outright; every other degradation
// (rerank failure, statistics read failure) is absorbed and reflected in
// the response instead of returned as an error.
func (p *PipelineCoordinator) Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	if err := validateRequest(req); err != nil {
		return model.SearchResponse{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = p.cfg.ResultN
	}

	// requestID is for log correlation across this search's stages only;
	// it never rides in the response (spec §6 fixes that shape), mirroring
	// how akashi's middleware mints one per inbound HTTP request.
	requestID := uuid.New().String()
	logger := p.logger.With("request_id", requestID)

	start := time.Now()
	var timings model.Timings
	resp := model.SearchResponse{}

	embedCtx, cancelEmbed := context.WithTimeout(ctx, p.cfg.StageTimeout)
	queryEmbedding, err := p.embedder.Embed(embedCtx, req.Query)
	cancelEmbed()
	if err != nil {
		return model.SearchResponse{}, errRetrievalFailed(err)
	}

	retrievalStart := time.Now()
	retrieveCtx, cancelRetrieve := context.WithTimeout(ctx, p.cfg.StageTimeout)
	candidates, err := p.retriever.Retrieve(retrieveCtx, queryEmbedding, p.cfg.RetrievalK, req.Filters)
	cancelRetrieve()
	timings.RetrievalMS = time.Since(retrievalStart)
	if err != nil {
		return model.SearchResponse{}, errRetrievalFailed(err)
	}
	if len(candidates) == 0 {
		timings.TotalMS = time.Since(start)
		resp.Timings = timings
		return resp, nil
	}

	itemIDs := make([]string, len(candidates))
	for i, c := range candidates {
		itemIDs[i] = c.ItemID
	}

	statsCtx, cancelStats := context.WithTimeout(ctx, p.cfg.StageTimeout)
	statsByItem, err := p.statsStore.GetMany(statsCtx, itemIDs)
	cancelStats()
	if err != nil {
		// StatisticsReadFailed degrades to all-zero statistics (spec §7):
		// the priors in Popularity/ExplorationEstimator prevent a
		// discontinuity, they just treat every candidate as cold-start.
		statsByItem = map[string]model.ItemStatistics{}
		if p.metrics != nil {
			p.metrics.RecordStatisticsReadFailed(ctx, logger, err)
		} else {
			logger.Warn("pipeline: statistics read failed, treating candidates as cold-start", "error", err)
		}
	}

	var rngSrc rand.Source
	if p.newRNG != nil {
		rngSrc = p.newRNG()
	}

	rankingStart := time.Now()
	scored := p.scorer.ScoreAll(candidates, statsByItem, p.cfg.RerankK, rngSrc)
	timings.RankingMS = time.Since(rankingStart)

	rerankSkipped := true
	rerankStart := time.Now()
	blended := blendWithoutRerank(scored)
	if p.cfg.RerankEnabled && p.reranker != nil {
		rerankCtx, cancelRerank := context.WithTimeout(ctx, p.cfg.StageTimeout)
		neural, err := p.reranker.Rerank(rerankCtx, req.Query, toPairs(scored))
		cancelRerank()
		if err != nil {
			logger.Warn("pipeline: rerank failed, degrading to composite ordering", "error", err)
			if p.metrics != nil {
				p.metrics.RecordRerankSkipped(ctx)
			}
		} else {
			blended = blendWithRerank(scored, neural, p.cfg.RerankBlend)
			rerankSkipped = false
		}
	}
	timings.RerankMS = time.Since(rerankStart)
	sortByBlended(blended)

	diversityStart := time.Now()
	final := p.diversifier.Diversify(blended, limit)
	timings.DiversityMS = time.Since(diversityStart)

	resp.Items = toScoredItems(final, req.IncludeScores)
	resp.RerankSkipped = rerankSkipped
	timings.TotalMS = time.Since(start)
	resp.Timings = timings

	if p.metrics != nil {
		p.metrics.RecordStageDurations(ctx,
			float64(timings.RetrievalMS.Milliseconds()),
			float64(timings.RankingMS.Milliseconds()),
			float64(timings.RerankMS.Milliseconds()),
			float64(timings.DiversityMS.Milliseconds()),
			float64(timings.TotalMS.Milliseconds()),
		)
	}

	p.recordImpressions(logger, resp.Items)
	return resp, nil
}

// recordImpressions fires impression events for every returned item,
// best-effort and asynchronous (spec §4.9 step 7, §5): the caller must not
// assume they are durable by response time, and they are never cancelled
// by the request's own context. The fan-out itself runs in one background
// goroutine bounded by impressionWorkers, so a large result page can't open
// dozens of concurrent connections against the statistics store at once.
func (p *PipelineCoordinator) recordImpressions(logger *slog.Logger, items []model.ScoredItem) {
	if len(items) == 0 {
		return
	}
	now := time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.StageTimeout)
		defer cancel()

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(impressionWorkers)

		for _, item := range items {
			itemID, rank := item.ItemID, item.Rank
			weight := p.position.Weight(rank)
			g.Go(func() error {
				if err := p.statsStore.Record(gCtx, itemID, model.EventImpression, rank, weight, now); err != nil {
					logger.Warn("pipeline: record impression failed", "item_id", itemID, "error", err)
					return nil
				}
				if p.metrics != nil {
					p.metrics.RecordFeedbackEvent(gCtx, string(model.EventImpression))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func validateRequest(req model.SearchRequest) error {
	if req.Query == "" {
		return errInvalidInput("query must not be empty")
	}
	if req.Limit < 0 || req.Limit > 100 {
		return errInvalidInput("limit must be in [1,100]")
	}
	return nil
}

func blendWithoutRerank(scored []Scored) []Blended {
	out := make([]Blended, len(scored))
	for i, s := range scored {
		out[i] = Blended{Scored: s, Blended: s.Composite}
	}
	return out
}

func blendWithRerank(scored []Scored, neural map[string]float64, lambda float64) []Blended {
	out := make([]Blended, len(scored))
	for i, s := range scored {
		n, ok := neural[s.Candidate.ItemID]
		if !ok {
			out[i] = Blended{Scored: s, Blended: s.Composite}
			continue
		}
		out[i] = Blended{Scored: s, Blended: rerank.Blend(lambda, n, s.Composite)}
	}
	return out
}

func toPairs(scored []Scored) []rerank.Pair {
	pairs := make([]rerank.Pair, len(scored))
	for i, s := range scored {
		pairs[i] = rerank.Pair{ItemID: s.Candidate.ItemID, Text: s.Candidate.TextSurface}
	}
	return pairs
}

// sortByBlended applies the same tie-break rule as the composite sort
// (spec §4.7: "Blended ordering uses the same tie-break as §4.6").
func sortByBlended(blended []Blended) {
	sort.Slice(blended, func(i, j int) bool {
		a, b := blended[i], blended[j]
		if a.Blended != b.Blended {
			return a.Blended > b.Blended
		}
		if a.Semantic != b.Semantic {
			return a.Semantic > b.Semantic
		}
		return a.Candidate.ItemID < b.Candidate.ItemID
	})
}

func toScoredItems(final []Blended, includeScores bool) []model.ScoredItem {
	items := make([]model.ScoredItem, len(final))
	for i, b := range final {
		item := model.ScoredItem{
			ItemID: b.Candidate.ItemID,
			Rank:   i + 1,
			Genre:  model.GenreOrUnknown(b.Candidate.Genre),
		}
		if includeScores {
			item.Composite = b.Composite
			item.Blended = b.Blended
			item.Semantic = b.Semantic
			item.Popularity = b.Popularity
			item.Exploration = b.Exploration
			item.Freshness = b.Freshness
			item.MMR = b.MMR
		}
		items[i] = item
	}
	return items
}

func errRetrievalFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
}

func errInvalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
