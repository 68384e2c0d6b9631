package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the instruments a PipelineCoordinator records to on
// every search: one histogram per stage, plus the degradation counters
// named in SPEC_FULL's supplemented-features list (rerank_skipped,
// statistics_read_failed).
type PipelineMetrics struct {
	retrievalDuration metric.Float64Histogram
	rankingDuration    metric.Float64Histogram
	rerankDuration     metric.Float64Histogram
	diversityDuration  metric.Float64Histogram
	totalDuration      metric.Float64Histogram

	feedbackEvents    metric.Int64Counter
	rerankSkipped      metric.Int64Counter
	statisticsReadFail metric.Int64Counter
}

// NewPipelineMetrics builds every instrument from the global meter. Safe to
// call even when OTEL is disabled — the global meter is then a no-op and
// every instrument silently discards what it's given.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	m := Meter("sonora/ranking")

	retrievalDuration, err := m.Float64Histogram("sonora.stage.retrieval_ms", metric.WithDescription("Retriever stage wall-clock duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	rankingDuration, err := m.Float64Histogram("sonora.stage.ranking_ms", metric.WithDescription("Scorer stage wall-clock duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	rerankDuration, err := m.Float64Histogram("sonora.stage.rerank_ms", metric.WithDescription("Reranker stage wall-clock duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	diversityDuration, err := m.Float64Histogram("sonora.stage.diversity_ms", metric.WithDescription("Diversifier stage wall-clock duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	totalDuration, err := m.Float64Histogram("sonora.stage.total_ms", metric.WithDescription("End-to-end search wall-clock duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	feedbackEvents, err := m.Int64Counter("sonora.feedback.events", metric.WithDescription("Feedback events recorded, by kind"))
	if err != nil {
		return nil, err
	}
	rerankSkipped, err := m.Int64Counter("sonora.pipeline.rerank_skipped", metric.WithDescription("Searches that fell back to pure-composite ordering"))
	if err != nil {
		return nil, err
	}
	statisticsReadFail, err := m.Int64Counter("sonora.pipeline.statistics_read_failed", metric.WithDescription("Searches that treated statistics as cold-start after a read failure"))
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		retrievalDuration:  retrievalDuration,
		rankingDuration:    rankingDuration,
		rerankDuration:     rerankDuration,
		diversityDuration:  diversityDuration,
		totalDuration:      totalDuration,
		feedbackEvents:     feedbackEvents,
		rerankSkipped:      rerankSkipped,
		statisticsReadFail: statisticsReadFail,
	}, nil
}

// RecordStageDurations records one search's per-stage timings in milliseconds.
func (m *PipelineMetrics) RecordStageDurations(ctx context.Context, retrievalMS, rankingMS, rerankMS, diversityMS, totalMS float64) {
	m.retrievalDuration.Record(ctx, retrievalMS)
	m.rankingDuration.Record(ctx, rankingMS)
	m.rerankDuration.Record(ctx, rerankMS)
	m.diversityDuration.Record(ctx, diversityMS)
	m.totalDuration.Record(ctx, totalMS)
}

// RecordFeedbackEvent increments the feedback counter for one recorded event.
func (m *PipelineMetrics) RecordFeedbackEvent(ctx context.Context, kind string) {
	m.feedbackEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordRerankSkipped increments the degradation counter for a search that
// fell back to pure-composite ordering.
func (m *PipelineMetrics) RecordRerankSkipped(ctx context.Context) {
	m.rerankSkipped.Add(ctx, 1)
}

// RecordStatisticsReadFailed increments the degradation counter for a search
// that treated its candidate set as cold-start after a statistics read error.
func (m *PipelineMetrics) RecordStatisticsReadFailed(ctx context.Context, logger *slog.Logger, err error) {
	m.statisticsReadFail.Add(ctx, 1)
	if logger != nil {
		logger.Warn("pipeline: statistics read failed, treating candidates as cold-start", "error", err)
	}
}
