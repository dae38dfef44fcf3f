package chat

import (
	"context"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *common.Logger
}

func NewLogSink(logger *common.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event *models.AnalyticsEvent) {
	s.logger.Info().
		Str("session_id", event.SessionID).
		Str("intent", string(event.Intent)).
		Float64("confidence", event.Confidence).
		Strs("symbols", event.ResolvedSymbols).
		Int64("latency_ms", event.LatencyMS).
		Str("language", event.Language).
		Bool("success", event.Success).
		Str("error_kind", event.ErrorKind).
		Msg("chat message processed")
}

// StoreSink persists events to the analytics store.
type StoreSink struct {
	store  interfaces.AnalyticsStore
	logger *common.Logger
}

func NewStoreSink(store interfaces.AnalyticsStore, logger *common.Logger) *StoreSink {
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Emit(ctx context.Context, event *models.AnalyticsEvent) {
	if err := s.store.SaveEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist analytics event")
	}
}

// MultiSink fans one event out to several sinks.
type MultiSink struct {
	sinks []interfaces.AnalyticsSink
}

func NewMultiSink(sinks ...interfaces.AnalyticsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (s *MultiSink) Emit(ctx context.Context, event *models.AnalyticsEvent) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, event)
	}
}

var (
	_ interfaces.AnalyticsSink = (*LogSink)(nil)
	_ interfaces.AnalyticsSink = (*StoreSink)(nil)
	_ interfaces.AnalyticsSink = (*MultiSink)(nil)
)
