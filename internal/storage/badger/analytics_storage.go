package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

const maxAnalyticsRecords = 10000

type analyticsStorage struct {
	store  *Store
	logger *common.Logger
}

// NewAnalyticsStorage creates an AnalyticsStore backed by BadgerHold.
func NewAnalyticsStorage(store *Store, logger *common.Logger) interfaces.AnalyticsStore {
	return &analyticsStorage{store: store, logger: logger}
}

func (s *analyticsStorage) SaveEvent(_ context.Context, event *models.AnalyticsEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := s.store.db.Upsert(event.ID, event); err != nil {
		return fmt.Errorf("failed to save analytics event: %w", err)
	}

	s.pruneOldRecords()
	return nil
}

func (s *analyticsStorage) ListEvents(_ context.Context, sessionID string, limit int) ([]*models.AnalyticsEvent, error) {
	var query *badgerhold.Query
	if sessionID != "" {
		query = badgerhold.Where("SessionID").Eq(sessionID)
	}

	var records []models.AnalyticsEvent
	if err := s.store.db.Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out := make([]*models.AnalyticsEvent, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}

func (s *analyticsStorage) pruneOldRecords() {
	var records []models.AnalyticsEvent
	if err := s.store.db.Find(&records, nil); err != nil || len(records) <= maxAnalyticsRecords {
		return
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	for _, old := range records[maxAnalyticsRecords:] {
		if err := s.store.db.Delete(old.ID, models.AnalyticsEvent{}); err != nil {
			s.logger.Warn().Err(err).Str("id", old.ID).Msg("Failed to prune analytics event")
		}
	}
}

var _ interfaces.AnalyticsStore = (*analyticsStorage)(nil)
