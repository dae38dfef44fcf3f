package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

type usageStorage struct {
	store  *Store
	logger *common.Logger
	mu     sync.Mutex
}

// NewUsageStorage creates a UsageStore backed by BadgerHold.
func NewUsageStorage(store *Store, logger *common.Logger) interfaces.UsageStore {
	return &usageStorage{store: store, logger: logger}
}

// Increment is serialized; read-modify-write on one counter must not race
// with a concurrent request from the same principal.
func (s *usageStorage) Increment(_ context.Context, principal, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.UsageKey(principal, period)
	var record models.UsageRecord
	err := s.store.db.Get(key, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		record = models.UsageRecord{Key: key, Principal: principal, Period: period}
	} else if err != nil {
		return 0, fmt.Errorf("failed to read usage record: %w", err)
	}

	record.Count++
	record.UpdatedAt = time.Now().UTC()
	if err := s.store.db.Upsert(key, &record); err != nil {
		return 0, fmt.Errorf("failed to save usage record: %w", err)
	}
	return record.Count, nil
}

func (s *usageStorage) Get(_ context.Context, principal, period string) (int, error) {
	var record models.UsageRecord
	err := s.store.db.Get(models.UsageKey(principal, period), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage record: %w", err)
	}
	return record.Count, nil
}

var _ interfaces.UsageStore = (*usageStorage)(nil)
