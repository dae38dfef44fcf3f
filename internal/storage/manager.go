package storage

import (
	"context"
	"fmt"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/storage/badger"
	"github.com/karimadel/borsa/internal/storage/memstore"
	"github.com/karimadel/borsa/internal/storage/surreal"
)

// Manager composes the configured market backend with the local
// BadgerHold stores for usage and analytics.
type Manager struct {
	market    interfaces.MarketStore
	usage     interfaces.UsageStore
	analytics interfaces.AnalyticsStore
	local     *badger.Store
	logger    *common.Logger
}

// NewManager builds a StorageManager for the configured driver.
//
// "surreal" keeps the market universe in SurrealDB and counters in a
// local BadgerHold store. "memory" serves everything from process memory,
// loading the seed file when one is configured.
func NewManager(ctx context.Context, cfg *common.Config, logger *common.Logger) (*Manager, error) {
	switch cfg.Storage.Driver {
	case "memory":
		mem := memstore.New(logger)
		if cfg.Storage.SeedPath != "" {
			seed, err := LoadSeedFile(cfg.Storage.SeedPath)
			if err != nil {
				return nil, err
			}
			if err := ApplySeed(ctx, mem.MarketStore(), seed, logger); err != nil {
				return nil, err
			}
		}
		logger.Info().Str("driver", "memory").Msg("Storage manager initialized")
		return &Manager{
			market:    mem.MarketStore(),
			usage:     mem.UsageStore(),
			analytics: mem.AnalyticsStore(),
			logger:    logger,
		}, nil

	case "surreal", "":
		db, err := surreal.Connect(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		local, err := badger.NewStore(logger, cfg.Storage.DataPath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", "surreal").Msg("Storage manager initialized")
		return &Manager{
			market:    surreal.NewMarketStore(db, logger),
			usage:     badger.NewUsageStorage(local, logger),
			analytics: badger.NewAnalyticsStorage(local, logger),
			local:     local,
			logger:    logger,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

func (m *Manager) MarketStore() interfaces.MarketStore       { return m.market }
func (m *Manager) UsageStore() interfaces.UsageStore         { return m.usage }
func (m *Manager) AnalyticsStore() interfaces.AnalyticsStore { return m.analytics }

func (m *Manager) Close() error {
	var firstErr error
	if err := m.market.Close(); err != nil {
		firstErr = err
	}
	if m.local != nil {
		if err := m.local.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ interfaces.StorageManager = (*Manager)(nil)
