// Package interfaces defines service contracts for Borsa
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/karimadel/borsa/internal/models"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// StorageManager coordinates the storage backends.
type StorageManager interface {
	MarketStore() MarketStore
	UsageStore() UsageStore
	AnalyticsStore() AnalyticsStore
	Close() error
}

// MarketStore is the read surface the handlers depend on, plus the save
// operations the seed tool uses. Implementations: SurrealDB and the
// in-memory seed driver.
type MarketStore interface {
	// Instruments
	GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error)
	GetInstrumentsBatch(ctx context.Context, symbols []string) ([]*models.Instrument, error)
	ListInstruments(ctx context.Context) ([]*models.Instrument, error)
	ListBySector(ctx context.Context, sector string) ([]*models.Instrument, error)
	TopMovers(ctx context.Context, direction string, limit int) ([]*models.Instrument, error)
	SaveInstrument(ctx context.Context, inst *models.Instrument) error

	// Aliases. GetAliases returns every market's binding for a folded string.
	GetAliases(ctx context.Context, aliasNorm string) ([]*models.Alias, error)
	ListAliases(ctx context.Context) ([]*models.Alias, error)
	SaveAlias(ctx context.Context, alias *models.Alias) error

	// Price series
	GetPriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error)
	SavePricePoints(ctx context.Context, symbol string, points []models.PricePoint) error

	// Financial statements, latest period first.
	GetIncomeRows(ctx context.Context, symbol, periodType string, limit int) ([]models.IncomeRow, error)
	GetBalanceRows(ctx context.Context, symbol, periodType string, limit int) ([]models.BalanceRow, error)
	GetCashflowRows(ctx context.Context, symbol, periodType string, limit int) ([]models.CashflowRow, error)
	SaveIncomeRow(ctx context.Context, row *models.IncomeRow) error
	SaveBalanceRow(ctx context.Context, row *models.BalanceRow) error
	SaveCashflowRow(ctx context.Context, row *models.CashflowRow) error

	// Corporate data
	GetDividends(ctx context.Context, symbol string, limit int) ([]models.Dividend, error)
	SaveDividend(ctx context.Context, d *models.Dividend) error
	GetShareholders(ctx context.Context, symbol string) ([]models.Shareholder, error)
	SaveShareholder(ctx context.Context, sh *models.Shareholder) error
	GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsItem, error)
	SaveNews(ctx context.Context, item *models.NewsItem) error

	// Funds
	GetFund(ctx context.Context, fundID string) (*models.Fund, error)
	ListFunds(ctx context.Context) ([]*models.Fund, error)
	SaveFund(ctx context.Context, fund *models.Fund) error
	GetNavSeries(ctx context.Context, fundID string, from, to time.Time) ([]models.NavPoint, error)
	SaveNavPoints(ctx context.Context, fundID string, points []models.NavPoint) error

	Close() error
}

// UsageStore persists per-principal daily counters.
type UsageStore interface {
	// Increment bumps the counter for (principal, period) and returns the
	// new count. The first call of a day creates the record at 1.
	Increment(ctx context.Context, principal, period string) (int, error)
	Get(ctx context.Context, principal, period string) (int, error)
}

// AnalyticsStore persists analytics events when the store sink is active.
type AnalyticsStore interface {
	SaveEvent(ctx context.Context, event *models.AnalyticsEvent) error
	ListEvents(ctx context.Context, sessionID string, limit int) ([]*models.AnalyticsEvent, error)
}
