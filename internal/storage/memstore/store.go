// Package memstore is the in-memory storage driver. It backs local
// development and tests, and loads its universe from a seed file.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// Store holds every table in process memory. Safe for concurrent use.
type Store struct {
	logger *common.Logger

	mu           sync.RWMutex
	instruments  map[string]*models.Instrument // upper symbol
	aliases      map[string][]*models.Alias    // alias_norm
	prices       map[string][]models.PricePoint
	income       map[string][]models.IncomeRow
	balance      map[string][]models.BalanceRow
	cashflow     map[string][]models.CashflowRow
	dividends    map[string][]models.Dividend
	shareholders map[string][]models.Shareholder
	news         map[string][]models.NewsItem
	funds        map[string]*models.Fund
	navs         map[string][]models.NavPoint
	usage        map[string]*models.UsageRecord
	events       []*models.AnalyticsEvent
}

// New creates an empty store.
func New(logger *common.Logger) *Store {
	return &Store{
		logger:       logger,
		instruments:  map[string]*models.Instrument{},
		aliases:      map[string][]*models.Alias{},
		prices:       map[string][]models.PricePoint{},
		income:       map[string][]models.IncomeRow{},
		balance:      map[string][]models.BalanceRow{},
		cashflow:     map[string][]models.CashflowRow{},
		dividends:    map[string][]models.Dividend{},
		shareholders: map[string][]models.Shareholder{},
		news:         map[string][]models.NewsItem{},
		funds:        map[string]*models.Fund{},
		navs:         map[string][]models.NavPoint{},
		usage:        map[string]*models.UsageRecord{},
	}
}

// StorageManager surface. The memory driver serves all three stores.

func (s *Store) MarketStore() interfaces.MarketStore       { return s }
func (s *Store) UsageStore() interfaces.UsageStore         { return s }
func (s *Store) AnalyticsStore() interfaces.AnalyticsStore { return s }

func (s *Store) Close() error { return nil }

// --- instruments ---

func (s *Store) GetInstrument(_ context.Context, symbol string) (*models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instruments[strings.ToUpper(symbol)]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (s *Store) GetInstrumentsBatch(ctx context.Context, symbols []string) ([]*models.Instrument, error) {
	out := make([]*models.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		inst, err := s.GetInstrument(ctx, sym)
		if err != nil {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *Store) ListInstruments(_ context.Context) ([]*models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Store) ListBySector(_ context.Context, sector string) ([]*models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Instrument
	for _, inst := range s.instruments {
		if strings.EqualFold(inst.Sector, sector) {
			cp := *inst
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketCap != nil && out[j].MarketCap != nil && *out[i].MarketCap != *out[j].MarketCap {
			return *out[i].MarketCap > *out[j].MarketCap
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (s *Store) TopMovers(_ context.Context, direction string, limit int) ([]*models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Instrument
	for _, inst := range s.instruments {
		if inst.EntityType != models.EntityStock {
			continue
		}
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if direction == "losers" {
			return out[i].ChangePercent < out[j].ChangePercent
		}
		return out[i].ChangePercent > out[j].ChangePercent
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveInstrument(_ context.Context, inst *models.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inst
	s.instruments[strings.ToUpper(inst.Symbol)] = &cp
	return nil
}

// --- aliases ---

func (s *Store) GetAliases(_ context.Context, aliasNorm string) ([]*models.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Alias(nil), s.aliases[aliasNorm]...), nil
}

func (s *Store) ListAliases(_ context.Context) ([]*models.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Alias
	for _, list := range s.aliases {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AliasNorm != out[j].AliasNorm {
			return out[i].AliasNorm < out[j].AliasNorm
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (s *Store) SaveAlias(_ context.Context, alias *models.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alias
	list := s.aliases[alias.AliasNorm]
	for i, existing := range list {
		if existing.Symbol == alias.Symbol && existing.Market == alias.Market {
			list[i] = &cp
			return nil
		}
	}
	s.aliases[alias.AliasNorm] = append(list, &cp)
	return nil
}

// --- price series ---

func (s *Store) GetPriceSeries(_ context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PricePoint
	for _, p := range s.prices[strings.ToUpper(symbol)] {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) SavePricePoints(_ context.Context, symbol string, points []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(symbol)
	s.prices[key] = append(s.prices[key], points...)
	return nil
}

// --- financial statements ---

func (s *Store) GetIncomeRows(_ context.Context, symbol, periodType string, limit int) ([]models.IncomeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.IncomeRow
	for _, r := range s.income[strings.ToUpper(symbol)] {
		if periodType == "" || r.PeriodType == periodType {
			out = append(out, r)
		}
	}
	sortPeriodsDesc(out, func(r models.IncomeRow) time.Time { return r.PeriodEnding })
	return capRows(out, limit), nil
}

func (s *Store) GetBalanceRows(_ context.Context, symbol, periodType string, limit int) ([]models.BalanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.BalanceRow
	for _, r := range s.balance[strings.ToUpper(symbol)] {
		if periodType == "" || r.PeriodType == periodType {
			out = append(out, r)
		}
	}
	sortPeriodsDesc(out, func(r models.BalanceRow) time.Time { return r.PeriodEnding })
	return capRows(out, limit), nil
}

func (s *Store) GetCashflowRows(_ context.Context, symbol, periodType string, limit int) ([]models.CashflowRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CashflowRow
	for _, r := range s.cashflow[strings.ToUpper(symbol)] {
		if periodType == "" || r.PeriodType == periodType {
			out = append(out, r)
		}
	}
	sortPeriodsDesc(out, func(r models.CashflowRow) time.Time { return r.PeriodEnding })
	return capRows(out, limit), nil
}

func (s *Store) SaveIncomeRow(_ context.Context, row *models.IncomeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(row.Symbol)
	s.income[key] = append(s.income[key], *row)
	return nil
}

func (s *Store) SaveBalanceRow(_ context.Context, row *models.BalanceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(row.Symbol)
	s.balance[key] = append(s.balance[key], *row)
	return nil
}

func (s *Store) SaveCashflowRow(_ context.Context, row *models.CashflowRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(row.Symbol)
	s.cashflow[key] = append(s.cashflow[key], *row)
	return nil
}

// --- corporate data ---

func (s *Store) GetDividends(_ context.Context, symbol string, limit int) ([]models.Dividend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Dividend(nil), s.dividends[strings.ToUpper(symbol)]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ExDate.After(out[j].ExDate) })
	return capRows(out, limit), nil
}

func (s *Store) SaveDividend(_ context.Context, d *models.Dividend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(d.Symbol)
	s.dividends[key] = append(s.dividends[key], *d)
	return nil
}

func (s *Store) GetShareholders(_ context.Context, symbol string) ([]models.Shareholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Shareholder(nil), s.shareholders[strings.ToUpper(symbol)]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OwnershipPercent > out[j].OwnershipPercent })
	return out, nil
}

func (s *Store) SaveShareholder(_ context.Context, sh *models.Shareholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(sh.Symbol)
	s.shareholders[key] = append(s.shareholders[key], *sh)
	return nil
}

func (s *Store) GetNews(_ context.Context, symbol string, limit int) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.NewsItem(nil), s.news[strings.ToUpper(symbol)]...)
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return capRows(out, limit), nil
}

func (s *Store) SaveNews(_ context.Context, item *models.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(item.Symbol)
	s.news[key] = append(s.news[key], *item)
	return nil
}

// --- funds ---

func (s *Store) GetFund(_ context.Context, fundID string) (*models.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.funds[fundID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *Store) ListFunds(_ context.Context) ([]*models.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Fund, 0, len(s.funds))
	for _, f := range s.funds {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FundID < out[j].FundID })
	return out, nil
}

func (s *Store) SaveFund(_ context.Context, fund *models.Fund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fund
	s.funds[fund.FundID] = &cp
	return nil
}

func (s *Store) GetNavSeries(_ context.Context, fundID string, from, to time.Time) ([]models.NavPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.NavPoint
	for _, p := range s.navs[fundID] {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) SaveNavPoints(_ context.Context, fundID string, points []models.NavPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navs[fundID] = append(s.navs[fundID], points...)
	return nil
}

// --- usage ---

func (s *Store) Increment(_ context.Context, principal, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.UsageKey(principal, period)
	rec, ok := s.usage[key]
	if !ok {
		rec = &models.UsageRecord{Key: key, Principal: principal, Period: period}
		s.usage[key] = rec
	}
	rec.Count++
	rec.UpdatedAt = time.Now().UTC()
	return rec.Count, nil
}

func (s *Store) Get(_ context.Context, principal, period string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.usage[models.UsageKey(principal, period)]
	if !ok {
		return 0, nil
	}
	return rec.Count, nil
}

// --- analytics ---

func (s *Store) SaveEvent(_ context.Context, event *models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) ListEvents(_ context.Context, sessionID string, limit int) ([]*models.AnalyticsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AnalyticsEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if sessionID != "" && s.events[i].SessionID != sessionID {
			continue
		}
		cp := *s.events[i]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- helpers ---

func sortPeriodsDesc[T any](rows []T, ending func(T) time.Time) {
	sort.Slice(rows, func(i, j int) bool { return ending(rows[i]).After(ending(rows[j])) })
}

func capRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

var (
	_ interfaces.StorageManager = (*Store)(nil)
	_ interfaces.MarketStore    = (*Store)(nil)
	_ interfaces.UsageStore     = (*Store)(nil)
	_ interfaces.AnalyticsStore = (*Store)(nil)
)
