// Package storage selects the storage driver and loads seed universes.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/nlp"
)

// SeedAlias is an alias as authored in the seed file: the raw surface
// string, not yet normalized.
type SeedAlias struct {
	Alias    string `json:"alias"`
	Symbol   string `json:"symbol"`
	Market   string `json:"market"`
	Priority int    `json:"priority"`
	Source   string `json:"source"`
}

// SeedFile is the on-disk universe: instruments, aliases, and the data
// tables behind each handler.
type SeedFile struct {
	Instruments  []*models.Instrument          `json:"instruments"`
	Aliases      []SeedAlias                   `json:"aliases"`
	Prices       map[string][]models.PricePoint `json:"prices,omitempty"`
	Income       []models.IncomeRow            `json:"income,omitempty"`
	Balance      []models.BalanceRow           `json:"balance,omitempty"`
	Cashflow     []models.CashflowRow          `json:"cashflow,omitempty"`
	Dividends    []models.Dividend             `json:"dividends,omitempty"`
	Shareholders []models.Shareholder          `json:"shareholders,omitempty"`
	News         []models.NewsItem             `json:"news,omitempty"`
	Funds        []*models.Fund                `json:"funds,omitempty"`
	Navs         map[string][]models.NavPoint  `json:"navs,omitempty"`
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed writes a seed universe into a market store. Alias strings are
// re-normalized on the way in so lookups key on the same folding the
// resolver applies to queries. Display names are registered as aliases
// too, at official-name priority.
func ApplySeed(ctx context.Context, store interfaces.MarketStore, seed *SeedFile, logger *common.Logger) error {
	for _, inst := range seed.Instruments {
		if err := store.SaveInstrument(ctx, inst); err != nil {
			return fmt.Errorf("failed to save instrument %s: %w", inst.Symbol, err)
		}
		for _, name := range []string{inst.NameEN, inst.NameAR, inst.NameNative} {
			norm := nlp.Fold(name)
			if norm == "" {
				continue
			}
			alias := &models.Alias{
				AliasNorm: norm,
				Symbol:    inst.Symbol,
				Market:    inst.Market,
				Priority:  10,
				Source:    models.AliasSourceOfficial,
			}
			if err := store.SaveAlias(ctx, alias); err != nil {
				return fmt.Errorf("failed to save name alias for %s: %w", inst.Symbol, err)
			}
		}
	}

	skipped := 0
	for _, sa := range seed.Aliases {
		norm := nlp.Fold(sa.Alias)
		if norm == "" {
			skipped++
			continue
		}
		alias := &models.Alias{
			AliasNorm: norm,
			Symbol:    sa.Symbol,
			Market:    sa.Market,
			Priority:  sa.Priority,
			Source:    sa.Source,
		}
		if err := store.SaveAlias(ctx, alias); err != nil {
			return fmt.Errorf("failed to save alias %q: %w", sa.Alias, err)
		}
	}
	if skipped > 0 {
		logger.Warn().Int("count", skipped).Msg("Seed aliases empty after normalization, skipped")
	}

	for symbol, points := range seed.Prices {
		if err := store.SavePricePoints(ctx, symbol, points); err != nil {
			return fmt.Errorf("failed to save prices for %s: %w", symbol, err)
		}
	}
	for i := range seed.Income {
		if err := store.SaveIncomeRow(ctx, &seed.Income[i]); err != nil {
			return fmt.Errorf("failed to save income row: %w", err)
		}
	}
	for i := range seed.Balance {
		if err := store.SaveBalanceRow(ctx, &seed.Balance[i]); err != nil {
			return fmt.Errorf("failed to save balance row: %w", err)
		}
	}
	for i := range seed.Cashflow {
		if err := store.SaveCashflowRow(ctx, &seed.Cashflow[i]); err != nil {
			return fmt.Errorf("failed to save cashflow row: %w", err)
		}
	}
	for i := range seed.Dividends {
		if err := store.SaveDividend(ctx, &seed.Dividends[i]); err != nil {
			return fmt.Errorf("failed to save dividend: %w", err)
		}
	}
	for i := range seed.Shareholders {
		if err := store.SaveShareholder(ctx, &seed.Shareholders[i]); err != nil {
			return fmt.Errorf("failed to save shareholder: %w", err)
		}
	}
	for i := range seed.News {
		if err := store.SaveNews(ctx, &seed.News[i]); err != nil {
			return fmt.Errorf("failed to save news item: %w", err)
		}
	}
	for _, f := range seed.Funds {
		if err := store.SaveFund(ctx, f); err != nil {
			return fmt.Errorf("failed to save fund %s: %w", f.FundID, err)
		}
	}
	for fundID, points := range seed.Navs {
		if err := store.SaveNavPoints(ctx, fundID, points); err != nil {
			return fmt.Errorf("failed to save NAV series for %s: %w", fundID, err)
		}
	}

	logger.Info().
		Int("instruments", len(seed.Instruments)).
		Int("aliases", len(seed.Aliases)).
		Int("funds", len(seed.Funds)).
		Msg("Seed universe applied")
	return nil
}
