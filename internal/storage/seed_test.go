package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/storage/memstore"
)

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.json")
	content := `{
		"instruments": [
			{"symbol": "COMI", "market": "EGX", "entity_type": "stock",
			 "name_en": "Commercial International Bank", "name_ar": "البنك التجاري الدولي",
			 "sector": "banks", "currency": "EGP", "last_price": 82.5}
		],
		"aliases": [
			{"alias": "CIB", "symbol": "COMI", "market": "EGX", "priority": 8, "source": "abbreviation"}
		],
		"funds": [
			{"fund_id": "AZIMUT-EQ", "name_en": "Azimut Egypt Equity Fund",
			 "name_ar": "صندوق ازيموت مصر للاسهم", "currency": "EGP", "latest_nav": 312.4}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seed.Instruments, 1)
	assert.Equal(t, "COMI", seed.Instruments[0].Symbol)
	require.Len(t, seed.Aliases, 1)
	require.Len(t, seed.Funds, 1)
}

func TestLoadSeedFileMissing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadSeedFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadSeedFile(path)
	assert.Error(t, err)
}

func TestApplySeed(t *testing.T) {
	logger := common.NewSilentLogger()
	store := memstore.New(logger)
	ctx := context.Background()

	seed := &SeedFile{
		Instruments: []*models.Instrument{
			{
				Symbol: "COMI", Market: "EGX", EntityType: models.EntityStock,
				NameEN: "Commercial International Bank", NameAR: "البنك التجاري الدولي",
				Currency: "EGP", LastPrice: 82.5,
			},
		},
		Aliases: []SeedAlias{
			// Authored with punctuation and case; stored folded.
			{Alias: "  C.I.B  ", Symbol: "COMI", Market: "EGX", Priority: 8, Source: models.AliasSourceAbbreviation},
			{Alias: "؟", Symbol: "COMI", Market: "EGX", Priority: 1, Source: models.AliasSourceNickname},
		},
		Prices: map[string][]models.PricePoint{
			"COMI": {{Date: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), Close: 82.5}},
		},
		Funds: []*models.Fund{
			{FundID: "AZIMUT-EQ", NameEN: "Azimut Egypt Equity Fund", Currency: "EGP", LatestNAV: 312.4},
		},
	}

	require.NoError(t, ApplySeed(ctx, store, seed, logger))

	inst, err := store.GetInstrument(ctx, "COMI")
	require.NoError(t, err)
	assert.Equal(t, 82.5, inst.LastPrice)

	// The English and Arabic display names become official aliases.
	en, err := store.GetAliases(ctx, "commercial international bank")
	require.NoError(t, err)
	require.Len(t, en, 1)
	assert.Equal(t, 10, en[0].Priority)
	ar, err := store.GetAliases(ctx, "البنك التجاري الدولي")
	require.NoError(t, err)
	assert.Len(t, ar, 1)

	// The authored alias is folded before storage.
	folded, err := store.GetAliases(ctx, "c i b")
	require.NoError(t, err)
	require.Len(t, folded, 1)
	assert.Equal(t, models.AliasSourceAbbreviation, folded[0].Source)

	// Punctuation-only aliases fold to nothing and are skipped.
	empty, err := store.GetAliases(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	points, err := store.GetPriceSeries(ctx, "COMI",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, points, 1)

	fund, err := store.GetFund(ctx, "AZIMUT-EQ")
	require.NoError(t, err)
	assert.Equal(t, 312.4, fund.LatestNAV)
}
