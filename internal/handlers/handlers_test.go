package handlers

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/storage/memstore"
)

func testRegistry(t *testing.T) (*Registry, *memstore.Store) {
	t.Helper()
	logger := common.NewSilentLogger()
	store := memstore.New(logger)
	ctx := context.Background()

	pe := 6.2
	dy := 4.1
	cap1 := 245_000_000_000.0
	instruments := []*models.Instrument{
		{
			Symbol: "COMI", Market: "EGX", EntityType: models.EntityStock,
			NameEN: "Commercial International Bank", NameAR: "البنك التجاري الدولي",
			Sector: "banks", Currency: "EGP",
			LastPrice: 82.5, Change: 0.98, ChangePercent: 1.2, Volume: 3_450_000,
			Open: 81.7, High: 83.0, Low: 81.2, PrevClose: 81.52,
			PERatio: &pe, DividendYield: &dy, MarketCap: &cap1,
		},
		{
			Symbol: "SWDY", Market: "EGX", EntityType: models.EntityStock,
			NameEN: "Elsewedy Electric", NameAR: "السويدي اليكتريك",
			Sector: "industrials", Currency: "EGP",
			LastPrice: 71.3, ChangePercent: -2.4, Volume: 1_200_000,
		},
		{
			Symbol: "HRHO", Market: "EGX", EntityType: models.EntityStock,
			NameEN: "EFG Holding", NameAR: "اي اف جي القابضه",
			Sector: "banks", Currency: "EGP",
			LastPrice: 19.8, ChangePercent: 5.6, Volume: 0, // suspended today
		},
	}
	for _, inst := range instruments {
		require.NoError(t, store.SaveInstrument(ctx, inst))
	}

	now := time.Now().UTC()
	points := make([]models.PricePoint, 0, 20)
	for i := 19; i >= 0; i-- {
		points = append(points, models.PricePoint{
			Date:  now.AddDate(0, 0, -i),
			Close: 80 + float64(19-i)*0.1,
			Open:  80, High: 83, Low: 79, Volume: 1000,
		})
	}
	require.NoError(t, store.SavePricePoints(ctx, "COMI", points))

	ret := 18.5
	require.NoError(t, store.SaveFund(ctx, &models.Fund{
		FundID: "AZIMUT-EQ", NameEN: "Azimut Egypt Equity Fund", NameAR: "صندوق ازيموت مصر للاسهم",
		Manager: "Azimut Egypt", Currency: "EGP", LatestNAV: 312.4, AsOfDate: now, Return1Y: &ret,
	}))

	return NewRegistry(store, logger), store
}

func dispatch(t *testing.T, r *Registry, intent models.Intent, entities models.Entities) *models.ResponseEnvelope {
	t.Helper()
	env := r.Dispatch(context.Background(), intent, &Request{
		Entities: entities,
		Language: "en",
	})
	require.NotNil(t, env)
	return env
}

func TestHandleStockPrice(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentStockPrice, models.Entities{Symbol: "COMI"})

	assert.True(t, env.Success)
	assert.Contains(t, env.MessageText, "82.50")
	require.NotNil(t, env.FirstCard(models.CardStockHeader))
	snap := env.FirstCard(models.CardSnapshot)
	require.NotNil(t, snap)
	assert.Equal(t, 82.5, snap.Snapshot.LastPrice)
	assert.NotEmpty(t, env.Actions)
}

func TestHandleStockPriceArabic(t *testing.T) {
	r, _ := testRegistry(t)
	env := r.Dispatch(context.Background(), models.IntentStockPrice, &Request{
		Entities: models.Entities{Symbol: "COMI"},
		Language: "ar",
	})
	assert.True(t, env.Success)
	assert.Equal(t, "ar", env.Language)
	assert.Contains(t, env.MessageText, "البنك التجاري الدولي")
}

func TestHandleStockSnapshotStats(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentStockSnapshot, models.Entities{Symbol: "COMI"})

	assert.True(t, env.Success)
	stats := env.FirstCard(models.CardStats)
	require.NotNil(t, stats)
	require.Len(t, stats.Stats.Rows, 4)
	require.NotNil(t, stats.Stats.Rows[0].Value)
	assert.Equal(t, 6.2, *stats.Stats.Rows[0].Value)
	// P/B was never supplied; its value must be null, not zero.
	assert.Nil(t, stats.Stats.Rows[1].Value)
}

func TestHandleStockChart(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentStockChart, models.Entities{Symbol: "COMI", Range: "1M"})

	assert.True(t, env.Success)
	chart := env.FirstCard(models.CardChart)
	require.NotNil(t, chart)
	assert.Equal(t, "1M", chart.Chart.Range)
	assert.NotEmpty(t, chart.Chart.Points)
	assert.Contains(t, chart.Chart.ImageURL, "/api/chart/COMI.png")
}

func TestHandleStockChartNoHistory(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentStockChart, models.Entities{Symbol: "SWDY"})

	assert.False(t, env.Success)
	assert.Equal(t, models.ErrNoData, env.ErrorKind())
}

func TestHandleUnknownSymbol(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentStockPrice, models.Entities{Symbol: "XXXX"})

	assert.False(t, env.Success)
	assert.Equal(t, models.ErrSymbolNotFound, env.ErrorKind())
}

func TestHandleCompare(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentCompare, models.Entities{Symbols: []string{"COMI", "SWDY"}})

	assert.True(t, env.Success)
	card := env.FirstCard(models.CardComparison)
	require.NotNil(t, card)
	require.Len(t, card.Comparison.Rows, 2)
	assert.Equal(t, models.ComparisonMetrics, card.Comparison.Metrics)

	comi := card.Comparison.Rows[0]
	require.NotNil(t, comi.Values["last_price"])
	assert.Equal(t, 82.5, *comi.Values["last_price"])
	// SWDY has no P/E on record; the cell is null.
	assert.Nil(t, card.Comparison.Rows[1].Values["pe_ratio"])
}

// reversedBatchStore returns batch reads in the reverse of the requested
// order, as a driver that iterates by record ID may.
type reversedBatchStore struct {
	interfaces.MarketStore
}

func (s reversedBatchStore) GetInstrumentsBatch(ctx context.Context, symbols []string) ([]*models.Instrument, error) {
	out, err := s.MarketStore.GetInstrumentsBatch(ctx, symbols)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, err
}

func TestHandleCompareRowsFollowRequestOrder(t *testing.T) {
	_, store := testRegistry(t)
	r := NewRegistry(reversedBatchStore{MarketStore: store}, common.NewSilentLogger())
	env := dispatch(t, r, models.IntentCompare, models.Entities{Symbols: []string{"COMI", "SWDY"}})

	require.True(t, env.Success)
	card := env.FirstCard(models.CardComparison)
	require.NotNil(t, card)
	require.Len(t, card.Comparison.Rows, 2)
	assert.Equal(t, "COMI", card.Comparison.Rows[0].Symbol)
	assert.Equal(t, "SWDY", card.Comparison.Rows[1].Symbol)
}

func TestHandleCompareNeedsTwoSymbols(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentCompare, models.Entities{Symbols: []string{"COMI"}})
	assert.False(t, env.Success)
}

func TestHandleMarketMoversSkipsZeroVolume(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentMarketMovers, models.Entities{Direction: "gainers"})

	assert.True(t, env.Success)
	stats := env.FirstCard(models.CardStats)
	require.NotNil(t, stats)
	for _, row := range stats.Stats.Rows {
		// HRHO gained the most but did not trade.
		assert.NotContains(t, row.Label, "HRHO")
	}
}

func statValue(t *testing.T, card *models.StatsCard, label string) *float64 {
	t.Helper()
	for _, row := range card.Rows {
		if row.Label == label {
			return row.Value
		}
	}
	t.Fatalf("no %q row in stats card", label)
	return nil
}

func TestHandleFairValueGrahamEstimate(t *testing.T) {
	r, store := testRegistry(t)
	ctx := context.Background()
	pe, pb := 8.0, 1.6
	require.NoError(t, store.SaveInstrument(ctx, &models.Instrument{
		Symbol: "QNBA", Market: "EGX", EntityType: models.EntityStock,
		NameEN: "Qatar National Bank Alahly", NameAR: "بنك قطر الوطني الاهلي",
		Sector: "banks", Currency: "EGP", LastPrice: 24.0, Volume: 900_000,
		PERatio: &pe, PBRatio: &pb,
	}))
	eps := 3.0
	require.NoError(t, store.SaveIncomeRow(ctx, &models.IncomeRow{
		Symbol: "QNBA",
		FinancialPeriod: models.FinancialPeriod{
			PeriodType: "annual", FiscalYear: 2025,
			PeriodEnding: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Currency: "EGP", EPS: &eps,
	}))

	env := dispatch(t, r, models.IntentFairValue, models.Entities{Symbol: "QNBA"})
	require.True(t, env.Success)
	assert.Contains(t, env.MessageText, "estimate")
	card := env.FirstCard(models.CardStats)
	require.NotNil(t, card)

	// BVPS derives from price over P/B: 24.0 / 1.6 = 15.0.
	bvps := statValue(t, card.Stats, "Book Value / Share")
	require.NotNil(t, bvps)
	assert.InDelta(t, 15.0, *bvps, 0.001)

	graham := statValue(t, card.Stats, "Graham Estimate")
	require.NotNil(t, graham)
	assert.InDelta(t, math.Sqrt(22.5*3.0*15.0), *graham, 0.01)

	// COMI is the only banks peer with a P/E on record.
	implied := statValue(t, card.Stats, "Implied at Sector P/E")
	require.NotNil(t, implied)
	assert.InDelta(t, 3.0*6.2, *implied, 0.01)
}

func TestHandleFairValueNoRatios(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentFairValue, models.Entities{Symbol: "HRHO"})
	assert.False(t, env.Success)
	assert.Equal(t, models.ErrNoData, env.ErrorKind())
}

func TestHandleTechnicalIndicators(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentTechnicals, models.Entities{Symbol: "COMI"})

	require.True(t, env.Success)
	card := env.FirstCard(models.CardStats)
	require.NotNil(t, card)

	// 20 stored bars: the 20-day average exists, the longer ones do not.
	sma20 := statValue(t, card.Stats, "SMA 20")
	require.NotNil(t, sma20)
	assert.Nil(t, statValue(t, card.Stats, "SMA 50"))
	assert.Nil(t, statValue(t, card.Stats, "SMA 200"))

	for _, row := range card.Stats.Rows {
		if row.Label == "SMA 20" {
			assert.Contains(t, row.Note, "vs avg")
		}
	}

	// Monotonically rising closes saturate the RSI.
	rsi14 := statValue(t, card.Stats, "RSI 14")
	require.NotNil(t, rsi14)
	assert.Equal(t, 100.0, *rsi14)
}

func TestHandleSectorStocks(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentSectorStocks, models.Entities{Sector: "banks"})

	assert.True(t, env.Success)
	stats := env.FirstCard(models.CardStats)
	require.NotNil(t, stats)
	assert.Len(t, stats.Stats.Rows, 2)
}

func TestHandleFundNAV(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentFundNAV, models.Entities{FundID: "AZIMUT-EQ"})

	assert.True(t, env.Success)
	profile := env.FirstCard(models.CardFundProfile)
	require.NotNil(t, profile)
	assert.Equal(t, "AZIMUT-EQ", profile.FundProfile.FundID)
	snap := env.FirstCard(models.CardSnapshot)
	require.NotNil(t, snap)
	require.NotNil(t, snap.Snapshot.NAV)
	assert.Equal(t, 312.4, *snap.Snapshot.NAV)
}

func TestHandleFundSearch(t *testing.T) {
	r, store := testRegistry(t)
	ctx := context.Background()
	lowRet := 9.2
	require.NoError(t, store.SaveFund(ctx, &models.Fund{
		FundID: "BELTONE-MM", NameEN: "Beltone Money Market Fund", NameAR: "صندوق بلتون النقدي",
		Manager: "Beltone", Currency: "EGP", LatestNAV: 118.7, Return1Y: &lowRet,
	}))
	require.NoError(t, store.SaveFund(ctx, &models.Fund{
		FundID: "CI-BAL", NameEN: "CI Balanced Fund", NameAR: "صندوق سي اي المتوازن",
		Manager: "CI Capital", Currency: "EGP", LatestNAV: 54.1,
	}))

	env := dispatch(t, r, models.IntentFundSearch, models.Entities{})
	require.True(t, env.Success)

	// One fund_profile card per fund, best 1Y return first, funds with
	// no figure last.
	var ids []string
	for _, card := range env.Cards {
		require.Equal(t, models.CardFundProfile, card.Type)
		require.NotNil(t, card.FundProfile)
		ids = append(ids, card.FundProfile.FundID)
	}
	assert.Equal(t, []string{"AZIMUT-EQ", "BELTONE-MM", "CI-BAL"}, ids)

	first := env.Cards[0].FundProfile
	require.NotNil(t, first.NAV)
	assert.Equal(t, 312.4, *first.NAV)
	require.NotNil(t, first.Return1Y)
	assert.Equal(t, 18.5, *first.Return1Y)
}

func TestHandleEducation(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentEducation, models.Entities{Metric: "pe_ratio"})

	assert.True(t, env.Success)
	assert.NotEmpty(t, env.MessageText)
}

func TestHandleHelp(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.IntentHelp, models.Entities{})

	assert.True(t, env.Success)
	help := env.FirstCard(models.CardHelp)
	require.NotNil(t, help)
	assert.NotEmpty(t, help.Help.Examples)
}

func TestHandleClarifySymbol(t *testing.T) {
	r, _ := testRegistry(t)
	env := r.Dispatch(context.Background(), models.IntentClarifySymbol, &Request{
		Entities: models.Entities{},
		Language: "en",
		Resolution: &interfaces.Resolution{
			Ambiguous: true,
			Suggestions: []models.Suggestion{
				{Symbol: "COMI", NameEN: "Commercial International Bank"},
				{Symbol: "ADIB", NameEN: "Abu Dhabi Islamic Bank Egypt"},
			},
		},
	})

	assert.False(t, env.Success)
	assert.Equal(t, models.ErrAmbiguousSymbol, env.ErrorKind())
	assert.GreaterOrEqual(t, len(env.Actions), 2)
}

func TestHandleUnknownIntent(t *testing.T) {
	r, _ := testRegistry(t)
	env := dispatch(t, r, models.Intent("NOT_A_REAL_INTENT"), models.Entities{})

	// Unregistered intents fall back to the unknown handler, which guides
	// rather than errors.
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.MessageText)
	assert.NotEmpty(t, env.Actions)
}

func TestUsageLimitEnvelope(t *testing.T) {
	env := UsageLimitEnvelope("en", 5)
	assert.False(t, env.Success)
	assert.Equal(t, models.ErrUsageLimitReached, env.ErrorKind())
	assert.Contains(t, env.MessageText, "5")

	hasSignIn := false
	for _, a := range env.Actions {
		if a.ActionType == models.ActionNavigate {
			hasSignIn = true
		}
	}
	assert.True(t, hasSignIn)
}

func TestBlockedEnvelope(t *testing.T) {
	env := BlockedEnvelope("ar")
	assert.False(t, env.Success)
	assert.Equal(t, models.ErrComplianceBlocked, env.ErrorKind())
	assert.Equal(t, "ar", env.Language)
}
