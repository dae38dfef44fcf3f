package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(common.NewSilentLogger())
}

func TestGetInstrumentReturnsCopy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveInstrument(ctx, &models.Instrument{
		Symbol: "COMI", Market: "EGX", EntityType: models.EntityStock, LastPrice: 82.5,
	}))

	got, err := s.GetInstrument(ctx, "COMI")
	require.NoError(t, err)
	got.LastPrice = 1.0

	again, err := s.GetInstrument(ctx, "COMI")
	require.NoError(t, err)
	assert.Equal(t, 82.5, again.LastPrice)
}

func TestGetInstrumentNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetInstrument(context.Background(), "XXXX")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestGetInstrumentsBatchSkipsMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveInstrument(ctx, &models.Instrument{Symbol: "COMI", Market: "EGX", EntityType: models.EntityStock}))
	require.NoError(t, s.SaveInstrument(ctx, &models.Instrument{Symbol: "SWDY", Market: "EGX", EntityType: models.EntityStock}))

	got, err := s.GetInstrumentsBatch(ctx, []string{"COMI", "XXXX", "SWDY"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "COMI", got[0].Symbol)
	assert.Equal(t, "SWDY", got[1].Symbol)
}

func TestTopMovers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, inst := range []*models.Instrument{
		{Symbol: "COMI", EntityType: models.EntityStock, ChangePercent: 1.2},
		{Symbol: "SWDY", EntityType: models.EntityStock, ChangePercent: -2.4},
		{Symbol: "HRHO", EntityType: models.EntityStock, ChangePercent: 5.6},
		{Symbol: "EGX30", EntityType: models.EntityIndex, ChangePercent: 9.9},
	} {
		require.NoError(t, s.SaveInstrument(ctx, inst))
	}

	gainers, err := s.TopMovers(ctx, "gainers", 2)
	require.NoError(t, err)
	require.Len(t, gainers, 2)
	assert.Equal(t, "HRHO", gainers[0].Symbol)
	assert.Equal(t, "COMI", gainers[1].Symbol)

	losers, err := s.TopMovers(ctx, "losers", 2)
	require.NoError(t, err)
	assert.Equal(t, "SWDY", losers[0].Symbol)
}

func TestListBySector(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	big, small := 500.0, 100.0
	require.NoError(t, s.SaveInstrument(ctx, &models.Instrument{
		Symbol: "HRHO", EntityType: models.EntityStock, Sector: "Banks", MarketCap: &small,
	}))
	require.NoError(t, s.SaveInstrument(ctx, &models.Instrument{
		Symbol: "COMI", EntityType: models.EntityStock, Sector: "banks", MarketCap: &big,
	}))
	require.NoError(t, s.SaveInstrument(ctx, &models.Instrument{
		Symbol: "SWDY", EntityType: models.EntityStock, Sector: "industrials",
	}))

	got, err := s.ListBySector(ctx, "BANKS")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Largest market cap first.
	assert.Equal(t, "COMI", got[0].Symbol)
}

func TestGetPriceSeriesWindow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	points := make([]models.PricePoint, 0, 10)
	for i := 0; i < 10; i++ {
		points = append(points, models.PricePoint{Date: base.AddDate(0, 0, i), Close: float64(i)})
	}
	require.NoError(t, s.SavePricePoints(ctx, "COMI", points))

	got, err := s.GetPriceSeries(ctx, "COMI", base.AddDate(0, 0, 3), base.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 3.0, got[0].Close)
	assert.Equal(t, 6.0, got[len(got)-1].Close)
}

func TestAliasLookupIsExact(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAlias(ctx, &models.Alias{
		AliasNorm: "التجاري", Symbol: "COMI", Market: "EGX", Priority: 9,
	}))

	got, err := s.GetAliases(ctx, "التجاري")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "COMI", got[0].Symbol)

	none, err := s.GetAliases(ctx, "تجاري")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUsageIncrement(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, err := s.Increment(ctx, "fp-1", "2026-08-29")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	// Different period and principal count separately.
	count, err := s.Increment(ctx, "fp-1", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = s.Increment(ctx, "fp-2", "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.Get(ctx, "fp-1", "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAnalyticsEvents(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveEvent(ctx, &models.AnalyticsEvent{
			SessionID: "s1", Intent: models.IntentStockPrice, Success: true,
		}))
	}
	require.NoError(t, s.SaveEvent(ctx, &models.AnalyticsEvent{
		SessionID: "s2", Intent: models.IntentHelp, Success: true,
	}))

	events, err := s.ListEvents(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
