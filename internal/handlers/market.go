package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/karimadel/borsa/internal/models"
)

const moversLimit = 10

func (r *Registry) handleCompare(ctx context.Context, req *Request) *models.ResponseEnvelope {
	symbols := req.Entities.Symbols
	if len(symbols) < 2 {
		return errorEnvelope(req.Language, models.ErrSymbolNotFound,
			"I need two instruments to compare, e.g. \"compare COMI vs SWDY\".",
			"احتاج سهمين للمقارنه، مثل \"قارن COMI و SWDY\".",
			nil)
	}

	fetched, err := r.store.GetInstrumentsBatch(ctx, symbols)
	if err != nil {
		r.logger.Error().Err(err).Strs("symbols", symbols).Msg("Batch read failed")
		return upstreamFailure(req.Language)
	}
	// Rows follow the order the user asked for, not store return order.
	bySymbol := make(map[string]*models.Instrument, len(fetched))
	for _, inst := range fetched {
		bySymbol[strings.ToUpper(inst.Symbol)] = inst
	}
	instruments := make([]*models.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		if inst, ok := bySymbol[strings.ToUpper(sym)]; ok {
			instruments = append(instruments, inst)
		}
	}
	if len(instruments) < 2 {
		return symbolNotFound(req.Language, nil)
	}

	card := &models.ComparisonCard{
		Metrics:  models.ComparisonMetrics,
		Currency: instruments[0].Currency,
	}
	names := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		values := map[string]*float64{
			"last_price":     ptr(inst.LastPrice),
			"market_cap":     inst.MarketCap,
			"pe_ratio":       inst.PERatio,
			"pb_ratio":       inst.PBRatio,
			"dividend_yield": inst.DividendYield,
			"return_1y":      r.trailingReturn(ctx, inst.Symbol),
		}
		card.Rows = append(card.Rows, models.ComparisonRow{
			Symbol: inst.Symbol,
			NameEN: inst.NameEN,
			NameAR: inst.NameAR,
			Values: values,
		})
		names = append(names, inst.Symbol)
	}

	text := bilingual(req.Language,
		fmt.Sprintf("Side-by-side comparison of %s.", strings.Join(names, " and ")),
		fmt.Sprintf("مقارنه بين %s.", strings.Join(names, " و ")))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, models.Card{Type: models.CardComparison, Comparison: card})
	for _, inst := range instruments {
		if len(env.Actions) == 4 {
			break
		}
		env.Actions = append(env.Actions, queryAction(
			inst.Symbol+" snapshot", "ملخص "+inst.Symbol, inst.Symbol))
	}
	return env
}

// trailingReturn computes the 1Y price return from the stored series,
// nil when history is missing.
func (r *Registry) trailingReturn(ctx context.Context, symbol string) *float64 {
	now := nowUTC()
	points, err := r.store.GetPriceSeries(ctx, symbol, now.AddDate(-1, 0, -7), now)
	if err != nil || len(points) < 2 {
		return nil
	}
	first, last := points[0].Close, points[len(points)-1].Close
	if first == 0 {
		return nil
	}
	return ptr((last - first) / first * 100)
}

func (r *Registry) handleSectorStocks(ctx context.Context, req *Request) *models.ResponseEnvelope {
	sector := req.Entities.Sector
	if sector == "" {
		return errorEnvelope(req.Language, models.ErrNoData,
			"Which sector? Try \"banks sector\" or \"real estate sector\".",
			"اي قطاع؟ جرب \"قطاع البنوك\" او \"قطاع العقارات\".",
			nil)
	}

	instruments, err := r.store.ListBySector(ctx, sector)
	if err != nil {
		r.logger.Error().Err(err).Str("sector", sector).Msg("Sector read failed")
		return upstreamFailure(req.Language)
	}
	if len(instruments) == 0 {
		return errorEnvelope(req.Language, models.ErrNoData,
			fmt.Sprintf("No listed instruments found for the %q sector.", sector),
			fmt.Sprintf("لا توجد اسهم مسجله في قطاع %q.", sector),
			nil)
	}

	stats := &models.StatsCard{
		Title:   fmt.Sprintf("%s sector", sector),
		TitleAR: fmt.Sprintf("قطاع %s", sector),
	}
	for _, inst := range instruments {
		if len(stats.Rows) == moversLimit {
			break
		}
		stats.Rows = append(stats.Rows, models.StatRow{
			Label:   fmt.Sprintf("%s (%s)", inst.NameEN, inst.Symbol),
			LabelAR: fmt.Sprintf("%s (%s)", inst.NameAR, inst.Symbol),
			Value:   ptr(inst.LastPrice),
			Unit:    inst.Currency,
			Note:    formatPercent(inst.ChangePercent),
		})
	}

	text := bilingual(req.Language,
		fmt.Sprintf("%d listed instruments in the %s sector, by market cap.", len(instruments), sector),
		fmt.Sprintf("%d سهم مسجل في قطاع %s مرتبه بالقيمه السوقيه.", len(instruments), sector))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, models.Card{Type: models.CardStats, Stats: stats})
	for _, inst := range instruments {
		if len(env.Actions) == 3 {
			break
		}
		env.Actions = append(env.Actions, queryAction(
			inst.Symbol+" snapshot", "ملخص "+inst.Symbol, inst.Symbol))
	}
	return env
}

func (r *Registry) handleMarketMovers(ctx context.Context, req *Request) *models.ResponseEnvelope {
	direction := req.Entities.Direction
	if direction != "losers" {
		direction = "gainers"
	}

	instruments, err := r.store.TopMovers(ctx, direction, moversLimit*2)
	if err != nil {
		r.logger.Error().Err(err).Str("direction", direction).Msg("Movers read failed")
		return upstreamFailure(req.Language)
	}

	// Zero-volume rows are unopened or suspended; skip them.
	ranked := make([]*models.Instrument, 0, moversLimit)
	for _, inst := range instruments {
		if inst.Volume == 0 {
			continue
		}
		ranked = append(ranked, inst)
		if len(ranked) == moversLimit {
			break
		}
	}
	if len(ranked) == 0 {
		return errorEnvelope(req.Language, models.ErrNoData,
			"No traded instruments found for today's session.",
			"لا توجد اسهم متداوله في جلسه اليوم.",
			nil)
	}

	title, titleAR := "Top Gainers", "الاسهم الاكثر ارتفاعا"
	if direction == "losers" {
		title, titleAR = "Top Losers", "الاسهم الاكثر انخفاضا"
	}
	stats := &models.StatsCard{Title: title, TitleAR: titleAR}
	for _, inst := range ranked {
		stats.Rows = append(stats.Rows, models.StatRow{
			Label:   fmt.Sprintf("%s (%s)", inst.NameEN, inst.Symbol),
			LabelAR: fmt.Sprintf("%s (%s)", inst.NameAR, inst.Symbol),
			Value:   ptr(inst.ChangePercent),
			Unit:    "%",
			Note:    formatMoney(inst.LastPrice, inst.Currency),
		})
	}

	leader := ranked[0]
	text := bilingual(req.Language,
		fmt.Sprintf("%s today, led by %s at %s.", title, leader.Symbol, formatPercent(leader.ChangePercent)),
		fmt.Sprintf("%s اليوم يتصدرها %s بنسبه %s.", titleAR, leader.Symbol, formatPercent(leader.ChangePercent)))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, models.Card{Type: models.CardStats, Stats: stats})
	opposite, oppositeAR, oppositeQuery := "Top losers", "الاكثر انخفاضا", "top losers"
	if direction == "losers" {
		opposite, oppositeAR, oppositeQuery = "Top gainers", "الاكثر ارتفاعا", "top gainers"
	}
	env.Actions = append(env.Actions,
		queryAction(opposite, oppositeAR, oppositeQuery),
		queryAction(leader.Symbol+" snapshot", "ملخص "+leader.Symbol, leader.Symbol))
	return env
}
