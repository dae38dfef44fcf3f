package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/karimadel/borsa/internal/models"
)

func (r *Registry) handleStockPrice(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s (%s) is trading at %s, %s today.",
			name, inst.Symbol, formatMoney(inst.LastPrice, inst.Currency), formatPercent(inst.ChangePercent)),
		fmt.Sprintf("سهم %s (%s) عند %s بتغير %s اليوم.",
			name, inst.Symbol, formatMoney(inst.LastPrice, inst.Currency), formatPercent(inst.ChangePercent)))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), snapshotCard(inst))
	env.Actions = stockActions(inst.Symbol, models.IntentStockPrice)
	return env
}

func (r *Registry) handleStockSnapshot(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s (%s): last %s, day range %s to %s, volume %d.",
			name, inst.Symbol, formatMoney(inst.LastPrice, inst.Currency),
			formatMoney(inst.Low, inst.Currency), formatMoney(inst.High, inst.Currency), inst.Volume),
		fmt.Sprintf("%s (%s): اخر سعر %s، نطاق اليوم من %s الي %s، حجم التداول %d.",
			name, inst.Symbol, formatMoney(inst.LastPrice, inst.Currency),
			formatMoney(inst.Low, inst.Currency), formatMoney(inst.High, inst.Currency), inst.Volume))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), snapshotCard(inst))

	stats := &models.StatsCard{
		Title:   "Key Stats",
		TitleAR: "ارقام اساسيه",
		Rows: []models.StatRow{
			{Label: "P/E Ratio", LabelAR: "مكرر الربحيه", Value: inst.PERatio, Unit: "x"},
			{Label: "P/B Ratio", LabelAR: "مضاعف القيمه الدفتريه", Value: inst.PBRatio, Unit: "x"},
			{Label: "Dividend Yield", LabelAR: "عائد التوزيعات", Value: inst.DividendYield, Unit: "%"},
			{Label: "Market Cap", LabelAR: "القيمه السوقيه", Value: inst.MarketCap, Unit: inst.Currency},
		},
	}
	env.Cards = append(env.Cards, models.Card{Type: models.CardStats, Stats: stats})
	env.Actions = stockActions(inst.Symbol, models.IntentStockSnapshot)
	return env
}

func (r *Registry) handleStockChart(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	rng := strings.ToUpper(req.Entities.Range)
	if rng == "" {
		rng = "1M"
	}
	now := time.Now().UTC()
	from := RangeWindow(rng, now)

	points, err := r.store.GetPriceSeries(ctx, inst.Symbol, from, now)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("Price series read failed")
		return upstreamFailure(req.Language)
	}
	if len(points) == 0 {
		return noData(req.Language, inst.Symbol, "price history", "بيانات اسعار تاريخيه")
	}

	first, last := points[0].Close, points[len(points)-1].Close
	changePct := 0.0
	if first != 0 {
		changePct = (last - first) / first * 100
	}
	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s over %s: from %s to %s (%s).",
			name, rng, formatMoney(first, inst.Currency), formatMoney(last, inst.Currency), formatPercent(changePct)),
		fmt.Sprintf("%s خلال %s: من %s الي %s (%s).",
			name, rng, formatMoney(first, inst.Currency), formatMoney(last, inst.Currency), formatPercent(changePct)))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{
		Type: models.CardChart,
		Chart: &models.ChartCard{
			Symbol:   inst.Symbol,
			Range:    rng,
			Currency: inst.Currency,
			ImageURL: fmt.Sprintf("/api/chart/%s.png?range=%s", inst.Symbol, rng),
			Points:   points,
		},
	})
	env.Actions = append(env.Actions,
		queryAction("1Y chart", "رسم بياني لسنه", inst.Symbol+" chart 1y"),
		queryAction("Price now", "السعر الان", inst.Symbol+" price"))
	env.Actions = append(env.Actions, stockActions(inst.Symbol, models.IntentStockChart)[:2]...)
	return env
}
