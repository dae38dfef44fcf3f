package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// bilingual picks the reply-language variant of a pair of strings.
func bilingual(language, en, ar string) string {
	if language == "ar" {
		return ar
	}
	return en
}

// displayName picks the instrument name for the reply language, falling
// back to the other when one is blank.
func displayName(language, nameEN, nameAR string) string {
	if language == "ar" && nameAR != "" {
		return nameAR
	}
	if nameEN != "" {
		return nameEN
	}
	return nameAR
}

// successEnvelope starts a well-formed success envelope.
func successEnvelope(language, text string) *models.ResponseEnvelope {
	return &models.ResponseEnvelope{
		Success:     true,
		MessageText: text,
		Language:    language,
		Cards:       []models.Card{},
		Actions:     []models.Action{},
	}
}

// errorEnvelope builds a failure envelope with one error card.
func errorEnvelope(language, kind, detailEN, detailAR string, suggestions []models.Suggestion) *models.ResponseEnvelope {
	return &models.ResponseEnvelope{
		Success:     false,
		MessageText: bilingual(language, detailEN, detailAR),
		Language:    language,
		Cards: []models.Card{{
			Type: models.CardError,
			Error: &models.ErrorCard{
				Kind:        kind,
				Detail:      detailEN,
				DetailAR:    detailAR,
				Suggestions: suggestions,
			},
		}},
		Actions: []models.Action{helpAction()},
	}
}

// symbolNotFound is the envelope for a query that resolved to nothing.
func symbolNotFound(language string, suggestions []models.Suggestion) *models.ResponseEnvelope {
	env := errorEnvelope(language, models.ErrSymbolNotFound,
		"I could not find that instrument on the exchange.",
		"لم اتمكن من العثور علي هذا السهم في البورصه.",
		suggestions)
	for _, s := range suggestions {
		env.Actions = append(env.Actions, queryAction(
			fmt.Sprintf("%s (%s)", s.NameEN, s.Symbol),
			fmt.Sprintf("%s (%s)", s.NameAR, s.Symbol),
			s.Symbol))
	}
	return env
}

// noData is the envelope for a resolved symbol whose table is empty.
func noData(language, symbol, what, whatAR string) *models.ResponseEnvelope {
	env := errorEnvelope(language, models.ErrNoData,
		fmt.Sprintf("No %s is stored for %s yet.", what, symbol),
		fmt.Sprintf("لا توجد %s مسجله لسهم %s حتي الان.", whatAR, symbol),
		nil)
	env.Actions = append(env.Actions, queryAction(
		symbol+" snapshot", "ملخص "+symbol, symbol))
	return env
}

// upstreamFailure is the generic apology for a broken dependency.
func upstreamFailure(language string) *models.ResponseEnvelope {
	return errorEnvelope(language, models.ErrUpstreamFailure,
		"Something went wrong on our side. Please try again in a moment.",
		"حدث خطا لدينا. من فضلك حاول مره اخري بعد قليل.",
		nil)
}

// loadInstrument fetches the requested instrument, mapping the missing
// and failed cases to ready envelopes.
func (r *Registry) loadInstrument(ctx context.Context, req *Request) (*models.Instrument, *models.ResponseEnvelope) {
	symbol := req.Entities.Symbol
	if symbol == "" {
		var suggestions []models.Suggestion
		if req.Resolution != nil {
			suggestions = req.Resolution.Suggestions
		}
		return nil, symbolNotFound(req.Language, suggestions)
	}
	inst, err := r.store.GetInstrument(ctx, symbol)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, symbolNotFound(req.Language, nil)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", symbol).Msg("Instrument read failed")
		return nil, upstreamFailure(req.Language)
	}
	return inst, nil
}

// headerCard builds the stock_header card for an instrument.
func headerCard(inst *models.Instrument) models.Card {
	return models.Card{
		Type: models.CardStockHeader,
		StockHeader: &models.StockHeaderCard{
			Symbol:     inst.Symbol,
			NameEN:     inst.NameEN,
			NameAR:     inst.NameAR,
			Market:     inst.Market,
			Sector:     inst.Sector,
			EntityType: inst.EntityType,
			Currency:   inst.Currency,
		},
	}
}

// snapshotCard builds the quote snapshot card for an instrument.
func snapshotCard(inst *models.Instrument) models.Card {
	return models.Card{
		Type: models.CardSnapshot,
		Snapshot: &models.SnapshotCard{
			LastPrice:     inst.LastPrice,
			Change:        inst.Change,
			ChangePercent: inst.ChangePercent,
			Volume:        inst.Volume,
			Open:          inst.Open,
			High:          inst.High,
			Low:           inst.Low,
			PrevClose:     inst.PrevClose,
			Currency:      inst.Currency,
			AsOf:          inst.AsOf,
		},
	}
}

// --- actions ---

func queryAction(label, labelAR, query string) models.Action {
	return models.Action{
		Label:      label,
		LabelAR:    labelAR,
		ActionType: models.ActionQuery,
		Payload:    map[string]any{"query": query},
	}
}

func helpAction() models.Action {
	return queryAction("What can you ask?", "ماذا يمكنك ان تسال؟", "help")
}

// stockActions is the standard follow-up set for a stock response.
func stockActions(symbol string, exclude models.Intent) []models.Action {
	type entry struct {
		intent models.Intent
		en, ar string
		query  string
	}
	all := []entry{
		{models.IntentStockChart, "Chart", "الرسم البياني", symbol + " chart"},
		{models.IntentFinancials, "Financials", "القوائم الماليه", symbol + " financials"},
		{models.IntentDividends, "Dividends", "التوزيعات", symbol + " dividends"},
		{models.IntentOwnership, "Shareholders", "المساهمين", symbol + " shareholders"},
		{models.IntentNews, "News", "الاخبار", symbol + " news"},
	}
	actions := make([]models.Action, 0, 4)
	for _, e := range all {
		if e.intent == exclude || len(actions) == 4 {
			continue
		}
		actions = append(actions, queryAction(e.en, e.ar, e.query))
	}
	return actions
}

// --- formatting ---

func formatMoney(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, currency)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func formatPeriod(p models.FinancialPeriod) string {
	if p.PeriodType == "quarterly" {
		return fmt.Sprintf("Q%d %d", p.FiscalQuarter, p.FiscalYear)
	}
	return fmt.Sprintf("FY%d", p.FiscalYear)
}

// RangeWindow converts a chart range token to a lookback start.
func RangeWindow(rng string, now time.Time) time.Time {
	switch strings.ToUpper(rng) {
	case "1D":
		return now.AddDate(0, 0, -1)
	case "1W":
		return now.AddDate(0, 0, -7)
	case "3M":
		return now.AddDate(0, -3, 0)
	case "6M":
		return now.AddDate(0, -6, 0)
	case "1Y":
		return now.AddDate(-1, 0, 0)
	case "5Y":
		return now.AddDate(-5, 0, 0)
	case "MAX":
		return time.Time{}
	default: // 1M
		return now.AddDate(0, -1, 0)
	}
}

func ptr(v float64) *float64 { return &v }

func nowUTC() time.Time { return time.Now().UTC() }
