package handlers

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/karimadel/borsa/internal/models"
)

const annualPeriods = 5

func (r *Registry) handleFinancials(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	statementType := req.Entities.StatementType
	if statementType == "" {
		statementType = models.StatementIncome
	}

	var table *models.FinancialTableCard
	var err error
	switch statementType {
	case models.StatementBalance:
		table, err = r.balanceTable(ctx, inst)
	case models.StatementCashflow:
		table, err = r.cashflowTable(ctx, inst)
	default:
		statementType = models.StatementIncome
		table, err = r.incomeTable(ctx, inst)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Str("statement", statementType).Msg("Financials read failed")
		return upstreamFailure(req.Language)
	}
	if table == nil || len(table.Periods) == 0 {
		return noData(req.Language, inst.Symbol, "financial statements", "قوائم ماليه")
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s %s statement, %d periods, latest %s.", name, statementType, len(table.Periods), table.Periods[0]),
		fmt.Sprintf("قائمه %s لشركه %s، %d فترات، احدثها %s.", statementLabelAR(statementType), name, len(table.Periods), table.Periods[0]))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardFinancialTable, FinancialTable: table})
	env.Actions = append(env.Actions,
		queryAction("Margins", "الهوامش", inst.Symbol+" margins"),
		queryAction("Balance sheet", "الميزانيه", inst.Symbol+" balance"),
		queryAction("Cash flow", "التدفقات النقديه", inst.Symbol+" cashflow"),
		queryAction("Price", "السعر", inst.Symbol+" price"))
	return env
}

func statementLabelAR(statementType string) string {
	switch statementType {
	case models.StatementBalance:
		return "المركز المالي"
	case models.StatementCashflow:
		return "التدفقات النقديه"
	default:
		return "الدخل"
	}
}

// incomeTable builds the table from annual rows plus the most recent
// quarter when one exists.
func (r *Registry) incomeTable(ctx context.Context, inst *models.Instrument) (*models.FinancialTableCard, error) {
	annual, err := r.store.GetIncomeRows(ctx, inst.Symbol, "annual", annualPeriods)
	if err != nil {
		return nil, err
	}
	quarterly, err := r.store.GetIncomeRows(ctx, inst.Symbol, "quarterly", 1)
	if err != nil {
		return nil, err
	}

	rows := append(quarterly, annual...)
	if len(rows) == 0 {
		return nil, nil
	}

	table := &models.FinancialTableCard{
		Symbol:        inst.Symbol,
		StatementType: models.StatementIncome,
		Currency:      inst.Currency,
	}
	for _, row := range rows {
		table.Periods = append(table.Periods, formatPeriod(row.FinancialPeriod))
	}
	metrics := []struct {
		label, labelAR string
		pick           func(models.IncomeRow) *float64
	}{
		{"Revenue", "الايرادات", func(x models.IncomeRow) *float64 { return x.Revenue }},
		{"Gross Profit", "مجمل الربح", func(x models.IncomeRow) *float64 { return x.GrossProfit }},
		{"EBITDA", "الربح قبل الفوائد والضرائب والاهلاك", func(x models.IncomeRow) *float64 { return x.EBITDA }},
		{"Net Income", "صافي الربح", func(x models.IncomeRow) *float64 { return x.NetIncome }},
		{"EPS", "ربحيه السهم", func(x models.IncomeRow) *float64 { return x.EPS }},
	}
	for _, m := range metrics {
		fr := models.FinancialRow{Label: m.label, LabelAR: m.labelAR, Unit: inst.Currency}
		for _, row := range rows {
			fr.Values = append(fr.Values, m.pick(row))
		}
		table.Rows = append(table.Rows, fr)
	}
	return table, nil
}

func (r *Registry) balanceTable(ctx context.Context, inst *models.Instrument) (*models.FinancialTableCard, error) {
	annual, err := r.store.GetBalanceRows(ctx, inst.Symbol, "annual", annualPeriods)
	if err != nil {
		return nil, err
	}
	quarterly, err := r.store.GetBalanceRows(ctx, inst.Symbol, "quarterly", 1)
	if err != nil {
		return nil, err
	}

	rows := append(quarterly, annual...)
	if len(rows) == 0 {
		return nil, nil
	}

	table := &models.FinancialTableCard{
		Symbol:        inst.Symbol,
		StatementType: models.StatementBalance,
		Currency:      inst.Currency,
	}
	for _, row := range rows {
		table.Periods = append(table.Periods, formatPeriod(row.FinancialPeriod))
	}
	metrics := []struct {
		label, labelAR string
		pick           func(models.BalanceRow) *float64
	}{
		{"Total Assets", "اجمالي الاصول", func(x models.BalanceRow) *float64 { return x.TotalAssets }},
		{"Total Liabilities", "اجمالي الالتزامات", func(x models.BalanceRow) *float64 { return x.TotalLiabilities }},
		{"Total Equity", "حقوق الملكيه", func(x models.BalanceRow) *float64 { return x.TotalEquity }},
		{"Cash", "النقديه", func(x models.BalanceRow) *float64 { return x.Cash }},
		{"Total Debt", "اجمالي الديون", func(x models.BalanceRow) *float64 { return x.TotalDebt }},
	}
	for _, m := range metrics {
		fr := models.FinancialRow{Label: m.label, LabelAR: m.labelAR, Unit: inst.Currency}
		for _, row := range rows {
			fr.Values = append(fr.Values, m.pick(row))
		}
		table.Rows = append(table.Rows, fr)
	}
	return table, nil
}

func (r *Registry) cashflowTable(ctx context.Context, inst *models.Instrument) (*models.FinancialTableCard, error) {
	annual, err := r.store.GetCashflowRows(ctx, inst.Symbol, "annual", annualPeriods)
	if err != nil {
		return nil, err
	}
	quarterly, err := r.store.GetCashflowRows(ctx, inst.Symbol, "quarterly", 1)
	if err != nil {
		return nil, err
	}

	rows := append(quarterly, annual...)
	if len(rows) == 0 {
		return nil, nil
	}

	table := &models.FinancialTableCard{
		Symbol:        inst.Symbol,
		StatementType: models.StatementCashflow,
		Currency:      inst.Currency,
	}
	for _, row := range rows {
		table.Periods = append(table.Periods, formatPeriod(row.FinancialPeriod))
	}
	metrics := []struct {
		label, labelAR string
		pick           func(models.CashflowRow) *float64
	}{
		{"Operating CF", "التدفق التشغيلي", func(x models.CashflowRow) *float64 { return x.OperatingCF }},
		{"Investing CF", "التدفق الاستثماري", func(x models.CashflowRow) *float64 { return x.InvestingCF }},
		{"Financing CF", "التدفق التمويلي", func(x models.CashflowRow) *float64 { return x.FinancingCF }},
		{"Free Cash Flow", "التدفق النقدي الحر", func(x models.CashflowRow) *float64 { return x.FreeCashflow }},
	}
	for _, m := range metrics {
		fr := models.FinancialRow{Label: m.label, LabelAR: m.labelAR, Unit: inst.Currency}
		for _, row := range rows {
			fr.Values = append(fr.Values, m.pick(row))
		}
		table.Rows = append(table.Rows, fr)
	}
	return table, nil
}

// handleMargins derives profitability margins from the income statement.
func (r *Registry) handleMargins(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	rows, err := r.store.GetIncomeRows(ctx, inst.Symbol, "annual", 1)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("Income read failed")
		return upstreamFailure(req.Language)
	}
	if len(rows) == 0 || rows[0].Revenue == nil || *rows[0].Revenue == 0 {
		return noData(req.Language, inst.Symbol, "margin data", "بيانات هوامش")
	}

	row := rows[0]
	revenue := *row.Revenue
	margin := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		return ptr(*v / revenue * 100)
	}

	stats := &models.StatsCard{
		Title:   fmt.Sprintf("Margins %s", formatPeriod(row.FinancialPeriod)),
		TitleAR: fmt.Sprintf("الهوامش %s", formatPeriod(row.FinancialPeriod)),
		Rows: []models.StatRow{
			{Label: "Gross Margin", LabelAR: "هامش مجمل الربح", Value: margin(row.GrossProfit), Unit: "%"},
			{Label: "EBITDA Margin", LabelAR: "هامش الربح التشغيلي", Value: margin(row.EBITDA), Unit: "%"},
			{Label: "Net Margin", LabelAR: "هامش صافي الربح", Value: margin(row.NetIncome), Unit: "%"},
		},
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	var netStr string
	if m := margin(row.NetIncome); m != nil {
		netStr = fmt.Sprintf("%.1f%%", *m)
	} else {
		netStr = bilingual(req.Language, "unavailable", "غير متاح")
	}
	text := bilingual(req.Language,
		fmt.Sprintf("%s net margin for %s is %s.", name, formatPeriod(row.FinancialPeriod), netStr),
		fmt.Sprintf("هامش صافي الربح لشركه %s عن %s هو %s.", name, formatPeriod(row.FinancialPeriod), netStr))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardStats, Stats: stats})
	env.Actions = append(env.Actions,
		queryAction("Income statement", "قائمه الدخل", inst.Symbol+" income"),
		queryAction("Financial health", "الصحه الماليه", inst.Symbol+" health"),
		queryAction("Price", "السعر", inst.Symbol+" price"))
	return env
}

// handleFairValue builds a Graham-style fair value estimate from the
// latest EPS and derived book value, bracketed by a sector P/E band.
// Estimate only; no target price and no recommendation.
func (r *Registry) handleFairValue(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}
	if inst.PERatio == nil && inst.PBRatio == nil {
		return noData(req.Language, inst.Symbol, "valuation ratios", "مضاعفات تقييم")
	}

	peers, err := r.store.ListBySector(ctx, inst.Sector)
	if err != nil {
		r.logger.Error().Err(err).Str("sector", inst.Sector).Msg("Sector read failed")
		return upstreamFailure(req.Language)
	}

	var peSum float64
	var peN int
	for _, p := range peers {
		if p.Symbol == inst.Symbol {
			continue
		}
		if p.PERatio != nil {
			peSum += *p.PERatio
			peN++
		}
	}

	var eps *float64
	if rows, err := r.store.GetIncomeRows(ctx, inst.Symbol, "annual", 1); err == nil && len(rows) > 0 {
		eps = rows[0].EPS
	}
	// Book value per share falls out of the quoted P/B multiple.
	var bvps *float64
	if inst.PBRatio != nil && *inst.PBRatio > 0 && inst.LastPrice > 0 {
		bvps = ptr(inst.LastPrice / *inst.PBRatio)
	}
	var graham *float64
	if eps != nil && *eps > 0 && bvps != nil && *bvps > 0 {
		graham = ptr(math.Sqrt(22.5 * *eps * *bvps))
	}

	stats := &models.StatsCard{
		Title:   "Fair Value Estimate",
		TitleAR: "تقدير القيمه العادله",
		Rows: []models.StatRow{
			{Label: "Last Price", LabelAR: "اخر سعر", Value: ptr(inst.LastPrice), Unit: inst.Currency},
			{Label: "P/E Ratio", LabelAR: "مكرر الربحيه", Value: inst.PERatio, Unit: "x"},
			{Label: "P/B Ratio", LabelAR: "مضاعف القيمه الدفتريه", Value: inst.PBRatio, Unit: "x"},
		},
	}
	if eps != nil {
		stats.Rows = append(stats.Rows, models.StatRow{
			Label: "EPS (latest FY)", LabelAR: "ربحيه السهم (اخر سنه)", Value: eps, Unit: inst.Currency,
		})
	}
	if bvps != nil {
		stats.Rows = append(stats.Rows, models.StatRow{
			Label: "Book Value / Share", LabelAR: "القيمه الدفتريه للسهم", Value: bvps, Unit: inst.Currency,
		})
	}
	if graham != nil {
		stats.Rows = append(stats.Rows, models.StatRow{
			Label: "Graham Estimate", LabelAR: "تقدير جراهام", Value: graham, Unit: inst.Currency,
			Note: "sqrt(22.5 x EPS x BVPS)",
		})
	}
	if eps != nil && *eps > 0 && peN > 0 {
		sectorPE := peSum / float64(peN)
		low, high := *eps*sectorPE*0.8, *eps*sectorPE*1.2
		stats.Rows = append(stats.Rows, models.StatRow{
			Label: "Implied at Sector P/E", LabelAR: "السعر الضمني بمكرر القطاع",
			Value: ptr(*eps * sectorPE), Unit: inst.Currency,
			Note: fmt.Sprintf("band %.2f to %.2f, %d peers", low, high, peN),
		})
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("An indicative fair value estimate for %s from earnings and book value. This is an estimate, not a recommendation.", name),
		fmt.Sprintf("تقدير استرشادي للقيمه العادله لسهم %s من الارباح والقيمه الدفتريه. هذا تقدير وليس توصيه.", name))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardStats, Stats: stats})
	env.Actions = append(env.Actions,
		queryAction("Sector stocks", "اسهم القطاع", "sector "+inst.Sector),
		queryAction("Financials", "القوائم الماليه", inst.Symbol+" financials"),
		queryAction("Price", "السعر", inst.Symbol+" price"))
	return env
}

// handleFinancialHealth summarizes solvency and liquidity from the
// latest balance sheet.
func (r *Registry) handleFinancialHealth(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	rows, err := r.store.GetBalanceRows(ctx, inst.Symbol, "annual", 1)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("Balance read failed")
		return upstreamFailure(req.Language)
	}
	if len(rows) == 0 {
		return noData(req.Language, inst.Symbol, "balance sheet data", "بيانات ميزانيه")
	}

	row := rows[0]
	ratio := func(num, den *float64) *float64 {
		if num == nil || den == nil || *den == 0 {
			return nil
		}
		return ptr(*num / *den)
	}

	stats := &models.StatsCard{
		Title:   fmt.Sprintf("Financial Health %s", formatPeriod(row.FinancialPeriod)),
		TitleAR: fmt.Sprintf("الصحه الماليه %s", formatPeriod(row.FinancialPeriod)),
		Rows: []models.StatRow{
			{Label: "Debt / Equity", LabelAR: "الدين الي حقوق الملكيه", Value: ratio(row.TotalDebt, row.TotalEquity), Unit: "x"},
			{Label: "Current Ratio", LabelAR: "نسبه التداول", Value: ratio(row.CurrentAssets, row.CurrentLiabilities), Unit: "x"},
			{Label: "Cash", LabelAR: "النقديه", Value: row.Cash, Unit: inst.Currency},
			{Label: "Total Equity", LabelAR: "حقوق الملكيه", Value: row.TotalEquity, Unit: inst.Currency},
		},
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("Balance-sheet health for %s as of %s.", name, formatPeriod(row.FinancialPeriod)),
		fmt.Sprintf("مؤشرات الصحه الماليه لشركه %s عن %s.", name, formatPeriod(row.FinancialPeriod)))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardStats, Stats: stats})
	env.Actions = append(env.Actions,
		queryAction("Balance sheet", "الميزانيه", inst.Symbol+" balance"),
		queryAction("Margins", "الهوامش", inst.Symbol+" margins"),
		queryAction("Price", "السعر", inst.Symbol+" price"))
	return env
}

// handleTechnicals computes simple indicators from the stored series.
func (r *Registry) handleTechnicals(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	now := time.Now().UTC()
	points, err := r.store.GetPriceSeries(ctx, inst.Symbol, now.AddDate(-1, 0, 0), now)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("Price series read failed")
		return upstreamFailure(req.Language)
	}
	if len(points) < 15 {
		return noData(req.Language, inst.Symbol, "enough price history for indicators", "بيانات كافيه لحساب المؤشرات")
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	last := closes[len(closes)-1]

	// Averages carry the distance from the latest close; a long series
	// is missing the longer windows and those rows show null.
	smaRow := func(n int, label, labelAR string) models.StatRow {
		v := sma(closes, n)
		row := models.StatRow{Label: label, LabelAR: labelAR, Value: v, Unit: inst.Currency}
		if v != nil && *v != 0 {
			row.Note = fmt.Sprintf("price %s vs avg", formatPercent((last-*v)/(*v)*100))
		}
		return row
	}

	stats := &models.StatsCard{
		Title:   "Technical Indicators",
		TitleAR: "المؤشرات الفنيه",
		Rows: []models.StatRow{
			smaRow(20, "SMA 20", "متوسط 20 يوم"),
			smaRow(50, "SMA 50", "متوسط 50 يوم"),
			smaRow(200, "SMA 200", "متوسط 200 يوم"),
			{Label: "RSI 14", LabelAR: "مؤشر القوه النسبيه 14", Value: rsi(closes, 14)},
			{Label: "52W High", LabelAR: "اعلي سعر في 52 اسبوع", Value: ptr(maxClose(points)), Unit: inst.Currency},
			{Label: "52W Low", LabelAR: "اقل سعر في 52 اسبوع", Value: ptr(minClose(points)), Unit: inst.Currency},
		},
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("Technical indicators for %s from the last year of trading.", name),
		fmt.Sprintf("المؤشرات الفنيه لسهم %s من تداولات اخر سنه.", name))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardStats, Stats: stats})
	env.Actions = append(env.Actions,
		queryAction("Chart", "الرسم البياني", inst.Symbol+" chart 6m"),
		queryAction("Price", "السعر", inst.Symbol+" price"),
		queryAction("Financials", "القوائم الماليه", inst.Symbol+" financials"))
	return env
}

// sma returns the n-period simple moving average of the latest closes,
// nil when the series is too short.
func sma(closes []float64, n int) *float64 {
	if len(closes) < n {
		return nil
	}
	sum := 0.0
	for _, c := range closes[len(closes)-n:] {
		sum += c
	}
	return ptr(sum / float64(n))
}

// rsi is Wilder's relative strength index over the last n changes.
func rsi(closes []float64, n int) *float64 {
	if len(closes) < n+1 {
		return nil
	}
	recent := closes[len(closes)-n-1:]
	var gains, losses float64
	for i := 1; i < len(recent); i++ {
		diff := recent[i] - recent[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return ptr(100.0)
	}
	rs := gains / losses
	return ptr(100 - 100/(1+rs))
}

func maxClose(points []models.PricePoint) float64 {
	best := points[0].Close
	for _, p := range points[1:] {
		if p.Close > best {
			best = p.Close
		}
	}
	return best
}

func minClose(points []models.PricePoint) float64 {
	best := points[0].Close
	for _, p := range points[1:] {
		if p.Close < best {
			best = p.Close
		}
	}
	return best
}
