// Package models defines the data structures for Borsa
package models

import "time"

// Entity types for tradable instruments.
const (
	EntityStock = "stock"
	EntityFund  = "fund"
	EntityIndex = "index"
)

// Instrument is the canonical tradable entity: a stock, fund, or index
// identified by a symbol within a market. Quote fields mirror the
// instruments table; pointer fields are null when the source has no value.
type Instrument struct {
	Symbol     string `json:"symbol"`
	Market     string `json:"market"`
	EntityType string `json:"entity_type"`
	NameEN     string `json:"name_en"`
	NameAR     string `json:"name_ar"`
	NameNative string `json:"name_native,omitempty"`
	Sector     string `json:"sector,omitempty"`
	Industry   string `json:"industry,omitempty"`
	Currency   string `json:"currency"`

	LastPrice     float64  `json:"last_price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"change_percent"`
	Volume        int64    `json:"volume"`
	Open          float64  `json:"open"`
	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	PrevClose     float64  `json:"prev_close"`
	PERatio       *float64 `json:"pe_ratio,omitempty"`
	PBRatio       *float64 `json:"pb_ratio,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`

	AsOf time.Time `json:"as_of"`
}

// Alias sources, in rough order of authority.
const (
	AliasSourceOfficial     = "official_name"
	AliasSourceTranslated   = "translated_name"
	AliasSourceNickname     = "nickname"
	AliasSourceAbbreviation = "abbreviation"
	AliasSourceISIN         = "isin"
)

// Alias maps a normalized surface string to an instrument. AliasNorm must
// be produced by nlp.Fold; insertion paths re-normalize.
type Alias struct {
	AliasNorm string `json:"alias_norm"`
	Symbol    string `json:"symbol"`
	Market    string `json:"market"`
	Priority  int    `json:"priority"`
	Source    string `json:"source"`
}

// PricePoint is one daily bar of the price series.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Statement types for financials.
const (
	StatementIncome   = "income"
	StatementBalance  = "balance"
	StatementCashflow = "cashflow"
	StatementRatios   = "ratios"
)

// FinancialPeriod identifies a reporting period.
type FinancialPeriod struct {
	PeriodType    string    `json:"period_type"` // "annual" or "quarterly"
	FiscalYear    int       `json:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter,omitempty"`
	PeriodEnding  time.Time `json:"period_ending"`
}

// IncomeRow is one income-statement period.
type IncomeRow struct {
	Symbol string `json:"symbol"`
	FinancialPeriod
	Currency    string   `json:"currency"`
	Revenue     *float64 `json:"revenue,omitempty"`
	GrossProfit *float64 `json:"gross_profit,omitempty"`
	EBITDA      *float64 `json:"ebitda,omitempty"`
	EBIT        *float64 `json:"ebit,omitempty"`
	NetIncome   *float64 `json:"net_income,omitempty"`
	EPS         *float64 `json:"eps,omitempty"`
}

// BalanceRow is one balance-sheet period.
type BalanceRow struct {
	Symbol string `json:"symbol"`
	FinancialPeriod
	Currency           string   `json:"currency"`
	TotalAssets        *float64 `json:"total_assets,omitempty"`
	TotalLiabilities   *float64 `json:"total_liabilities,omitempty"`
	TotalEquity        *float64 `json:"total_equity,omitempty"`
	CurrentAssets      *float64 `json:"current_assets,omitempty"`
	CurrentLiabilities *float64 `json:"current_liabilities,omitempty"`
	Cash               *float64 `json:"cash,omitempty"`
	TotalDebt          *float64 `json:"total_debt,omitempty"`
}

// CashflowRow is one cash-flow-statement period.
type CashflowRow struct {
	Symbol string `json:"symbol"`
	FinancialPeriod
	Currency     string   `json:"currency"`
	OperatingCF  *float64 `json:"operating_cf,omitempty"`
	InvestingCF  *float64 `json:"investing_cf,omitempty"`
	FinancingCF  *float64 `json:"financing_cf,omitempty"`
	FreeCashflow *float64 `json:"free_cashflow,omitempty"`
}

// Dividend is one historical distribution.
type Dividend struct {
	Symbol   string    `json:"symbol"`
	ExDate   time.Time `json:"ex_date"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Yield    *float64  `json:"yield,omitempty"`
}

// Shareholder is one disclosed owner of an instrument.
type Shareholder struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	OwnershipPercent float64 `json:"ownership_percent"`
}

// Fund is a mutual fund or ETF profile with latest NAV and returns.
type Fund struct {
	FundID    string    `json:"fund_id"`
	NameEN    string    `json:"name_en"`
	NameAR    string    `json:"name_ar"`
	Manager   string    `json:"manager"`
	Currency  string    `json:"currency"`
	LatestNAV float64   `json:"latest_nav"`
	AsOfDate  time.Time `json:"as_of_date"`
	YTDReturn *float64  `json:"ytd_return,omitempty"`
	Return1Y  *float64  `json:"return_1y,omitempty"`
	Return3Y  *float64  `json:"return_3y,omitempty"`
	Return5Y  *float64  `json:"return_5y,omitempty"`
}

// NavPoint is one daily NAV observation for a fund.
type NavPoint struct {
	FundID string    `json:"fund_id"`
	Date   time.Time `json:"date"`
	NAV    float64   `json:"nav"`
}

// NewsItem is one stored news row for an instrument.
type NewsItem struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	TitleAR     string    `json:"title_ar,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
