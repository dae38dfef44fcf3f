package models

// Intent is the closed set of message classifications.
type Intent string

const (
	IntentStockPrice        Intent = "STOCK_PRICE"
	IntentStockSnapshot     Intent = "STOCK_SNAPSHOT"
	IntentStockChart        Intent = "STOCK_CHART"
	IntentFinancials        Intent = "FINANCIALS"
	IntentFinMargins        Intent = "FIN_MARGINS"
	IntentDividends         Intent = "DIVIDENDS"
	IntentOwnership         Intent = "OWNERSHIP"
	IntentTechnicals        Intent = "TECHNICAL_INDICATORS"
	IntentFairValue         Intent = "FAIR_VALUE"
	IntentFinancialHealth   Intent = "FINANCIAL_HEALTH"
	IntentCompare           Intent = "COMPARE"
	IntentSectorStocks      Intent = "SECTOR_STOCKS"
	IntentMarketMovers      Intent = "MARKET_MOVERS"
	IntentFundNAV           Intent = "FUND_NAV"
	IntentFundSearch        Intent = "FUND_SEARCH"
	IntentNews              Intent = "NEWS"
	IntentEducation         Intent = "EDUCATION"
	IntentHelp              Intent = "HELP"
	IntentChitchat          Intent = "CHITCHAT"
	IntentFollowUp          Intent = "FOLLOW_UP"
	IntentBlocked           Intent = "BLOCKED"
	IntentClarifySymbol     Intent = "CLARIFY_SYMBOL"
	IntentUnknown           Intent = "UNKNOWN"
	IntentUsageLimitReached Intent = "USAGE_LIMIT_REACHED"
)

// Entities carries everything extracted from a message that handlers need.
type Entities struct {
	Symbol        string   `json:"symbol,omitempty"`
	Symbols       []string `json:"symbols,omitempty"`
	FundID        string   `json:"fund_id,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	Range         string   `json:"range,omitempty"`
	Metric        string   `json:"metric,omitempty"`
	StatementType string   `json:"statement_type,omitempty"`
	Direction     string   `json:"direction,omitempty"` // gainers / losers
	Language      string   `json:"language,omitempty"`
}

// IntentResult is the router's classification of one message.
type IntentResult struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
}

// Resolver tier names, recorded on candidates for analytics and tie-breaks.
const (
	MatchExactSymbol  = "exact_symbol"
	MatchAlias        = "alias"
	MatchDisplayName  = "display_name"
	MatchSubstring    = "substring"
	MatchFuzzy        = "fuzzy"
	MatchFundKeyword  = "fund_keyword"
	MatchContext      = "context"
)

// ResolverCandidate is one ranked instrument match for a query.
type ResolverCandidate struct {
	Symbol     string  `json:"symbol"`
	Market     string  `json:"market"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`   // which matching rule produced it
	Priority   int     `json:"priority"` // alias priority, tie-breaker
}

// Suggestion is a near-miss instrument offered in a clarify response.
type Suggestion struct {
	Symbol string `json:"symbol"`
	NameEN string `json:"name_en"`
	NameAR string `json:"name_ar,omitempty"`
}
