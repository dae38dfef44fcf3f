package models

import "time"

// Card types. Every card in an envelope is one of these.
const (
	CardStockHeader    = "stock_header"
	CardSnapshot       = "snapshot"
	CardStats          = "stats"
	CardChart          = "chart"
	CardFinancialTable = "financial_table"
	CardDividendList   = "dividend_list"
	CardShareholders   = "shareholders"
	CardNewsList       = "news_list"
	CardComparison     = "comparison"
	CardFundProfile    = "fund_profile"
	CardHelp           = "help"
	CardError          = "error"
)

// Error kinds carried by error cards and analytics events.
const (
	ErrSymbolNotFound    = "symbol_not_found"
	ErrNoData            = "no_data"
	ErrAmbiguousSymbol   = "ambiguous_symbol"
	ErrComplianceBlocked = "compliance_blocked"
	ErrUsageLimitReached = "usage_limit_reached"
	ErrTimeout           = "timeout"
	ErrUpstreamFailure   = "upstream_failure"
	ErrInternal          = "internal"
)

// Card is one typed display record. Exactly one payload pointer is set,
// matching Type.
type Card struct {
	Type           string              `json:"type"`
	StockHeader    *StockHeaderCard    `json:"stock_header,omitempty"`
	Snapshot       *SnapshotCard       `json:"snapshot,omitempty"`
	Stats          *StatsCard          `json:"stats,omitempty"`
	Chart          *ChartCard          `json:"chart,omitempty"`
	FinancialTable *FinancialTableCard `json:"financial_table,omitempty"`
	DividendList   *DividendListCard   `json:"dividend_list,omitempty"`
	Shareholders   *ShareholdersCard   `json:"shareholders,omitempty"`
	NewsList       *NewsListCard       `json:"news_list,omitempty"`
	Comparison     *ComparisonCard     `json:"comparison,omitempty"`
	FundProfile    *FundProfileCard    `json:"fund_profile,omitempty"`
	Help           *HelpCard           `json:"help,omitempty"`
	Error          *ErrorCard          `json:"error,omitempty"`
}

// StockHeaderCard identifies the instrument a response is about.
type StockHeaderCard struct {
	Symbol     string `json:"symbol"`
	NameEN     string `json:"name_en"`
	NameAR     string `json:"name_ar,omitempty"`
	Market     string `json:"market"`
	Sector     string `json:"sector,omitempty"`
	EntityType string `json:"entity_type"`
	Currency   string `json:"currency"`
}

// SnapshotCard carries the latest quote, or for funds the latest NAV
// with trailing returns. Pointer fields are null when unavailable.
type SnapshotCard struct {
	LastPrice     float64   `json:"last_price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PrevClose     float64   `json:"prev_close"`
	Currency      string    `json:"currency"`
	AsOf          time.Time `json:"as_of"`

	NAV       *float64 `json:"nav,omitempty"`
	YTDReturn *float64 `json:"ytd_return,omitempty"`
	Return1Y  *float64 `json:"return_1y,omitempty"`
	Return3Y  *float64 `json:"return_3y,omitempty"`
	Return5Y  *float64 `json:"return_5y,omitempty"`
}

// StatRow is one labeled value in a stats card. Value is null when the
// metric could not be computed; Unit names the unit or currency.
type StatRow struct {
	Label   string   `json:"label"`
	LabelAR string   `json:"label_ar"`
	Value   *float64 `json:"value"`
	Unit    string   `json:"unit,omitempty"`
	Note    string   `json:"note,omitempty"`
}

// StatsCard is a titled list of computed metrics.
type StatsCard struct {
	Title   string    `json:"title"`
	TitleAR string    `json:"title_ar"`
	Rows    []StatRow `json:"rows"`
}

// ChartCard carries an ordered OHLCV series plus a rendered image URL.
type ChartCard struct {
	Symbol   string       `json:"symbol"`
	Range    string       `json:"range"`
	Currency string       `json:"currency"`
	ImageURL string       `json:"image_url,omitempty"`
	Points   []PricePoint `json:"points"`
}

// FinancialRow is one metric line across the table's period columns.
type FinancialRow struct {
	Label   string     `json:"label"`
	LabelAR string     `json:"label_ar"`
	Unit    string     `json:"unit,omitempty"`
	Values  []*float64 `json:"values"` // aligned with FinancialTableCard.Periods
}

// FinancialTableCard presents statement rows, latest period first.
type FinancialTableCard struct {
	Symbol        string         `json:"symbol"`
	StatementType string         `json:"statement_type"`
	Currency      string         `json:"currency"`
	Periods       []string       `json:"periods"` // e.g. "FY2024", "Q2 2025"
	Rows          []FinancialRow `json:"rows"`
}

// DividendEntry is one distribution in a dividend list.
type DividendEntry struct {
	ExDate   time.Time `json:"ex_date"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Yield    *float64  `json:"yield,omitempty"`
}

// DividendListCard lists historical distributions, most recent first.
type DividendListCard struct {
	Symbol  string          `json:"symbol"`
	Entries []DividendEntry `json:"entries"`
}

// ShareholderEntry is one disclosed owner.
type ShareholderEntry struct {
	Name             string  `json:"name"`
	OwnershipPercent float64 `json:"ownership_percent"`
}

// ShareholdersCard lists disclosed owners by stake, largest first.
type ShareholdersCard struct {
	Symbol  string             `json:"symbol"`
	Holders []ShareholderEntry `json:"holders"`
}

// NewsEntry is one headline in a news list.
type NewsEntry struct {
	Title       string    `json:"title"`
	TitleAR     string    `json:"title_ar,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsListCard lists stored headlines, newest first.
type NewsListCard struct {
	Symbol  string      `json:"symbol"`
	Entries []NewsEntry `json:"entries"`
}

// ComparisonRow is one instrument in a comparison; Values is keyed by
// the card's Metrics. Missing values are null, never zero.
type ComparisonRow struct {
	Symbol string              `json:"symbol"`
	NameEN string              `json:"name_en"`
	NameAR string              `json:"name_ar,omitempty"`
	Values map[string]*float64 `json:"values"`
}

// Comparison metric keys, in display order.
var ComparisonMetrics = []string{
	"last_price", "market_cap", "pe_ratio", "pb_ratio", "dividend_yield", "return_1y",
}

// ComparisonCard compares instruments across a fixed metric set.
type ComparisonCard struct {
	Metrics  []string        `json:"metrics"`
	Currency string          `json:"currency"`
	Rows     []ComparisonRow `json:"rows"`
}

// FundProfileCard identifies a fund and its manager.
type FundProfileCard struct {
	FundID    string    `json:"fund_id"`
	NameEN    string    `json:"name_en"`
	NameAR    string    `json:"name_ar,omitempty"`
	Manager   string    `json:"manager,omitempty"`
	Currency  string    `json:"currency"`
	AsOf      time.Time `json:"as_of"`
	NAV       *float64  `json:"nav,omitempty"`
	YTDReturn *float64  `json:"ytd_return,omitempty"`
	Return1Y  *float64  `json:"return_1y,omitempty"`
}

// HelpExample is one sample query shown in help content.
type HelpExample struct {
	Text   string `json:"text"`
	TextAR string `json:"text_ar"`
}

// HelpCard carries static bilingual usage examples.
type HelpCard struct {
	Examples []HelpExample `json:"examples"`
}

// ErrorCard explains a failed or blocked response.
type ErrorCard struct {
	Kind        string       `json:"kind"`
	Detail      string       `json:"detail,omitempty"`
	DetailAR    string       `json:"detail_ar,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Action types.
const (
	ActionQuery    = "query"
	ActionNavigate = "navigate"
)

// Action is a suggested follow-up: either a canned query to send back,
// or a UI navigation payload.
type Action struct {
	Label      string         `json:"label"`
	LabelAR    string         `json:"label_ar"`
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// EnvelopeMeta carries classification and timing metadata.
type EnvelopeMeta struct {
	Intent         Intent   `json:"intent"`
	Entities       Entities `json:"entities"`
	Confidence     float64  `json:"confidence"`
	BackendVersion string   `json:"backend_version"`
	LatencyMS      int64    `json:"latency_ms"`
}

// ResponseEnvelope is the single return shape of every handler and of
// ProcessMessage. It is always well-formed, including for blocked,
// over-quota, and unknown messages.
type ResponseEnvelope struct {
	Success            bool         `json:"success"`
	MessageText        string       `json:"message_text"`
	ConversationalText string       `json:"conversational_text,omitempty"`
	Language           string       `json:"language"`
	Cards              []Card       `json:"cards"`
	Actions            []Action     `json:"actions"`
	Meta               EnvelopeMeta `json:"meta"`
}

// FirstCard returns the first card of the given type, or nil.
func (e *ResponseEnvelope) FirstCard(cardType string) *Card {
	for i := range e.Cards {
		if e.Cards[i].Type == cardType {
			return &e.Cards[i]
		}
	}
	return nil
}

// ErrorKind returns the kind of the first error card, or empty string.
func (e *ResponseEnvelope) ErrorKind() string {
	if c := e.FirstCard(CardError); c != nil && c.Error != nil {
		return c.Error.Kind
	}
	return ""
}
