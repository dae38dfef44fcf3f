// Package intent classifies normalized messages into the closed intent
// set through an ordered rule list plus a compliance filter.
package intent

import (
	"context"
	"strings"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/nlp"
)

// Router implements interfaces.IntentRouter. Rules run most-specific
// first; the first rule that fires wins.
type Router struct {
	resolver        interfaces.SymbolResolver
	logger          *common.Logger
	defaultLanguage string
}

// NewRouter creates the rule-based intent router. The resolver is used
// for multi-symbol messages (comparisons, follow-ups naming a new stock).
func NewRouter(resolver interfaces.SymbolResolver, defaultLanguage string, logger *common.Logger) *Router {
	if defaultLanguage == "" {
		defaultLanguage = "ar"
	}
	return &Router{
		resolver:        resolver,
		logger:          logger,
		defaultLanguage: defaultLanguage,
	}
}

// keyword tables, all in folded form.
var (
	compareSeps = []string{"vs", "versus", "مقابل"}
	compareKeys = []string{"compare", "قارن", "مقارنه"}

	moverGainers = []string{"gainers", "الرابحه", "الصاعده"}
	moverLosers  = []string{"losers", "الخاسره", "الهابطه"}
	moverGeneric = []string{"movers", "المتصدره"}

	sectorKeys = []string{"sector", "قطاع"}

	chartKeys = []string{"chart", "graph", "شارت", "رسم", "بياني"}

	dividendKeys = []string{"dividend", "dividends", "توزيعات", "كوبون", "كوبونات"}

	ownershipKeys = []string{"shareholders", "shareholder", "ownership", "owners", "المساهمين", "الملاك", "ملكيه"}

	marginKeys = []string{"margin", "margins", "هامش", "هوامش"}

	financialKeys = []string{"financials", "income", "balance", "cashflow", "revenue", "revenues",
		"earnings", "profit", "profits", "statement", "statements",
		"قوائم", "ميزانيه", "ارباح", "ايرادات", "دخل", "تدفقات"}

	technicalKeys = []string{"rsi", "macd", "technical", "technicals", "sma", "ema", "momentum",
		"فني", "فنيه", "مؤشرات"}

	fairValueKeys = []string{"valuation", "undervalued", "overvalued", "تقييم", "العادله", "مقومه"}

	healthKeys = []string{"health", "solvency", "liquidity", "leverage", "indebted",
		"ملاءه", "سيوله", "مديونيه", "صحه"}

	newsKeys = []string{"news", "headlines", "اخبار", "الاخبار"}

	navKeys = []string{"nav", "وثيقه"}

	fundClassKeys = []string{"fund", "funds", "etf", "صندوق", "صناديق"}

	fundSearchKeys = []string{"best", "top", "search", "find", "list", "افضل", "احسن", "دور", "ابحث"}

	educationKeys = []string{"explain", "meaning", "يعني", "اشرح", "تعريف"}

	helpKeys = []string{"help", "مساعده", "ساعدني"}

	chitchatKeys = []string{"hi", "hello", "hey", "thanks", "thank", "bye",
		"اهلا", "مرحبا", "شكرا", "ازيك", "هاي", "سلام"}

	priceKeys = []string{"price", "quote", "trading", "سعر", "بكام", "وصل"}

	followUpPhrases = []string{
		"is that good", "is this good", "is it good", "what does that mean",
		"and the chart", "what about", "how about", "same for",
		"وهل هذا جيد", "هل هذا جيد", "طيب", "وماذا عن", "وايه اخبار", "ونفس الكلام",
	}
)

// Classify runs the rule list over one normalized message.
func (r *Router) Classify(ctx context.Context, text nlp.NormalizedText, res *interfaces.Resolution, conv *models.ConversationContext) models.IntentResult {
	folded := text.Normalized
	tokens := tokenSet(text.Tokens)
	language := r.inferLanguage(text.Script)

	base := models.Entities{Language: language}
	if res != nil && res.Best != nil {
		if res.Best.EntityType == models.EntityFund {
			base.FundID = res.Best.Symbol
		} else {
			base.Symbol = res.Best.Symbol
		}
	}

	// Compliance overrides everything, including a resolved symbol.
	if blocked, reason := checkCompliance(folded); blocked {
		r.logger.Debug().Str("reason", reason).Msg("Message blocked by compliance filter")
		return models.IntentResult{Intent: models.IntentBlocked, Confidence: 0.95, Entities: base}
	}

	if result, ok := r.classifyCompare(ctx, folded, conv, base); ok {
		return result
	}

	if direction, ok := moverDirection(tokens); ok {
		e := base
		e.Direction = direction
		return models.IntentResult{Intent: models.IntentMarketMovers, Confidence: 0.92, Entities: e}
	}

	if sector, ok := extractSector(text.Tokens); ok {
		e := base
		e.Sector = sector
		return models.IntentResult{Intent: models.IntentSectorStocks, Confidence: 0.88, Entities: e}
	}

	if anyToken(tokens, fundClassKeys) {
		if base.FundID != "" {
			return models.IntentResult{Intent: models.IntentFundNAV, Confidence: 0.90, Entities: base}
		}
		if anyToken(tokens, fundSearchKeys) || base.Symbol == "" {
			return models.IntentResult{Intent: models.IntentFundSearch, Confidence: 0.80, Entities: base}
		}
	}
	if base.FundID != "" && (anyToken(tokens, navKeys) || anyToken(tokens, priceKeys)) {
		return models.IntentResult{Intent: models.IntentFundNAV, Confidence: 0.90, Entities: base}
	}

	if anyToken(tokens, chartKeys) {
		e := base
		e.Range = extractRange(folded, text.Tokens)
		return models.IntentResult{Intent: models.IntentStockChart, Confidence: 0.92, Entities: e}
	}

	if anyToken(tokens, dividendKeys) {
		return models.IntentResult{Intent: models.IntentDividends, Confidence: 0.92, Entities: base}
	}

	if anyToken(tokens, ownershipKeys) {
		return models.IntentResult{Intent: models.IntentOwnership, Confidence: 0.90, Entities: base}
	}

	if anyToken(tokens, marginKeys) {
		return models.IntentResult{Intent: models.IntentFinMargins, Confidence: 0.90, Entities: base}
	}

	if anyToken(tokens, technicalKeys) {
		return models.IntentResult{Intent: models.IntentTechnicals, Confidence: 0.88, Entities: base}
	}

	if strings.Contains(folded, "fair value") || strings.Contains(folded, "القيمه العادله") || anyToken(tokens, fairValueKeys) {
		return models.IntentResult{Intent: models.IntentFairValue, Confidence: 0.85, Entities: base}
	}

	if strings.Contains(folded, "financial health") || strings.Contains(folded, "الصحه الماليه") || anyToken(tokens, healthKeys) {
		return models.IntentResult{Intent: models.IntentFinancialHealth, Confidence: 0.82, Entities: base}
	}

	if anyToken(tokens, financialKeys) {
		e := base
		e.StatementType = extractStatementType(tokens)
		return models.IntentResult{Intent: models.IntentFinancials, Confidence: 0.88, Entities: e}
	}

	if anyToken(tokens, newsKeys) {
		return models.IntentResult{Intent: models.IntentNews, Confidence: 0.92, Entities: base}
	}

	if result, ok := classifyEducation(folded, tokens, base); ok {
		return result
	}

	if anyToken(tokens, helpKeys) || strings.Contains(folded, "what can you do") || strings.Contains(folded, "ماذا تستطيع") {
		return models.IntentResult{Intent: models.IntentHelp, Confidence: 0.95, Entities: base}
	}

	if anyToken(tokens, priceKeys) && (base.Symbol != "" || (conv != nil && conv.LastSymbol != "")) {
		e := base
		if e.Symbol == "" {
			e.Symbol = conv.LastSymbol
		}
		return models.IntentResult{Intent: models.IntentStockPrice, Confidence: 0.90, Entities: e}
	}

	if result, ok := r.classifyFollowUp(folded, conv, base); ok {
		return result
	}

	// A resolved instrument with no other signal reads as a snapshot ask.
	if base.Symbol != "" {
		return models.IntentResult{Intent: models.IntentStockSnapshot, Confidence: 0.70, Entities: base}
	}

	if anyToken(tokens, chitchatKeys) && len(text.Tokens) <= 4 {
		return models.IntentResult{Intent: models.IntentChitchat, Confidence: 0.85, Entities: base}
	}

	return models.IntentResult{Intent: models.IntentUnknown, Confidence: 0, Entities: base}
}

// classifyCompare handles "X vs Y" and "compare X and Y" by resolving
// each side separately.
func (r *Router) classifyCompare(ctx context.Context, folded string, conv *models.ConversationContext, base models.Entities) (models.IntentResult, bool) {
	var left, right string
	for _, sep := range compareSeps {
		if parts := strings.SplitN(folded, " "+sep+" ", 2); len(parts) == 2 {
			left, right = parts[0], parts[1]
			break
		}
	}
	if left == "" {
		hasKey := false
		for _, key := range compareKeys {
			if strings.HasPrefix(folded, key+" ") {
				folded = strings.TrimPrefix(folded, key+" ")
				hasKey = true
				break
			}
		}
		if !hasKey {
			return models.IntentResult{}, false
		}
		for _, conj := range []string{" and ", " و ", " بـ "} {
			if parts := strings.SplitN(folded, conj, 2); len(parts) == 2 {
				left, right = parts[0], parts[1]
				break
			}
		}
	}
	if left == "" || right == "" {
		return models.IntentResult{}, false
	}

	// Trailing compare verbs on the left side, e.g. "compare comi vs swdy".
	for _, key := range compareKeys {
		left = strings.TrimPrefix(left, key+" ")
	}

	symbols := make([]string, 0, 2)
	for _, side := range []string{left, right} {
		resolution, err := r.resolver.ResolvePhrase(ctx, side, conv)
		if err != nil || resolution.Best == nil || resolution.Best.EntityType == models.EntityFund {
			return models.IntentResult{}, false
		}
		symbols = append(symbols, resolution.Best.Symbol)
	}
	if symbols[0] == symbols[1] {
		return models.IntentResult{}, false
	}

	e := base
	e.Symbol = ""
	e.Symbols = symbols
	return models.IntentResult{Intent: models.IntentCompare, Confidence: 0.95, Entities: e}, true
}

// classifyFollowUp matches anaphoric turns against the session context.
func (r *Router) classifyFollowUp(folded string, conv *models.ConversationContext, base models.Entities) (models.IntentResult, bool) {
	if conv == nil || conv.LastIntent == "" {
		return models.IntentResult{}, false
	}
	for _, phrase := range followUpPhrases {
		if strings.Contains(folded, phrase) {
			e := base
			if e.Symbol == "" {
				e.Symbol = conv.LastSymbol
			}
			if e.Range == "" {
				e.Range = conv.LastRange
			}
			return models.IntentResult{Intent: models.IntentFollowUp, Confidence: 0.75, Entities: e}, true
		}
	}
	return models.IntentResult{}, false
}

func (r *Router) inferLanguage(script string) string {
	switch script {
	case nlp.ScriptArabic:
		return "ar"
	case nlp.ScriptLatin:
		return "en"
	default:
		return r.defaultLanguage
	}
}

// --- extractors ---

func moverDirection(tokens map[string]bool) (string, bool) {
	switch {
	case anyToken(tokens, moverGainers):
		return "gainers", true
	case anyToken(tokens, moverLosers):
		return "losers", true
	case anyToken(tokens, moverGeneric):
		return "gainers", true
	}
	if tokens["اكثر"] && (tokens["ارتفاعا"] || tokens["صعودا"]) {
		return "gainers", true
	}
	if tokens["اكثر"] && (tokens["انخفاضا"] || tokens["هبوطا"]) {
		return "losers", true
	}
	return "", false
}

// extractSector returns the words after the sector keyword.
func extractSector(tokens []string) (string, bool) {
	for i, tok := range tokens {
		for _, key := range sectorKeys {
			if tok == key && i+1 < len(tokens) {
				return strings.Join(tokens[i+1:], " "), true
			}
		}
	}
	return "", false
}

var rangeAliases = map[string]string{
	"1d": "1D", "day": "1D", "اليوم": "1D",
	"1w": "1W", "week": "1W", "اسبوع": "1W",
	"1m": "1M", "month": "1M", "شهر": "1M",
	"3m": "3M", "3months": "3M",
	"6m": "6M", "6months": "6M",
	"1y": "1Y", "year": "1Y", "سنه": "1Y",
	"5y": "5Y",
	"max": "MAX", "all": "MAX", "الكل": "MAX",
}

func extractRange(folded string, tokens []string) string {
	for _, tok := range tokens {
		if r, ok := rangeAliases[tok]; ok {
			return r
		}
	}
	// "3 m" and "3 months" tokenize as two words.
	for _, pair := range []struct{ phrase, rng string }{
		{"3 months", "3M"}, {"6 months", "6M"}, {"5 years", "5Y"},
		{"3 شهور", "3M"}, {"6 شهور", "6M"}, {"5 سنين", "5Y"},
	} {
		if strings.Contains(folded, pair.phrase) {
			return pair.rng
		}
	}
	return ""
}

func extractStatementType(tokens map[string]bool) string {
	switch {
	case tokens["income"] || tokens["revenue"] || tokens["revenues"] || tokens["دخل"] || tokens["ايرادات"]:
		return models.StatementIncome
	case tokens["balance"] || tokens["ميزانيه"]:
		return models.StatementBalance
	case tokens["cashflow"] || tokens["تدفقات"]:
		return models.StatementCashflow
	}
	return ""
}

// educationTerms maps a folded phrase to the glossary entry it asks for.
var educationTerms = map[string]string{
	"pe ratio": "pe_ratio", "p e": "pe_ratio", "مكرر الربحيه": "pe_ratio",
	"eps": "eps", "ربحيه السهم": "eps",
	"dividend yield": "dividend_yield", "عائد التوزيعات": "dividend_yield",
	"market cap": "market_cap", "القيمه السوقيه": "market_cap",
	"nav": "nav", "صافي قيمه الاصول": "nav",
	"pb ratio": "pb_ratio", "مضاعف القيمه الدفتريه": "pb_ratio",
}

func classifyEducation(folded string, tokens map[string]bool, base models.Entities) (models.IntentResult, bool) {
	asksMeaning := anyToken(tokens, educationKeys) ||
		strings.Contains(folded, "what is") || strings.Contains(folded, "what does") ||
		strings.Contains(folded, "ما هو") || strings.Contains(folded, "ما هي") ||
		strings.Contains(folded, "يعني ايه")
	if !asksMeaning {
		return models.IntentResult{}, false
	}
	for phrase, metric := range educationTerms {
		if strings.Contains(folded, phrase) {
			e := base
			e.Metric = metric
			return models.IntentResult{Intent: models.IntentEducation, Confidence: 0.90, Entities: e}, true
		}
	}
	// A "what is X" question about a resolved instrument is a snapshot ask.
	if base.Symbol != "" || base.FundID != "" {
		return models.IntentResult{}, false
	}
	return models.IntentResult{Intent: models.IntentEducation, Confidence: 0.65, Entities: base}, true
}

// --- helpers ---

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func anyToken(set map[string]bool, keys []string) bool {
	for _, k := range keys {
		if set[k] {
			return true
		}
	}
	return false
}

var _ interfaces.IntentRouter = (*Router)(nil)
