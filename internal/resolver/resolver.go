// Package resolver maps fuzzy user text to canonical instruments through
// a ranked matching cascade over the instrument and alias universe.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/nlp"
)

// ambiguityWindow is the score gap under which two distinct leaders
// force a clarify response instead of a silent pick.
const ambiguityWindow = 0.05

// roleTokens are query words that describe what the user wants, not which
// instrument they mean. Stripped before matching so "price of shield" and
// "shield" resolve identically. Arabic entries are in folded form.
var roleTokens = map[string]bool{
	"price": true, "quote": true, "chart": true, "stock": true,
	"share": true, "company": true, "of": true, "for": true, "the": true,
	"سعر": true, "سهم": true, "شركه": true, "عرض": true,
}

// fundTokens flag a fund-class query for the fund-name tier.
var fundTokens = map[string]bool{
	"fund": true, "etf": true, "صندوق": true, "صناديق": true,
}

// snapshot is an immutable in-memory view of the instrument universe.
type snapshot struct {
	symbols     map[string]*models.Instrument // upper symbol → instrument
	aliases     map[string][]*models.Alias    // alias_norm → bindings
	names       map[string][]string           // folded display name → symbols
	aliasList   []*models.Alias
	instruments []*models.Instrument
	funds       []*models.Fund
	fundNames   map[string]string // folded fund name → fund_id
	maxPriority int
	suggester   *Suggester
}

// Resolver implements interfaces.SymbolResolver with a ranked cascade:
// exact symbol, exact alias, exact display name, substring, fuzzy,
// fund-name heuristic, then context fallback.
type Resolver struct {
	store          interfaces.MarketStore
	logger         *common.Logger
	minConfidence  float64
	maxSuggestions int
	marketAllowed  func(string) bool

	mu   sync.RWMutex
	snap *snapshot
}

// New creates a resolver. Instruments whose market fails marketAllowed
// are excluded from the universe; a nil predicate admits every market.
// Call Reload before first use.
func New(store interfaces.MarketStore, cfg common.ResolverConfig, marketAllowed func(string) bool, logger *common.Logger) *Resolver {
	minConf := cfg.MinConfidence
	if minConf <= 0 {
		minConf = 0.55
	}
	maxSugg := cfg.MaxSuggestions
	if maxSugg <= 0 {
		maxSugg = 5
	}
	if marketAllowed == nil {
		marketAllowed = func(string) bool { return true }
	}
	return &Resolver{
		store:          store,
		logger:         logger,
		minConfidence:  minConf,
		maxSuggestions: maxSugg,
		marketAllowed:  marketAllowed,
	}
}

// Reload rebuilds the in-memory universe from the store. Instruments load
// before aliases; an alias whose symbol is unknown is dropped. Instruments
// outside the deployment's market filter never enter the universe, so
// their aliases drop with them.
func (r *Resolver) Reload(ctx context.Context) error {
	loaded, err := r.store.ListInstruments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load instruments: %w", err)
	}
	instruments := make([]*models.Instrument, 0, len(loaded))
	for _, inst := range loaded {
		if !r.marketAllowed(inst.Market) {
			r.logger.Debug().Str("symbol", inst.Symbol).Str("market", inst.Market).Msg("Instrument outside market filter, skipping")
			continue
		}
		instruments = append(instruments, inst)
	}
	aliases, err := r.store.ListAliases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load aliases: %w", err)
	}
	funds, err := r.store.ListFunds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load funds: %w", err)
	}

	snap := &snapshot{
		symbols:     make(map[string]*models.Instrument, len(instruments)),
		aliases:     make(map[string][]*models.Alias, len(aliases)),
		names:       map[string][]string{},
		instruments: instruments,
		funds:       funds,
		fundNames:   map[string]string{},
	}

	for _, inst := range instruments {
		snap.symbols[strings.ToUpper(inst.Symbol)] = inst
		for _, name := range []string{inst.NameEN, inst.NameAR, inst.NameNative} {
			if name == "" {
				continue
			}
			folded := nlp.Fold(name)
			if folded == "" {
				continue
			}
			snap.names[folded] = appendUnique(snap.names[folded], inst.Symbol)
		}
	}

	for _, a := range aliases {
		if _, ok := snap.symbols[strings.ToUpper(a.Symbol)]; !ok {
			r.logger.Warn().Str("alias", a.AliasNorm).Str("symbol", a.Symbol).Msg("Alias references unknown instrument, skipping")
			continue
		}
		snap.aliases[a.AliasNorm] = append(snap.aliases[a.AliasNorm], a)
		snap.aliasList = append(snap.aliasList, a)
		if a.Priority > snap.maxPriority {
			snap.maxPriority = a.Priority
		}
	}

	for _, f := range funds {
		for _, name := range []string{f.NameEN, f.NameAR} {
			folded := nlp.Fold(name)
			if folded != "" {
				if _, exists := snap.fundNames[folded]; !exists {
					snap.fundNames[folded] = f.FundID
				}
			}
		}
	}

	suggester, err := NewSuggester(instruments, snap.aliasList, nlp.Fold)
	if err != nil {
		return fmt.Errorf("failed to build suggester: %w", err)
	}
	snap.suggester = suggester

	r.mu.Lock()
	old := r.snap
	r.snap = snap
	r.mu.Unlock()
	if old != nil && old.suggester != nil {
		old.suggester.Close()
	}

	r.logger.Info().
		Int("instruments", len(instruments)).
		Int("aliases", len(snap.aliasList)).
		Int("funds", len(funds)).
		Msg("Resolver universe loaded")
	return nil
}

func (r *Resolver) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Resolve runs the cascade over an already-normalized message.
func (r *Resolver) Resolve(ctx context.Context, text nlp.NormalizedText, conv *models.ConversationContext) (*interfaces.Resolution, error) {
	return r.ResolvePhrase(ctx, text.Normalized, conv)
}

// ResolvePhrase resolves a raw phrase (it is folded internally). Used by
// the router for multi-symbol messages like comparisons.
func (r *Resolver) ResolvePhrase(_ context.Context, phrase string, conv *models.ConversationContext) (*interfaces.Resolution, error) {
	snap := r.snapshot()
	if snap == nil {
		return nil, fmt.Errorf("resolver universe not loaded")
	}

	folded := nlp.Fold(phrase)
	query, tokens := stripRoleTokens(folded)

	prefMarket := ""
	if conv != nil {
		prefMarket = conv.LastMarket
	}

	// T7: nothing left but role words, fall back to the session's symbol.
	if query == "" {
		if conv != nil && conv.LastSymbol != "" {
			if inst, ok := snap.symbols[strings.ToUpper(conv.LastSymbol)]; ok {
				return &interfaces.Resolution{Best: &models.ResolverCandidate{
					Symbol:     inst.Symbol,
					Market:     inst.Market,
					EntityType: inst.EntityType,
					Score:      0.50,
					Source:     models.MatchContext,
				}}, nil
			}
		}
		return &interfaces.Resolution{}, nil
	}

	// T1: exact canonical symbol, with or without market suffix.
	if c := snap.matchSymbol(query, tokens); c != nil {
		return &interfaces.Resolution{Best: c}, nil
	}

	// T2: exact alias.
	if res := snap.matchAlias(query, prefMarket); res != nil {
		return res, nil
	}

	// T3: exact display name.
	if res := snap.matchDisplayName(query, prefMarket); res != nil {
		return res, nil
	}

	// T4 + T5 + T6 produce scored candidates; tier order decides among
	// those above the confidence floor, score decides among leftovers.
	var leftovers []*models.ResolverCandidate
	for _, tier := range []func(string, []string) []*models.ResolverCandidate{
		snap.matchSubstring, snap.matchFuzzy,
	} {
		candidates := tier(query, tokens)
		if res := r.pickTierWinner(candidates, prefMarket); res != nil {
			return res, nil
		}
		leftovers = append(leftovers, candidates...)
	}

	if hasFundToken(tokens) {
		candidates := snap.matchFundNames(query, tokens)
		if res := r.pickTierWinner(candidates, prefMarket); res != nil {
			return res, nil
		}
		leftovers = append(leftovers, candidates...)
	}

	// Highest-scored leftover still wins if it clears the floor.
	sortCandidates(leftovers, prefMarket)
	leftovers = dedupeBySymbol(leftovers)
	if len(leftovers) > 0 && leftovers[0].Score >= r.minConfidence {
		return r.withAmbiguity(leftovers), nil
	}

	// Nothing confident: hand back near-misses for a clarify prompt.
	return &interfaces.Resolution{
		Suggestions: snap.suggester.Suggest(query, r.maxSuggestions),
	}, nil
}

// pickTierWinner applies tie-breaks and the confidence floor to one
// tier's candidates. Returns nil when the tier produced nothing usable.
func (r *Resolver) pickTierWinner(candidates []*models.ResolverCandidate, prefMarket string) *interfaces.Resolution {
	sortCandidates(candidates, prefMarket)
	candidates = dedupeBySymbol(candidates)
	if len(candidates) == 0 || candidates[0].Score < r.minConfidence {
		return nil
	}
	return r.withAmbiguity(candidates)
}

// withAmbiguity wraps the ranked candidates, flagging a clarify when the
// two leaders are distinct symbols within the ambiguity window.
func (r *Resolver) withAmbiguity(ranked []*models.ResolverCandidate) *interfaces.Resolution {
	res := &interfaces.Resolution{Best: ranked[0]}
	if len(ranked) > 1 &&
		ranked[1].Symbol != ranked[0].Symbol &&
		ranked[0].Score-ranked[1].Score < ambiguityWindow &&
		ranked[1].Score >= r.minConfidence {
		res.Ambiguous = true
		snap := r.snapshot()
		for _, c := range ranked {
			if len(res.Suggestions) >= r.maxSuggestions {
				break
			}
			res.Suggestions = append(res.Suggestions, snap.suggestionFor(c))
		}
	}
	return res
}

// --- tier implementations ---

func (s *snapshot) matchSymbol(query string, tokens []string) *models.ResolverCandidate {
	tryList := append([]string{strings.ReplaceAll(query, " ", "")}, tokens...)
	for _, t := range tryList {
		upper := strings.ToUpper(t)
		inst, ok := s.symbols[upper]
		if !ok {
			// Market-suffixed form, e.g. "comi ca" from "COMI.CA".
			continue
		}
		return &models.ResolverCandidate{
			Symbol:     inst.Symbol,
			Market:     inst.Market,
			EntityType: inst.EntityType,
			Score:      1.0,
			Source:     models.MatchExactSymbol,
		}
	}
	return nil
}

func (s *snapshot) matchAlias(query, prefMarket string) *interfaces.Resolution {
	bindings := s.aliases[query]
	if len(bindings) == 0 {
		return nil
	}
	maxPriority := s.maxPriority
	if maxPriority == 0 {
		maxPriority = 1
	}
	var candidates []*models.ResolverCandidate
	for _, a := range bindings {
		inst := s.symbols[strings.ToUpper(a.Symbol)]
		candidates = append(candidates, &models.ResolverCandidate{
			Symbol:     inst.Symbol,
			Market:     inst.Market,
			EntityType: inst.EntityType,
			Score:      0.90 + 0.05*float64(a.Priority)/float64(maxPriority),
			Source:     models.MatchAlias,
			Priority:   a.Priority,
		})
	}
	sortCandidates(candidates, prefMarket)
	res := &interfaces.Resolution{Best: candidates[0]}
	if len(candidates) > 1 &&
		candidates[1].Symbol != candidates[0].Symbol &&
		candidates[0].Score-candidates[1].Score < ambiguityWindow {
		res.Ambiguous = true
		for _, c := range candidates {
			if len(res.Suggestions) >= 5 {
				break
			}
			res.Suggestions = append(res.Suggestions, s.suggestionFor(c))
		}
	}
	return res
}

func (s *snapshot) matchDisplayName(query, prefMarket string) *interfaces.Resolution {
	symbols := s.names[query]
	if len(symbols) == 0 {
		return nil
	}
	var candidates []*models.ResolverCandidate
	for _, sym := range symbols {
		inst := s.symbols[strings.ToUpper(sym)]
		if inst == nil {
			continue
		}
		candidates = append(candidates, &models.ResolverCandidate{
			Symbol:     inst.Symbol,
			Market:     inst.Market,
			EntityType: inst.EntityType,
			Score:      0.85,
			Source:     models.MatchDisplayName,
		})
	}
	if len(candidates) == 0 {
		return nil
	}
	sortCandidates(candidates, prefMarket)
	res := &interfaces.Resolution{Best: candidates[0]}
	if len(candidates) > 1 && candidates[1].Symbol != candidates[0].Symbol {
		res.Ambiguous = true
		for _, c := range candidates {
			if len(res.Suggestions) >= 5 {
				break
			}
			res.Suggestions = append(res.Suggestions, s.suggestionFor(c))
		}
	}
	return res
}

func (s *snapshot) matchSubstring(query string, _ []string) []*models.ResolverCandidate {
	best := map[string]*models.ResolverCandidate{}
	consider := func(key, symbol string, priority int) {
		if !strings.Contains(key, query) && !strings.Contains(query, key) {
			return
		}
		cov := coverage(query, key)
		if cov < 0.6 {
			return
		}
		inst := s.symbols[strings.ToUpper(symbol)]
		if inst == nil {
			return
		}
		score := 0.70 * cov
		if prev, ok := best[inst.Symbol]; ok && prev.Score >= score {
			return
		}
		best[inst.Symbol] = &models.ResolverCandidate{
			Symbol:     inst.Symbol,
			Market:     inst.Market,
			EntityType: inst.EntityType,
			Score:      score,
			Source:     models.MatchSubstring,
			Priority:   priority,
		}
	}

	for _, a := range s.aliasList {
		consider(a.AliasNorm, a.Symbol, a.Priority)
	}
	for name, symbols := range s.names {
		for _, sym := range symbols {
			consider(name, sym, 0)
		}
	}
	return collectCandidates(best)
}

func (s *snapshot) matchFuzzy(query string, _ []string) []*models.ResolverCandidate {
	best := map[string]*models.ResolverCandidate{}
	consider := func(key, symbol string, priority int) {
		if !sharesToken(query, key) {
			return
		}
		sim := tokenSetSimilarity(query, key)
		if sim < 0.8 {
			return
		}
		inst := s.symbols[strings.ToUpper(symbol)]
		if inst == nil {
			return
		}
		if prev, ok := best[inst.Symbol]; ok && prev.Score >= sim {
			return
		}
		best[inst.Symbol] = &models.ResolverCandidate{
			Symbol:     inst.Symbol,
			Market:     inst.Market,
			EntityType: inst.EntityType,
			Score:      sim,
			Source:     models.MatchFuzzy,
			Priority:   priority,
		}
	}

	for _, a := range s.aliasList {
		consider(a.AliasNorm, a.Symbol, a.Priority)
	}
	for name, symbols := range s.names {
		for _, sym := range symbols {
			consider(name, sym, 0)
		}
	}
	return collectCandidates(best)
}

// matchFundNames handles fund-class queries against the funds table.
// Scores are capped at 0.75.
func (s *snapshot) matchFundNames(query string, tokens []string) []*models.ResolverCandidate {
	// Drop the fund-class words themselves before matching names.
	var rest []string
	for _, t := range tokens {
		if !fundTokens[t] {
			rest = append(rest, t)
		}
	}
	needle := strings.Join(rest, " ")
	if needle == "" {
		return nil
	}

	best := map[string]*models.ResolverCandidate{}
	for name, fundID := range s.fundNames {
		var score float64
		switch {
		case name == needle:
			score = 0.75
		case containsAllTokens(name, rest):
			// A distinctive subset of the fund's name, e.g. just the
			// manager brand.
			score = 0.75
		case strings.Contains(name, needle) || strings.Contains(needle, name):
			score = 0.75 * coverage(needle, name)
		case sharesToken(needle, name):
			if sim := tokenSetSimilarity(needle, name); sim >= 0.8 {
				score = 0.75 * sim
			}
		}
		if score == 0 {
			continue
		}
		if prev, ok := best[fundID]; ok && prev.Score >= score {
			continue
		}
		best[fundID] = &models.ResolverCandidate{
			Symbol:     fundID,
			EntityType: models.EntityFund,
			Score:      score,
			Source:     models.MatchFundKeyword,
		}
	}
	return collectCandidates(best)
}

// --- helpers ---

func (s *snapshot) suggestionFor(c *models.ResolverCandidate) models.Suggestion {
	sug := models.Suggestion{Symbol: c.Symbol}
	if inst, ok := s.symbols[strings.ToUpper(c.Symbol)]; ok {
		sug.NameEN = inst.NameEN
		sug.NameAR = inst.NameAR
	}
	return sug
}

func stripRoleTokens(folded string) (string, []string) {
	var kept []string
	for _, tok := range strings.Fields(folded) {
		if !roleTokens[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " "), kept
}

// containsAllTokens reports whether every query token appears in the
// folded name.
func containsAllTokens(name string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	set := map[string]bool{}
	for _, t := range strings.Fields(name) {
		set[t] = true
	}
	for _, t := range tokens {
		if !set[t] {
			return false
		}
	}
	return true
}

func hasFundToken(tokens []string) bool {
	for _, t := range tokens {
		if fundTokens[t] {
			return true
		}
	}
	return false
}

// sortCandidates ranks by score, then alias priority, then context market
// preference, then shorter symbol, then lexicographic.
func sortCandidates(cs []*models.ResolverCandidate, prefMarket string) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if prefMarket != "" && (a.Market == prefMarket) != (b.Market == prefMarket) {
			return a.Market == prefMarket
		}
		if len(a.Symbol) != len(b.Symbol) {
			return len(a.Symbol) < len(b.Symbol)
		}
		return a.Symbol < b.Symbol
	})
}

func dedupeBySymbol(cs []*models.ResolverCandidate) []*models.ResolverCandidate {
	seen := map[string]bool{}
	var out []*models.ResolverCandidate
	for _, c := range cs {
		if seen[c.Symbol] {
			continue
		}
		seen[c.Symbol] = true
		out = append(out, c)
	}
	return out
}

func collectCandidates(m map[string]*models.ResolverCandidate) []*models.ResolverCandidate {
	out := make([]*models.ResolverCandidate, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Close releases the suggestion index.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != nil && r.snap.suggester != nil {
		return r.snap.suggester.Close()
	}
	return nil
}

var _ interfaces.SymbolResolver = (*Resolver)(nil)
