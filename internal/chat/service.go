// Package chat is the orchestrator: one entry point that threads a
// message through normalization, resolution, classification, metering,
// dispatch, and narration.
package chat

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/handlers"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/nlp"
)

// symbolIntents are the intents that operate on one resolved instrument.
// Only these trigger clarify flows and context fallback.
var symbolIntents = map[models.Intent]bool{
	models.IntentStockPrice:      true,
	models.IntentStockSnapshot:   true,
	models.IntentStockChart:      true,
	models.IntentFinancials:      true,
	models.IntentFinMargins:      true,
	models.IntentDividends:       true,
	models.IntentOwnership:       true,
	models.IntentTechnicals:      true,
	models.IntentFairValue:       true,
	models.IntentFinancialHealth: true,
	models.IntentNews:            true,
	models.IntentFundNAV:         true,
}

// Service implements interfaces.ChatService.
type Service struct {
	cfg       *common.Config
	logger    *common.Logger
	resolver  interfaces.SymbolResolver
	router    interfaces.IntentRouter
	contexts  interfaces.ContextStore
	meter     interfaces.UsageMeter
	registry  *handlers.Registry
	narrator  interfaces.Narrator
	analytics interfaces.AnalyticsSink

	// Messages within one session run in arrival order.
	locksMu sync.Mutex
	locks   map[string]*sessionLock

	now func() time.Time
}

// sessionLock serializes one session's messages and remembers when it
// was last handed out, so idle entries can be swept.
type sessionLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// NewService wires the orchestrator. narrator may be nil when narration
// is disabled.
func NewService(
	cfg *common.Config,
	resolver interfaces.SymbolResolver,
	router interfaces.IntentRouter,
	contexts interfaces.ContextStore,
	meter interfaces.UsageMeter,
	registry *handlers.Registry,
	narrator interfaces.Narrator,
	analytics interfaces.AnalyticsSink,
	logger *common.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		logger:    logger,
		resolver:  resolver,
		router:    router,
		contexts:  contexts,
		meter:     meter,
		registry:  registry,
		narrator:  narrator,
		analytics: analytics,
		locks:     map[string]*sessionLock{},
		now:       time.Now,
	}
}

// ProcessMessage runs one message through the full pipeline and always
// returns a well-formed envelope.
func (s *Service) ProcessMessage(ctx context.Context, sessionID string, principal models.Principal, req *models.ChatRequest) (env *models.ResponseEnvelope) {
	start := s.now()
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Chat.MessageDeadline())
	defer cancel()

	lock := s.sessionLock(sessionID)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	text := nlp.Normalize(req.Message)
	language := s.cfg.DefaultLanguage

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic while processing message")
			env = handlers.InternalErrorEnvelope(language)
		}
		s.finish(ctx, env, sessionID, principal, start)
	}()

	conv := s.contexts.Get(sessionID)

	resolution, err := s.resolver.Resolve(ctx, text, conv)
	if err != nil {
		s.logger.Error().Err(err).Msg("Symbol resolution failed")
		resolution = &interfaces.Resolution{}
	}

	result := s.router.Classify(ctx, text, resolution, conv)
	if req.LanguageHint == "en" || req.LanguageHint == "ar" {
		result.Entities.Language = req.LanguageHint
	}
	language = result.Entities.Language

	// Quota gate. The over-quota attempt is counted and blocked in one step.
	meterID := principal.ID
	if meterID == "" {
		meterID = sessionID
	}
	allowed, _, ceiling, err := s.meter.Allow(ctx, meterID, principal.Authenticated)
	if err != nil {
		s.logger.Error().Err(err).Msg("Usage meter failed")
	}
	if !allowed {
		env = handlers.UsageLimitEnvelope(language, ceiling)
		env.Meta.Intent = models.IntentUsageLimitReached
		env.Meta.Entities = result.Entities
		return env
	}

	intent := result.Intent

	// A follow-up re-runs the previous intent with entities carried over.
	if intent == models.IntentFollowUp && conv != nil && conv.LastIntent != "" {
		intent = conv.LastIntent
		if result.Entities.Range == "" {
			result.Entities.Range = conv.LastRange
		}
		if len(result.Entities.Symbols) == 0 {
			result.Entities.Symbols = conv.CompareSymbols
		}
	}

	// An ambiguous resolution on a symbol intent turns into a clarify.
	if symbolIntents[intent] && resolution != nil && resolution.Ambiguous {
		intent = models.IntentClarifySymbol
	}

	switch intent {
	case models.IntentBlocked:
		env = handlers.BlockedEnvelope(language)
	default:
		env = s.registry.Dispatch(ctx, intent, &handlers.Request{
			Entities:   result.Entities,
			Language:   language,
			Resolution: resolution,
		})
	}

	if ctx.Err() != nil {
		env = handlers.TimeoutEnvelope(language)
	}

	env.Meta.Intent = intent
	env.Meta.Entities = result.Entities
	env.Meta.Confidence = result.Confidence

	if env.Success && s.narrator != nil && s.cfg.LLM.NarrationEnabled {
		s.narrator.Narrate(ctx, env)
	}

	// Context persists only after a successful turn so a typo does not
	// clobber the running conversation.
	if env.Success {
		s.persistContext(sessionID, intent, &result.Entities, resolution)
	}
	return env
}

func (s *Service) persistContext(sessionID string, intent models.Intent, entities *models.Entities, resolution *interfaces.Resolution) {
	s.contexts.Upsert(sessionID, func(conv *models.ConversationContext) {
		if entities.Symbol != "" {
			conv.LastSymbol = entities.Symbol
			if resolution != nil && resolution.Best != nil && resolution.Best.Symbol == entities.Symbol {
				conv.LastMarket = resolution.Best.Market
			}
		}
		if len(entities.Symbols) > 0 {
			conv.CompareSymbols = append([]string(nil), entities.Symbols...)
		}
		if entities.Range != "" {
			conv.LastRange = entities.Range
		}
		conv.LastIntent = intent
	})
}

// finish stamps meta and emits the analytics event.
func (s *Service) finish(ctx context.Context, env *models.ResponseEnvelope, sessionID string, principal models.Principal, start time.Time) {
	if env == nil {
		return
	}
	latency := s.now().Sub(start).Milliseconds()
	env.Meta.BackendVersion = common.GetVersion()
	env.Meta.LatencyMS = latency

	if s.analytics == nil {
		return
	}
	userID := ""
	if principal.Authenticated {
		userID = principal.ID
	}
	event := &models.AnalyticsEvent{
		SessionID:  sessionID,
		UserID:     userID,
		Intent:     env.Meta.Intent,
		Confidence: env.Meta.Confidence,
		LatencyMS:  latency,
		Language:   env.Language,
		Success:    env.Success,
		ErrorKind:  env.ErrorKind(),
		CreatedAt:  s.now().UTC(),
	}
	if env.Meta.Entities.Symbol != "" {
		event.ResolvedSymbols = []string{env.Meta.Entities.Symbol}
	}
	if len(env.Meta.Entities.Symbols) > 0 {
		event.ResolvedSymbols = append([]string(nil), env.Meta.Entities.Symbols...)
	}
	// Emit on a fresh context; the message deadline may already be spent.
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	s.analytics.Emit(emitCtx, event)
}

func (s *Service) sessionLock(sessionID string) *sessionLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.lastUsed = s.now()
	return lock
}

// SweepLocks removes session locks idle for longer than maxIdle. Runs
// on the same ticker that sweeps expired contexts, so the lock map
// tracks the live session set instead of growing without bound.
func (s *Service) SweepLocks(maxIdle time.Duration) int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, lock := range s.locks {
		if lock.lastUsed.After(cutoff) {
			continue
		}
		// A held lock is in use regardless of its timestamp.
		if !lock.mu.TryLock() {
			continue
		}
		lock.mu.Unlock()
		delete(s.locks, id)
		removed++
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Idle session locks swept")
	}
	return removed
}

var _ interfaces.ChatService = (*Service)(nil)
