package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/handlers"
	"github.com/karimadel/borsa/internal/intent"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/meter"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/nlp"
	"github.com/karimadel/borsa/internal/resolver"
	"github.com/karimadel/borsa/internal/session"
	"github.com/karimadel/borsa/internal/storage/memstore"
)

type captureSink struct {
	mu     sync.Mutex
	events []*models.AnalyticsEvent
}

func (c *captureSink) Emit(_ context.Context, event *models.AnalyticsEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) last(t *testing.T) *models.AnalyticsEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.events)
	return c.events[len(c.events)-1]
}

type stubNarrator struct {
	text  string
	calls int
}

func (n *stubNarrator) Narrate(_ context.Context, env *models.ResponseEnvelope) {
	n.calls++
	env.ConversationalText = n.text
}

type testPipeline struct {
	service  *Service
	store    *memstore.Store
	sink     *captureSink
	narrator *stubNarrator
}

func newTestPipeline(t *testing.T, guestCeiling int) *testPipeline {
	t.Helper()
	logger := common.NewSilentLogger()
	store := memstore.New(logger)
	ctx := context.Background()

	instruments := []*models.Instrument{
		{
			Symbol: "COMI", Market: "EGX", EntityType: models.EntityStock,
			NameEN: "Commercial International Bank", NameAR: "البنك التجاري الدولي",
			Sector: "banks", Currency: "EGP",
			LastPrice: 82.5, Change: 0.98, ChangePercent: 1.2, Volume: 3_450_000,
			Open: 81.7, High: 83.0, Low: 81.2, PrevClose: 81.52,
		},
		{
			Symbol: "SWDY", Market: "EGX", EntityType: models.EntityStock,
			NameEN: "Elsewedy Electric", NameAR: "السويدي اليكتريك",
			Sector: "industrials", Currency: "EGP",
			LastPrice: 71.3, ChangePercent: -2.4, Volume: 1_200_000,
		},
	}
	for _, inst := range instruments {
		require.NoError(t, store.SaveInstrument(ctx, inst))
		require.NoError(t, store.SaveAlias(ctx, &models.Alias{
			AliasNorm: inst.Symbol, Symbol: inst.Symbol, Market: "EGX",
			Priority: 10, Source: models.AliasSourceOfficial,
		}))
	}
	require.NoError(t, store.SaveAlias(ctx, &models.Alias{
		AliasNorm: "التجاري", Symbol: "COMI", Market: "EGX",
		Priority: 9, Source: models.AliasSourceNickname,
	}))
	require.NoError(t, store.SaveAlias(ctx, &models.Alias{
		AliasNorm: "cib", Symbol: "COMI", Market: "EGX",
		Priority: 8, Source: models.AliasSourceAbbreviation,
	}))

	now := time.Now().UTC()
	points := make([]models.PricePoint, 0, 20)
	for i := 19; i >= 0; i-- {
		points = append(points, models.PricePoint{
			Date:  now.AddDate(0, 0, -i),
			Close: 80 + float64(19-i)*0.1,
			Open:  80, High: 83, Low: 79, Volume: 1000,
		})
	}
	require.NoError(t, store.SavePricePoints(ctx, "COMI", points))

	cfg := common.NewDefaultConfig()
	cfg.Chat.GuestMessageCeiling = guestCeiling
	cfg.LLM.NarrationEnabled = true

	res := resolver.New(store, cfg.Resolver, cfg.MarketAllowed, logger)
	require.NoError(t, res.Reload(ctx))
	t.Cleanup(func() { res.Close() })

	router := intent.NewRouter(res, cfg.DefaultLanguage, logger)
	contexts := session.NewStore(cfg.Chat.ContextTTL(), logger)
	usage := meter.New(store, cfg.Chat.GuestMessageCeiling, logger)
	registry := handlers.NewRegistry(store, logger)
	sink := &captureSink{}
	narr := &stubNarrator{text: "Commercial International Bank closed at 82.50 EGP today."}

	svc := NewService(cfg, res, router, contexts, usage, registry, narr, sink, logger)
	return &testPipeline{service: svc, store: store, sink: sink, narrator: narr}
}

func guest(id string) models.Principal {
	return models.Principal{ID: id}
}

func TestProcessMessagePriceQuery(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "CIB price",
	})

	require.NotNil(t, env)
	assert.True(t, env.Success)
	assert.Equal(t, models.IntentStockPrice, env.Meta.Intent)
	assert.Equal(t, "COMI", env.Meta.Entities.Symbol)
	assert.Contains(t, env.MessageText, "82.50")
	assert.NotNil(t, env.FirstCard(models.CardSnapshot))
	assert.Equal(t, "en", env.Language)
	assert.NotEmpty(t, env.Meta.BackendVersion)

	event := p.sink.last(t)
	assert.Equal(t, "s1", event.SessionID)
	assert.Empty(t, event.UserID) // guests are anonymous in analytics
	assert.Equal(t, models.IntentStockPrice, event.Intent)
	assert.Equal(t, []string{"COMI"}, event.ResolvedSymbols)
	assert.True(t, event.Success)
}

func TestProcessMessageArabicQuery(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "سعر سهم التجاري",
	})

	assert.True(t, env.Success)
	assert.Equal(t, "ar", env.Language)
	assert.Equal(t, "COMI", env.Meta.Entities.Symbol)
	assert.Contains(t, env.MessageText, "البنك التجاري الدولي")
}

func TestProcessMessageFollowUpUsesContext(t *testing.T) {
	p := newTestPipeline(t, 50)
	ctx := context.Background()

	first := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	require.True(t, first.Success)

	second := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "the chart"})
	assert.True(t, second.Success)
	assert.Equal(t, models.IntentStockChart, second.Meta.Intent)
	assert.Equal(t, "COMI", second.Meta.Entities.Symbol)
	require.NotNil(t, second.FirstCard(models.CardChart))
}

func TestProcessMessageContextDoesNotLeakAcrossSessions(t *testing.T) {
	p := newTestPipeline(t, 50)
	ctx := context.Background()

	first := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	require.True(t, first.Success)

	// A different session has no memory of COMI.
	second := p.service.ProcessMessage(ctx, "s2", guest("fp-2"), &models.ChatRequest{Message: "the chart"})
	assert.False(t, second.Success)
}

func TestProcessMessageGuestQuota(t *testing.T) {
	p := newTestPipeline(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		env := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
		require.True(t, env.Success, "message %d should be within quota", i+1)
	}

	env := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	assert.False(t, env.Success)
	assert.Equal(t, models.ErrUsageLimitReached, env.ErrorKind())
	assert.Equal(t, models.IntentUsageLimitReached, env.Meta.Intent)
	assert.Contains(t, env.MessageText, "2")
}

func TestProcessMessageAuthenticatedUnmetered(t *testing.T) {
	p := newTestPipeline(t, 1)
	ctx := context.Background()
	principal := models.Principal{ID: "user-7", Authenticated: true}

	for i := 0; i < 5; i++ {
		env := p.service.ProcessMessage(ctx, "s1", principal, &models.ChatRequest{Message: "CIB price"})
		require.True(t, env.Success)
	}

	event := p.sink.last(t)
	assert.Equal(t, "user-7", event.UserID)
}

func TestProcessMessageQuotaIsPerPrincipal(t *testing.T) {
	p := newTestPipeline(t, 1)
	ctx := context.Background()

	first := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	require.True(t, first.Success)
	blocked := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	require.False(t, blocked.Success)

	// A different device fingerprint has its own quota.
	other := p.service.ProcessMessage(ctx, "s2", guest("fp-2"), &models.ChatRequest{Message: "CIB price"})
	assert.True(t, other.Success)
}

func TestProcessMessageComplianceBlock(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "bitcoin price",
	})

	assert.False(t, env.Success)
	assert.Equal(t, models.ErrComplianceBlocked, env.ErrorKind())
	assert.Equal(t, models.IntentBlocked, env.Meta.Intent)
}

func TestProcessMessageComplianceBlockArabic(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "هل اشتري سهم التجاري",
	})

	assert.False(t, env.Success)
	assert.Equal(t, models.ErrComplianceBlocked, env.ErrorKind())
}

func TestProcessMessageBlockedTurnDoesNotClobberContext(t *testing.T) {
	p := newTestPipeline(t, 50)
	ctx := context.Background()

	first := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	require.True(t, first.Success)

	blocked := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "should i buy tesla"})
	require.False(t, blocked.Success)

	// COMI is still the active symbol.
	followUp := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{Message: "the chart"})
	assert.True(t, followUp.Success)
	assert.Equal(t, "COMI", followUp.Meta.Entities.Symbol)
}

func TestProcessMessageNarration(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "CIB price",
	})

	require.True(t, env.Success)
	assert.Equal(t, 1, p.narrator.calls)
	assert.Equal(t, p.narrator.text, env.ConversationalText)
}

func TestProcessMessageNoNarrationOnFailure(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "bitcoin price",
	})

	require.False(t, env.Success)
	assert.Zero(t, p.narrator.calls)
	assert.Empty(t, env.ConversationalText)
}

func TestProcessMessageLanguageHintOverride(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message:      "CIB price",
		LanguageHint: "ar",
	})

	assert.True(t, env.Success)
	assert.Equal(t, "ar", env.Language)
}

func TestProcessMessageEmptySessionGetsOne(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "", guest("fp-1"), &models.ChatRequest{
		Message: "CIB price",
	})

	assert.True(t, env.Success)
	event := p.sink.last(t)
	assert.NotEmpty(t, event.SessionID)
}

func TestProcessMessageUnknown(t *testing.T) {
	p := newTestPipeline(t, 50)

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "qwertyuiop zxcvbnm asdfgh lkjhgf poiuyt mnbvcx",
	})

	require.NotNil(t, env)
	assert.Equal(t, models.IntentUnknown, env.Meta.Intent)
}

type panickingRouter struct{}

func (panickingRouter) Classify(context.Context, nlp.NormalizedText, *interfaces.Resolution, *models.ConversationContext) models.IntentResult {
	panic("boom")
}

func TestProcessMessagePanicRecovery(t *testing.T) {
	p := newTestPipeline(t, 50)
	p.service.router = panickingRouter{}

	env := p.service.ProcessMessage(context.Background(), "s1", guest("fp-1"), &models.ChatRequest{
		Message: "CIB price",
	})

	require.NotNil(t, env)
	assert.False(t, env.Success)
	assert.Equal(t, models.ErrInternal, env.ErrorKind())
}

func TestProcessMessageSequentialWithinSession(t *testing.T) {
	p := newTestPipeline(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := p.service.ProcessMessage(ctx, "s1", guest("fp-1"), &models.ChatRequest{
				Message: fmt.Sprintf("CIB price %d", i),
			})
			assert.NotNil(t, env)
		}(i)
	}
	wg.Wait()

	p.sink.mu.Lock()
	defer p.sink.mu.Unlock()
	assert.Len(t, p.sink.events, 8)
}

func TestSweepLocksDropsIdleSessions(t *testing.T) {
	p := newTestPipeline(t, 50)
	ctx := context.Background()

	current := time.Now()
	p.service.now = func() time.Time { return current }

	p.service.ProcessMessage(ctx, "s-old-1", guest("fp-1"), &models.ChatRequest{Message: "CIB price"})
	p.service.ProcessMessage(ctx, "s-old-2", guest("fp-2"), &models.ChatRequest{Message: "CIB price"})

	current = current.Add(time.Hour)
	p.service.ProcessMessage(ctx, "s-live", guest("fp-3"), &models.ChatRequest{Message: "CIB price"})

	removed := p.service.SweepLocks(30 * time.Minute)
	assert.Equal(t, 2, removed)

	p.service.locksMu.Lock()
	defer p.service.locksMu.Unlock()
	assert.Len(t, p.service.locks, 1)
	_, live := p.service.locks["s-live"]
	assert.True(t, live)
}
