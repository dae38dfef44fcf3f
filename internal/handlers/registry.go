// Package handlers implements one handler per intent. Each handler reads
// the market store and returns a fully-populated response envelope.
package handlers

import (
	"context"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// Request is the handler input: extracted entities, the reply language,
// and the resolver output for clarify flows.
type Request struct {
	Entities   models.Entities
	Language   string
	Resolution *interfaces.Resolution
}

// Handler produces the envelope for one intent.
type Handler func(ctx context.Context, req *Request) *models.ResponseEnvelope

// Registry maps intents to handlers.
type Registry struct {
	store    interfaces.MarketStore
	logger   *common.Logger
	handlers map[models.Intent]Handler
}

// NewRegistry builds the registry with every intent registered.
func NewRegistry(store interfaces.MarketStore, logger *common.Logger) *Registry {
	r := &Registry{
		store:    store,
		logger:   logger,
		handlers: map[models.Intent]Handler{},
	}

	r.register(models.IntentStockPrice, r.handleStockPrice)
	r.register(models.IntentStockSnapshot, r.handleStockSnapshot)
	r.register(models.IntentStockChart, r.handleStockChart)
	r.register(models.IntentFinancials, r.handleFinancials)
	r.register(models.IntentFinMargins, r.handleMargins)
	r.register(models.IntentDividends, r.handleDividends)
	r.register(models.IntentOwnership, r.handleOwnership)
	r.register(models.IntentTechnicals, r.handleTechnicals)
	r.register(models.IntentFairValue, r.handleFairValue)
	r.register(models.IntentFinancialHealth, r.handleFinancialHealth)
	r.register(models.IntentCompare, r.handleCompare)
	r.register(models.IntentSectorStocks, r.handleSectorStocks)
	r.register(models.IntentMarketMovers, r.handleMarketMovers)
	r.register(models.IntentFundNAV, r.handleFundNAV)
	r.register(models.IntentFundSearch, r.handleFundSearch)
	r.register(models.IntentNews, r.handleNews)
	r.register(models.IntentEducation, r.handleEducation)
	r.register(models.IntentHelp, r.handleHelp)
	r.register(models.IntentChitchat, r.handleChitchat)
	r.register(models.IntentClarifySymbol, r.handleClarifySymbol)
	r.register(models.IntentUnknown, r.handleUnknown)

	return r
}

func (r *Registry) register(intent models.Intent, h Handler) {
	r.handlers[intent] = h
}

// Dispatch runs the handler for an intent. Unregistered intents get the
// unknown handler so a valid envelope always comes back.
func (r *Registry) Dispatch(ctx context.Context, intent models.Intent, req *Request) *models.ResponseEnvelope {
	h, ok := r.handlers[intent]
	if !ok {
		r.logger.Warn().Str("intent", string(intent)).Msg("No handler registered for intent")
		h = r.handleUnknown
	}
	return h(ctx, req)
}
