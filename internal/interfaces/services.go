package interfaces

import (
	"context"

	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/nlp"
)

// Resolution is the symbol resolver's answer for one query.
type Resolution struct {
	// Best is the winning candidate, nil when nothing scored above the
	// minimum confidence.
	Best *models.ResolverCandidate
	// Ambiguous is set when multiple candidates land within the ambiguity
	// window of the leader; callers should clarify rather than guess.
	Ambiguous bool
	// Suggestions are near-miss instruments for clarify prompts, best first.
	Suggestions []models.Suggestion
}

// SymbolResolver maps fuzzy user text to canonical instruments.
type SymbolResolver interface {
	Resolve(ctx context.Context, text nlp.NormalizedText, conv *models.ConversationContext) (*Resolution, error)
	// ResolvePhrase resolves a sub-phrase of a message, e.g. one side of
	// a comparison. The phrase is folded internally.
	ResolvePhrase(ctx context.Context, phrase string, conv *models.ConversationContext) (*Resolution, error)
}

// IntentRouter classifies a normalized message.
type IntentRouter interface {
	Classify(ctx context.Context, text nlp.NormalizedText, res *Resolution, conv *models.ConversationContext) models.IntentResult
}

// ContextStore is per-session conversation memory with TTL.
type ContextStore interface {
	Get(sessionID string) *models.ConversationContext
	Upsert(sessionID string, update func(*models.ConversationContext))
	Delete(sessionID string)
	Sweep() int
}

// UsageMeter gates messages by principal quota.
type UsageMeter interface {
	// Allow counts the message and reports whether it may proceed.
	// Authenticated principals are unmetered. Returns the current count
	// and the applicable ceiling (0 = unlimited).
	Allow(ctx context.Context, principal string, authenticated bool) (allowed bool, count int, ceiling int, err error)
}

// Narrator optionally rewrites an envelope's facts conversationally.
// Implementations must never add numbers that are absent from the
// envelope; on any failure the envelope is returned unchanged.
type Narrator interface {
	Narrate(ctx context.Context, env *models.ResponseEnvelope)
}

// AnalyticsSink receives one event per processed message.
type AnalyticsSink interface {
	Emit(ctx context.Context, event *models.AnalyticsEvent)
}

// ChatService is the single entry point of the query engine.
type ChatService interface {
	ProcessMessage(ctx context.Context, sessionID string, principal models.Principal, req *models.ChatRequest) *models.ResponseEnvelope
}
