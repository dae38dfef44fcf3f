package models

import "time"

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Message      string        `json:"message"`
	SessionID    string        `json:"session_id,omitempty"`
	History      []ChatMessage `json:"history,omitempty"`
	LanguageHint string        `json:"language_hint,omitempty"` // "en" or "ar"
}

// ChatMessage is one prior turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Principal identifies the caller for metering: an authenticated user
// ID from a bearer token, or a guest device fingerprint. A zero ID
// falls back to the session ID.
type Principal struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
}

// ConversationContext is per-session short-term memory. It is advisory
// input to resolution and routing, never authoritative over an explicit
// symbol in the current message.
type ConversationContext struct {
	SessionID      string    `json:"session_id"`
	LastSymbol     string    `json:"last_symbol,omitempty"`
	LastMarket     string    `json:"last_market,omitempty"`
	LastIntent     Intent    `json:"last_intent,omitempty"`
	LastRange      string    `json:"last_range,omitempty"`
	CompareSymbols []string  `json:"compare_symbols,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the context has passed its TTL.
func (c *ConversationContext) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// UsageRecord is a per-principal daily message counter. Principal is the
// authenticated user ID or the guest device fingerprint; Period is the
// calendar day (UTC, "2006-01-02"). The over-quota attempt is counted and
// blocked in one step, so Count may reach ceiling+1.
type UsageRecord struct {
	Key       string    `json:"key" badgerhold:"key"` // principal + "|" + period
	Principal string    `json:"principal"`
	Period    string    `json:"period"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageKey builds the storage key for a principal and period.
func UsageKey(principal, period string) string {
	return principal + "|" + period
}

// AnalyticsEvent is emitted once per processed message.
type AnalyticsEvent struct {
	ID              string    `json:"id" badgerhold:"key"`
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id,omitempty"`
	Intent          Intent    `json:"intent"`
	Confidence      float64   `json:"confidence"`
	ResolvedSymbols []string  `json:"resolved_symbols,omitempty"`
	LatencyMS       int64     `json:"latency_ms"`
	Language        string    `json:"language"`
	Success         bool      `json:"success"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
