// Package session keeps per-session conversation context with a TTL.
package session

import (
	"sync"
	"time"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// Store is an in-memory ContextStore. Contexts expire after the TTL;
// writes slide the expiry forward, reads evict expired entries but do
// not extend live ones.
type Store struct {
	logger *common.Logger
	ttl    time.Duration

	mu       sync.Mutex
	contexts map[string]*models.ConversationContext

	// now is swapped in tests.
	now func() time.Time
}

// NewStore creates a context store with the given TTL.
func NewStore(ttl time.Duration, logger *common.Logger) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		logger:   logger,
		ttl:      ttl,
		contexts: map[string]*models.ConversationContext{},
		now:      time.Now,
	}
}

// Get returns a copy of the session's context, or nil when absent or
// expired. Expired entries are removed on access.
func (s *Store) Get(sessionID string) *models.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.contexts[sessionID]
	if !ok {
		return nil
	}
	if conv.Expired(s.now()) {
		delete(s.contexts, sessionID)
		return nil
	}
	cp := *conv
	cp.CompareSymbols = append([]string(nil), conv.CompareSymbols...)
	return &cp
}

// Upsert applies a mutation to the session's context, creating it when
// missing, and slides the expiry forward.
func (s *Store) Upsert(sessionID string, update func(*models.ConversationContext)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv, ok := s.contexts[sessionID]
	if !ok || conv.Expired(now) {
		conv = &models.ConversationContext{SessionID: sessionID}
		s.contexts[sessionID] = conv
	}
	update(conv)
	conv.SessionID = sessionID
	conv.ExpiresAt = now.Add(s.ttl)
}

// Delete removes a session's context.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, sessionID)
}

// Sweep drops expired contexts and returns how many were removed.
// Intended for a periodic background ticker.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, conv := range s.contexts {
		if conv.Expired(now) {
			delete(s.contexts, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Expired session contexts swept")
	}
	return removed
}

var _ interfaces.ContextStore = (*Store)(nil)
