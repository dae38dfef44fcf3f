// Package narrator turns a deterministic envelope into conversational
// text, strictly grounded in the envelope's own facts.
package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

const (
	minWords = 40
	maxWords = 150
)

// Narrator tries each configured provider in order. Any failure, from a
// transport error to a grounding violation, falls through silently; the
// envelope's message_text already stands on its own.
type Narrator struct {
	providers []interfaces.LLMClient
	timeout   time.Duration
	logger    *common.Logger
}

// New creates a narrator over an ordered provider chain.
func New(providers []interfaces.LLMClient, timeout time.Duration, logger *common.Logger) *Narrator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Narrator{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Narrate fills env.ConversationalText when a provider produces a valid
// narration. The envelope is otherwise left untouched.
func (n *Narrator) Narrate(ctx context.Context, env *models.ResponseEnvelope) {
	if len(n.providers) == 0 || !env.Success {
		return
	}

	prompt, allowed := n.buildPrompt(env)

	nctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	for _, provider := range n.providers {
		text, err := provider.Generate(nctx, prompt)
		if err != nil {
			n.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("Narration provider failed")
			if nctx.Err() != nil {
				return
			}
			continue
		}

		text = strings.TrimSpace(text)
		if reason := validate(text, env.Language, allowed); reason != "" {
			n.logger.Warn().
				Str("provider", provider.Name()).
				Str("reason", reason).
				Msg("Narration discarded")
			continue
		}

		env.ConversationalText = text
		return
	}
}

// validate returns an empty string when the narration is acceptable,
// otherwise the rejection reason.
func validate(text, language string, allowed []float64) string {
	words := wordCount(text)
	if words < minWords || words > maxWords {
		return fmt.Sprintf("word count %d outside bounds", words)
	}
	if !languageMatches(text, language) {
		return "language mismatch"
	}
	if !numbersGrounded(text, allowed) {
		return "ungrounded number"
	}
	return ""
}

// buildPrompt renders the envelope's facts into the prompt and collects
// every number the narration is allowed to mention.
func (n *Narrator) buildPrompt(env *models.ResponseEnvelope) (string, []float64) {
	facts, err := json.Marshal(env.Cards)
	if err != nil {
		facts = []byte("[]")
	}

	allowed := extractNumbers(env.MessageText)
	allowed = append(allowed, extractNumbers(string(facts))...)

	languageName := "English"
	if env.Language == "ar" {
		languageName = "Egyptian Arabic"
	}

	var b strings.Builder
	b.WriteString("You are a market data assistant for the Egyptian Exchange.\n")
	b.WriteString("Rewrite the following answer conversationally in ")
	b.WriteString(languageName)
	b.WriteString(".\n")
	b.WriteString("Rules: use only numbers that appear in the data below, never invent or estimate a value, ")
	b.WriteString("do not give investment advice, and answer in 40 to 150 words.\n\n")
	b.WriteString("Answer: ")
	b.WriteString(env.MessageText)
	b.WriteString("\n\nData:\n")
	b.Write(facts)
	return b.String(), allowed
}

var _ interfaces.Narrator = (*Narrator)(nil)
