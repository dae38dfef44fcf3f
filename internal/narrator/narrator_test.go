package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// stubLLM returns a canned completion, or an error.
type stubLLM struct {
	name   string
	output string
	err    error
	calls  int
}

func (s *stubLLM) Name() string { return s.name }
func (s *stubLLM) Generate(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.output, s.err
}
func (s *stubLLM) Close() error { return nil }

var _ interfaces.LLMClient = (*stubLLM)(nil)

func priceEnvelope() *models.ResponseEnvelope {
	return &models.ResponseEnvelope{
		Success:     true,
		MessageText: "Commercial International Bank is trading at 82.50 EGP, up 1.20% today.",
		Language:    "en",
	}
}

// validNarration builds an in-bounds English narration using only the
// given numbers.
func validNarration(numbers ...string) string {
	filler := strings.Repeat("the bank traded steadily through the session today ", 6)
	return strings.TrimSpace(filler + "closing at " + strings.Join(numbers, " and "))
}

func TestNarrateSetsConversationalText(t *testing.T) {
	llm := &stubLLM{name: "gemini", output: validNarration("82.50", "1.20")}
	n := New([]interfaces.LLMClient{llm}, time.Second, common.NewSilentLogger())

	env := priceEnvelope()
	n.Narrate(context.Background(), env)

	assert.Equal(t, llm.output, env.ConversationalText)
}

func TestNarrateDiscardsUngroundedNumbers(t *testing.T) {
	llm := &stubLLM{name: "gemini", output: validNarration("95.00")}
	n := New([]interfaces.LLMClient{llm}, time.Second, common.NewSilentLogger())

	env := priceEnvelope()
	n.Narrate(context.Background(), env)

	assert.Empty(t, env.ConversationalText)
}

func TestNarrateDiscardsOutOfBoundsLength(t *testing.T) {
	short := &stubLLM{name: "gemini", output: "Up 1.20% today."}
	n := New([]interfaces.LLMClient{short}, time.Second, common.NewSilentLogger())

	env := priceEnvelope()
	n.Narrate(context.Background(), env)
	assert.Empty(t, env.ConversationalText)

	long := &stubLLM{name: "gemini", output: strings.Repeat("word ", 200)}
	n = New([]interfaces.LLMClient{long}, time.Second, common.NewSilentLogger())
	env = priceEnvelope()
	n.Narrate(context.Background(), env)
	assert.Empty(t, env.ConversationalText)
}

func TestNarrateDiscardsLanguageMismatch(t *testing.T) {
	arabicWords := make([]string, 45)
	for i := range arabicWords {
		arabicWords[i] = "السهم"
	}
	llm := &stubLLM{name: "gemini", output: strings.Join(arabicWords, " ")}
	n := New([]interfaces.LLMClient{llm}, time.Second, common.NewSilentLogger())

	env := priceEnvelope() // language "en"
	n.Narrate(context.Background(), env)
	assert.Empty(t, env.ConversationalText)
}

func TestNarrateFallsThroughProviderChain(t *testing.T) {
	broken := &stubLLM{name: "gemini", err: errors.New("quota exhausted")}
	working := &stubLLM{name: "claude", output: validNarration("82.50")}
	n := New([]interfaces.LLMClient{broken, working}, time.Second, common.NewSilentLogger())

	env := priceEnvelope()
	n.Narrate(context.Background(), env)

	require.Equal(t, 1, broken.calls)
	require.Equal(t, 1, working.calls)
	assert.Equal(t, working.output, env.ConversationalText)
}

func TestNarrateSkipsFailureEnvelopes(t *testing.T) {
	llm := &stubLLM{name: "gemini", output: validNarration("82.50")}
	n := New([]interfaces.LLMClient{llm}, time.Second, common.NewSilentLogger())

	env := priceEnvelope()
	env.Success = false
	n.Narrate(context.Background(), env)

	assert.Zero(t, llm.calls)
	assert.Empty(t, env.ConversationalText)
}

func TestNarrateNoProvidersIsNoop(t *testing.T) {
	n := New(nil, time.Second, common.NewSilentLogger())
	env := priceEnvelope()
	n.Narrate(context.Background(), env)
	assert.Empty(t, env.ConversationalText)
}

func TestValidateAcceptsGroundedText(t *testing.T) {
	text := validNarration("82.50")
	reason := validate(text, "en", []float64{82.5})
	assert.Empty(t, reason, fmt.Sprintf("unexpected rejection: %s", reason))
}
