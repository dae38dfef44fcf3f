package interfaces

import "context"

// LLMClient is the request/response contract for a narration provider.
type LLMClient interface {
	// Name identifies the provider in config and logs ("gemini", "claude").
	Name() string
	// Generate produces a completion for the prompt. ctx carries the
	// narration deadline; implementations must respect it.
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}
