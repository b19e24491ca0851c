// Package llm provides a provider-agnostic interface for the two
// language-model calls the service makes: analyzing an uploaded medical
// image and generating a structured treatment plan from the analysis text.
package llm

import "context"

// Client is the interface for LLM providers. Both Groq (OpenAI-compatible)
// and Anthropic implement it, allowing the service to fall back from one
// to the other.
//
// Go interface design tip: keep interfaces small — two methods plus
// identity is all the orchestrator needs. Go proverb: "The bigger the
// interface, the weaker the abstraction."
type Client interface {
	// AnalyzeImage submits the image inline with the user's query and
	// returns the model's free-text analysis.
	AnalyzeImage(ctx context.Context, image []byte, mimeType string, query string) (string, error)

	// CompleteJSON submits a system+user prompt pair and returns the raw
	// content of the first completion, which the caller parses as JSON.
	CompleteJSON(ctx context.Context, system string, user string) (string, error)

	ProviderName() string
	ModelName() string
}
