package domain

import "context"

// ChatModel is the single round-trip primitive every LLM adapter implements.
// Resilience wrappers (circuit breaker, retry, rate limit, failover) compose
// at this level.
type ChatModel interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "openai", "local").
	Name() string
}

// LLMProvider is the capability set consumed by agents.
type LLMProvider interface {
	GenerateText(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
	GenerateChat(ctx context.Context, msgs []Message, opts GenerationOptions) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}
