package embedding

import (
	"fmt"
	"strings"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

const defaultLocalBaseURL = "http://localhost:8080"

// New builds the dedicated embedding backend named by cfg.Provider, wrapped in
// the LRU cache. An empty provider returns nil: callers then fall back to each
// LLM provider's native endpoint.
func New(cfg config.EmbeddingConfig) (domain.EmbeddingProvider, error) {
	var p domain.EmbeddingProvider
	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil
	case "openai":
		p = NewOpenAIProvider(cfg.APIKey, WithOpenAIModel(cfg.Model), WithOpenAIBaseURL(cfg.BaseURL))
	case "local":
		p = newLocalEmbedder("local", cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "ollama":
		p = NewOllamaProvider(WithOllamaModel(cfg.Model), WithOllamaBaseURL(cfg.BaseURL))
	case "gemini":
		p = NewGeminiProvider(cfg.APIKey, WithGeminiModel(cfg.Model), WithGeminiBaseURL(cfg.BaseURL))
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrNotSupported, cfg.Provider)
	}
	return NewCachedEmbedder(p, cfg.CacheSize), nil
}

// Native returns the embedding backend an LLM provider ships with, or nil when
// its API has none (anthropic, openrouter, bedrock).
func Native(pc config.ProviderConfig) domain.EmbeddingProvider {
	switch strings.ToLower(pc.Type) {
	case "openai", "":
		return NewOpenAIProvider(pc.APIKey, WithOpenAIName(pc.Name),
			WithOpenAIModel(pc.EmbeddingModel), WithOpenAIBaseURL(pc.BaseURL))
	case "local":
		return newLocalEmbedder(pc.Name, pc.APIKey, pc.EmbeddingModel, pc.BaseURL)
	case "ollama":
		return NewOllamaProvider(WithOllamaModel(pc.EmbeddingModel), WithOllamaBaseURL(pc.BaseURL))
	case "gemini":
		return NewGeminiProvider(pc.APIKey, WithGeminiModel(pc.EmbeddingModel), WithGeminiBaseURL(pc.BaseURL))
	default:
		return nil
	}
}

// newLocalEmbedder targets an OpenAI-compatible local server. With no model
// configured the request omits it and the server picks its loaded model.
func newLocalEmbedder(name, apiKey, model, base string) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey, WithOpenAIName(name), WithOpenAIBaseURL(localV1(base)))
	p.model = model
	return p
}

// localV1 normalises a local server root to its OpenAI-compatible prefix.
func localV1(base string) string {
	base = strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")
	if base == "" {
		base = defaultLocalBaseURL
	}
	return base + "/v1"
}
