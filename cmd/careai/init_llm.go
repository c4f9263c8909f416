package main

import (
	"fmt"
	"log/slog"
	"strings"

	"careai/internal/adapter/embedding"
	"careai/internal/adapter/llm"
	"careai/internal/domain"
	"careai/internal/infra/config"
)

// initLLM builds every configured provider, wraps it in the resilience
// stack and registers it. Failover wraps the default provider only.
func initLLM(cfg *config.Config, log *slog.Logger) (*llm.Registry, error) {
	registry := llm.NewRegistry(cfg.LLM.Priority, log)

	providers := providerConfigs(cfg)
	shared, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	models := make(map[string]domain.ChatModel, len(providers))
	for _, pc := range providers {
		cm, err := createChatModel(pc, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
		models[pc.Name] = wrapResilience(cm, cfg.LLM, log)
	}

	if fo := cfg.LLM.Failover; fo.Enabled && len(fo.Fallbacks) > 0 {
		if primary, ok := models[cfg.LLM.DefaultProvider]; ok {
			var fallbacks []domain.ChatModel
			for _, name := range fo.Fallbacks {
				fb, ok := models[name]
				if !ok {
					return nil, fmt.Errorf("failover provider %s: %w", name, domain.ErrProviderNotFound)
				}
				fallbacks = append(fallbacks, fb)
			}
			models[cfg.LLM.DefaultProvider] = llm.NewFailoverProvider(primary, fallbacks, log)
			log.Info("model failover enabled", "primary", cfg.LLM.DefaultProvider, "fallbacks", fo.Fallbacks)
		}
	}

	for _, pc := range providers {
		opts := []llm.ProviderOption{llm.WithKind(providerKind(pc.Type))}
		if emb := embedderFor(pc, shared, cfg.Embedding); emb != nil {
			opts = append(opts, llm.WithEmbedder(emb))
		}
		if err := registry.Register(llm.NewProvider(models[pc.Name], log, opts...)); err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	log.Debug("llm providers registered", "providers", registry.List())
	return registry, nil
}

// providerConfigs returns the configured providers plus the implicit local
// provider when LocalFallback is on and no local entry exists.
func providerConfigs(cfg *config.Config) []config.ProviderConfig {
	out := append([]config.ProviderConfig(nil), cfg.LLM.Providers...)
	if !cfg.LLM.LocalFallback {
		return out
	}
	for _, pc := range out {
		if providerKind(pc.Type) == "local" {
			return out
		}
	}
	return append(out, config.ProviderConfig{Name: "local", Type: "local"})
}

// createChatModel builds the raw backend for one provider entry.
func createChatModel(pc config.ProviderConfig, log *slog.Logger) (domain.ChatModel, error) {
	switch strings.ToLower(pc.Type) {
	case "openai", "":
		return llm.NewOpenAIProvider(pc, log), nil
	case "anthropic":
		return llm.NewAnthropicProvider(pc, log), nil
	case "gemini":
		return llm.NewGeminiProvider(pc, log), nil
	case "openrouter":
		return llm.NewOpenRouterProvider(pc, log), nil
	case "local", "ollama", "lmstudio", "vllm":
		return llm.NewLocalProvider(pc, log), nil
	case "bedrock":
		return llm.NewBedrockProvider(pc, log)
	default:
		return nil, fmt.Errorf("%w: provider type %q", domain.ErrNotSupported, pc.Type)
	}
}

// wrapResilience applies, innermost first: rate limit, retry, circuit breaker.
func wrapResilience(cm domain.ChatModel, cfg config.LLMConfig, log *slog.Logger) domain.ChatModel {
	if cfg.RateLimit.RequestsPerSecond > 0 {
		cm = llm.NewRateLimitedProvider(cm, cfg.RateLimit)
	}
	if cfg.Retry.MaxRetries > 0 {
		cm = llm.NewRetryProvider(cm, cfg.Retry, log)
	}
	if cfg.CircuitBreaker.Enabled {
		cm = llm.NewCircuitBreakerProvider(cm, cfg.CircuitBreaker, log)
	}
	return cm
}

// providerKind maps a provider type to the name used in priority lists.
func providerKind(typ string) string {
	switch t := strings.ToLower(typ); t {
	case "", "openai":
		return "openai"
	case "local", "ollama", "lmstudio", "vllm":
		return "local"
	default:
		return t
	}
}

// embedderFor prefers the dedicated embedding backend and otherwise uses the
// provider's native endpoint behind the shared cache size.
func embedderFor(pc config.ProviderConfig, shared domain.EmbeddingProvider, cfg config.EmbeddingConfig) domain.EmbeddingProvider {
	if shared != nil {
		return shared
	}
	native := embedding.Native(pc)
	if native == nil {
		return nil
	}
	return embedding.NewCachedEmbedder(native, cfg.CacheSize)
}
