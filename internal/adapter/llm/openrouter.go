package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// openrouterTransport injects the attribution headers OpenRouter expects
// (HTTP-Referer and X-Title) into every request.
type openrouterTransport struct {
	base http.RoundTripper
}

func (t *openrouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("HTTP-Referer", "https://careai.local")
	clone.Header.Set("X-Title", "careai")
	return t.base.RoundTrip(clone)
}

// OpenRouterProvider routes chat through OpenRouter's OpenAI-compatible API.
type OpenRouterProvider struct {
	inner *OpenAIProvider
}

// NewOpenRouterProvider creates an OpenRouter provider that delegates to
// OpenAIProvider with a header-injecting transport.
func NewOpenRouterProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenRouterProvider {
	client := NewHTTPClient(cfg)
	client.Transport = &openrouterTransport{base: client.Transport}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "openai/" + defaultOpenAIModel
	}

	return &OpenRouterProvider{
		inner: &OpenAIProvider{
			name:    cfg.Name,
			model:   model,
			apiKey:  cfg.APIKey,
			baseURL: baseURL,
			client:  client,
			logger:  logger,
		},
	}
}

// Chat implements domain.ChatModel.
func (p *OpenRouterProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return p.inner.Chat(ctx, req)
}

// Name implements domain.ChatModel.
func (p *OpenRouterProvider) Name() string { return p.inner.Name() }

// Model returns the default model.
func (p *OpenRouterProvider) Model() string { return p.inner.model }
