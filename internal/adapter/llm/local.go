package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

// Default local timeouts: short connect, long response (model loading).
const (
	localDefaultConnTimeout = 5 * time.Second
	localDefaultRespTimeout = 300 * time.Second

	defaultLocalBaseURL  = "http://localhost:8080"
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultLocalModel    = "default"
)

// LocalProvider talks to a self-hosted model server. Chat goes through the
// server's OpenAI-compatible /v1 endpoint; model listing and health checks
// use the native API where the server type has one.
type LocalProvider struct {
	inner   *OpenAIProvider
	kind    string
	baseURL string // native API base (without /v1)
	client  *http.Client
	logger  *slog.Logger
}

// LocalModel describes a model available on the local server.
type LocalModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// NewLocalProvider creates a provider for an OpenAI-compatible local server.
// Type "ollama" switches the default address and enables the native
// /api/tags listing.
func NewLocalProvider(cfg config.ProviderConfig, logger *slog.Logger) *LocalProvider {
	localCfg := cfg
	if localCfg.ConnTimeout == 0 {
		localCfg.ConnTimeout = localDefaultConnTimeout
	}
	if localCfg.RespTimeout == 0 {
		localCfg.RespTimeout = localDefaultRespTimeout
	}
	client := NewHTTPClient(localCfg)

	kind := cfg.Type
	if kind == "" {
		kind = "local"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	if baseURL == "" {
		baseURL = defaultLocalBaseURL
		if kind == "ollama" {
			baseURL = defaultOllamaBaseURL
		}
	}
	model := cfg.Model
	if model == "" {
		model = defaultLocalModel
	}

	return &LocalProvider{
		inner: &OpenAIProvider{
			name:    cfg.Name,
			model:   model,
			apiKey:  cfg.APIKey,
			baseURL: baseURL + "/v1",
			client:  client,
			logger:  logger,
		},
		kind:    kind,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Chat implements domain.ChatModel.
func (p *LocalProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return p.inner.Chat(ctx, req)
}

// Name implements domain.ChatModel.
func (p *LocalProvider) Name() string { return p.inner.Name() }

// Model returns the default model.
func (p *LocalProvider) Model() string { return p.inner.model }

// BaseURL returns the native API base.
func (p *LocalProvider) BaseURL() string { return p.baseURL }

// ListModels returns the models the server advertises.
func (p *LocalProvider) ListModels(ctx context.Context) ([]LocalModel, error) {
	if p.kind == "ollama" {
		body, err := doGetRequest(ctx, p.client, p.Name(), p.baseURL+"/api/tags", nil)
		if err != nil {
			return nil, err
		}
		var resp struct {
			Models []LocalModel `json:"models"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return resp.Models, nil
	}

	body, err := doGetRequest(ctx, p.client, p.Name(), p.inner.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []struct {
			ID      string `json:"id"`
			Created int64  `json:"created"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	models := make([]LocalModel, 0, len(resp.Data))
	for _, m := range resp.Data {
		lm := LocalModel{Name: m.ID}
		if m.Created > 0 {
			lm.ModifiedAt = time.Unix(m.Created, 0)
		}
		models = append(models, lm)
	}
	return models, nil
}

// IsHealthy checks if the local server is reachable.
func (p *LocalProvider) IsHealthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return false
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return false
	}
	httpResp.Body.Close()

	return httpResp.StatusCode < http.StatusInternalServerError
}

// Warmup sends a one-token request so the first real call does not pay the
// model load latency.
func (p *LocalProvider) Warmup(ctx context.Context) error {
	if !p.IsHealthy(ctx) {
		return fmt.Errorf("local server not reachable at %s", p.baseURL)
	}

	p.logger.Info("warming up local model", "model", p.inner.model, "base_url", p.baseURL)
	_, err := p.inner.Chat(ctx, domain.ChatRequest{
		Messages:  textAsChat("ping"),
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	p.logger.Info("local model warmed up", "model", p.inner.model)
	return nil
}
