package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/config"
	"careai/internal/infra/tracer"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// GeminiProvider implements domain.ChatModel for the Google Gemini API.
type GeminiProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeminiProvider creates a provider for the Google Gemini API.
func NewGeminiProvider(cfg config.ProviderConfig, logger *slog.Logger) *GeminiProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiProvider{
		name:    cfg.Name,
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

// Chat implements domain.ChatModel.
func (p *GeminiProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}

	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	body, err := json.Marshal(toGeminiRequest(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// The key travels in a header so it never appears in URLs or errors.
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, req.Model)
	headers := map[string]string{"x-goog-api-key": p.apiKey}

	respBody, err := doJSONRequest(ctx, p.client, p.name, url, body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewProviderError(p.name, "decode", 0, fmt.Errorf("%w: %v", domain.ErrProviderError, err))
	}
	if len(gemResp.Candidates) == 0 {
		err := domain.NewProviderError(p.name, "decode", 0, fmt.Errorf("%w: response has no candidates", domain.ErrProviderError))
		tracer.RecordError(span, err)
		return nil, err
	}

	result := fromGeminiResponse(gemResp)
	result.Model = req.Model
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.ChatModel.
func (p *GeminiProvider) Name() string { return p.name }

// Model returns the default model.
func (p *GeminiProvider) Model() string { return p.model }

// --- Gemini API wire types ---

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiGenConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func toGeminiRequest(req domain.ChatRequest) geminiRequest {
	gemReq := geminiRequest{}

	var system []geminiPart
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			system = append(system, geminiPart{Text: m.Content})
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		gemReq.Contents = append(gemReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	if len(system) > 0 {
		gemReq.SystemInstruction = &geminiContent{Parts: system}
	}

	if req.MaxTokens > 0 || req.Temperature > 0 {
		gc := &geminiGenConfig{MaxOutputTokens: req.MaxTokens}
		if req.Temperature > 0 {
			t := req.Temperature
			gc.Temperature = &t
		}
		gemReq.GenerationConfig = gc
	}
	return gemReq
}

func fromGeminiResponse(resp geminiResponse) *domain.ChatResponse {
	result := &domain.ChatResponse{
		CreatedAt: time.Now(),
	}

	if resp.UsageMetadata != nil {
		result.Usage = domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}

	result.Message = domain.Message{
		Role:      domain.RoleAssistant,
		Content:   strings.TrimSpace(text.String()),
		Timestamp: result.CreatedAt,
	}
	return result
}
