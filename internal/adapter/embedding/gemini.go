package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"careai/internal/domain"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "text-embedding-004"
	defaultGeminiDims    = 768
)

// GeminiOption configures a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the embedding model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithGeminiDimensions sets the reported vector size.
func WithGeminiDimensions(dims int) GeminiOption {
	return func(p *GeminiProvider) { p.dims = dims }
}

// WithGeminiBaseURL sets a custom base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithGeminiClient sets a custom HTTP client.
func WithGeminiClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = client }
}

// GeminiProvider embeds through the Gemini batchEmbedContents endpoint.
type GeminiProvider struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:  apiKey,
		model:   defaultGeminiModel,
		dims:    defaultGeminiDims,
		baseURL: defaultGeminiBaseURL,
		client:  defaultClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed implements domain.EmbeddingProvider.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		batch.Requests[i] = geminiEmbedRequest{
			Model:   "models/" + p.model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}
	}

	// Key goes in a header so it never lands in a logged URL.
	url := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", p.baseURL, p.model)
	headers := map[string]string{"x-goog-api-key": p.apiKey}

	var resp geminiBatchResponse
	if err := postJSON(ctx, p.client, p.Name(), url, headers, batch, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *GeminiProvider) Dimensions() int { return p.dims }

// Name implements domain.EmbeddingProvider.
func (p *GeminiProvider) Name() string { return "gemini" }

var _ domain.EmbeddingProvider = (*GeminiProvider)(nil)
