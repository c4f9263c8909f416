package embedding

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"careai/internal/domain"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultOpenAIDims    = 1536
)

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the embedding model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOpenAIDimensions sets the reported vector size.
func WithOpenAIDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) { p.dims = dims }
}

// WithOpenAIBaseURL points the provider at an OpenAI-compatible server. The
// URL must include the version prefix ("http://localhost:8080/v1").
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = client }
}

// WithOpenAIName overrides the reported provider name.
func WithOpenAIName(name string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if name != "" {
			p.name = name
		}
	}
}

// OpenAIProvider embeds through the OpenAI /embeddings endpoint or any server
// that speaks it (LM Studio, llama.cpp, vLLM).
type OpenAIProvider struct {
	name    string
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAI embedding provider. An empty apiKey
// sends no Authorization header, which local servers expect.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		name:    "openai",
		apiKey:  apiKey,
		model:   defaultOpenAIModel,
		dims:    defaultOpenAIDims,
		baseURL: defaultOpenAIBaseURL,
		client:  defaultClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type openaiEmbedResponse struct {
	Data []openaiEmbedData `json:"data"`
}

type openaiEmbedData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Embed implements domain.EmbeddingProvider.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var resp openaiEmbedResponse
	err := postJSON(ctx, p.client, p.name, p.baseURL+"/embeddings", headers,
		openaiEmbedRequest{Input: texts, Model: p.model}, &resp)
	if err != nil {
		return nil, err
	}

	// The API may answer out of order; index is authoritative.
	slices.SortFunc(resp.Data, func(a, b openaiEmbedData) int { return a.Index - b.Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *OpenAIProvider) Dimensions() int { return p.dims }

// Name implements domain.EmbeddingProvider.
func (p *OpenAIProvider) Name() string { return p.name }

var _ domain.EmbeddingProvider = (*OpenAIProvider)(nil)
