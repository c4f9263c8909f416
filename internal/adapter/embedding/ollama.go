package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"careai/internal/domain"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
	defaultOllamaDims    = 768
)

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the embedding model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOllamaDimensions sets the reported vector size.
func WithOllamaDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) { p.dims = dims }
}

// WithOllamaBaseURL sets the server root. A trailing "/v1" is dropped since
// /api/embed lives beside it, not under it.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		url = strings.TrimSuffix(strings.TrimRight(url, "/"), "/v1")
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithOllamaClient sets a custom HTTP client.
func WithOllamaClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = client }
}

// OllamaProvider embeds through Ollama's native /api/embed endpoint.
type OllamaProvider struct {
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		model:   defaultOllamaModel,
		dims:    defaultOllamaDims,
		baseURL: defaultOllamaBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements domain.EmbeddingProvider.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/api/embed", nil,
		ollamaEmbedRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, embedFailure(p.Name(), 0, false,
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Embeddings), len(texts)))
	}
	return resp.Embeddings, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *OllamaProvider) Dimensions() int { return p.dims }

// Name implements domain.EmbeddingProvider.
func (p *OllamaProvider) Name() string { return "ollama" }

var _ domain.EmbeddingProvider = (*OllamaProvider)(nil)
