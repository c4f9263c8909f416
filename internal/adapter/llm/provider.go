package llm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/tracer"
)

// Provider exposes a chat backend, and optionally an embedding backend, through
// the domain.LLMProvider capability set. Resilience wrappers are applied to
// the ChatModel before it is handed to NewProvider.
type Provider struct {
	kind     string
	model    string
	chat     domain.ChatModel
	embedder domain.EmbeddingProvider
	logger   *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithEmbedder attaches an embedding backend.
func WithEmbedder(e domain.EmbeddingProvider) ProviderOption {
	return func(p *Provider) { p.embedder = e }
}

// WithKind records the provider type ("openai", "anthropic", "local", ...)
// used for priority resolution.
func WithKind(kind string) ProviderOption {
	return func(p *Provider) { p.kind = kind }
}

// WithDefaultModel records the model used when a call names none.
func WithDefaultModel(model string) ProviderOption {
	return func(p *Provider) { p.model = model }
}

// NewProvider wraps chat as a domain.LLMProvider.
func NewProvider(chat domain.ChatModel, logger *slog.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		kind:   chat.Name(),
		chat:   chat,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.model == "" {
		p.model = modelOf(chat)
	}
	return p
}

// Name implements domain.LLMProvider.
func (p *Provider) Name() string { return p.chat.Name() }

// Kind returns the provider type.
func (p *Provider) Kind() string { return p.kind }

// Model returns the default model, if known.
func (p *Provider) Model() string { return p.model }

// ChatModel returns the underlying chat backend.
func (p *Provider) ChatModel() domain.ChatModel { return p.chat }

// GenerateText implements domain.LLMProvider as a single-message chat.
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	return p.GenerateChat(ctx, textAsChat(prompt), opts)
}

// GenerateChat implements domain.LLMProvider.
func (p *Provider) GenerateChat(ctx context.Context, msgs []domain.Message, opts domain.GenerationOptions) (string, error) {
	if len(msgs) == 0 {
		return "", domain.NewDomainError("Provider.GenerateChat", domain.ErrInvalidInput, "no messages")
	}
	resp, err := p.chat.Chat(ctx, domain.NewChatRequest(msgs, opts))
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Embed implements domain.LLMProvider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.embedder == nil {
		return nil, &domain.ProviderError{
			Provider: p.Name(),
			Op:       "embed",
			Err:      fmt.Errorf("%w: %s has no embeddings endpoint", domain.ErrNotSupported, p.Name()),
		}
	}

	ctx, span := tracer.StartSpan(ctx, "llm.embed",
		trace.WithAttributes(tracer.StringAttr("llm.provider", p.Name())),
	)
	defer span.End()

	vecs, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		tracer.RecordError(span, err)
		p.logger.Warn("llm embed failed", "provider", p.Name(), "error", err)
		return nil, err
	}
	if len(vecs) == 0 {
		err := &domain.ProviderError{Provider: p.Name(), Op: "embed", Err: domain.ErrEmbeddingFailed}
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return vecs[0], nil
}

var _ domain.LLMProvider = (*Provider)(nil)
