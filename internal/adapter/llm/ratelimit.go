package llm

import (
	"context"

	"golang.org/x/time/rate"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

// RateLimitedProvider throttles a ChatModel with a token bucket. Callers
// wait for a token; a context that ends first fails the call with a
// retryable timeout.
type RateLimitedProvider struct {
	inner   domain.ChatModel
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner. Burst defaults to 1.
func NewRateLimitedProvider(inner domain.ChatModel, cfg config.RateLimitConfig) *RateLimitedProvider {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Chat implements domain.ChatModel.
func (p *RateLimitedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, domain.TransportError(p.inner.Name(), "rate limit wait", err)
	}
	return p.inner.Chat(ctx, req)
}

// Name implements domain.ChatModel.
func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

// Model forwards the inner backend's default model.
func (p *RateLimitedProvider) Model() string { return modelOf(p.inner) }

var _ domain.ChatModel = (*RateLimitedProvider)(nil)
