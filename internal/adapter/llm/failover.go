package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"careai/internal/domain"
)

// FailoverProvider wraps a primary chat backend with fallbacks.
// If the primary fails, it tries each fallback in order.
type FailoverProvider struct {
	primary   domain.ChatModel
	fallbacks []domain.ChatModel
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover-capable backend.
func NewFailoverProvider(primary domain.ChatModel, fallbacks []domain.ChatModel, logger *slog.Logger) *FailoverProvider {
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat tries the primary first, then each fallback on failure. The returned
// error joins every attempt's error, so errors.As still finds the
// *domain.ProviderError of each.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	f.logger.Warn("primary LLM failed, trying fallbacks",
		"primary", f.primary.Name(), "error", err)

	allErrors := []error{err}
	for _, fb := range f.fallbacks {
		if ctx.Err() != nil {
			break
		}
		// A model name only means something to the backend it was written for.
		fbReq := req
		fbReq.Model = ""
		resp, err = fb.Chat(ctx, fbReq)
		if err == nil {
			f.logger.Info("failover succeeded", "provider", fb.Name())
			return resp, nil
		}
		f.logger.Warn("fallback LLM failed", "provider", fb.Name(), "error", err)
		allErrors = append(allErrors, err)
	}

	return nil, fmt.Errorf("all providers failed: %w", errors.Join(allErrors...))
}

// Name keeps the primary's name so registry lookups are unaffected.
func (f *FailoverProvider) Name() string { return f.primary.Name() }

// Model forwards the primary's default model.
func (f *FailoverProvider) Model() string { return modelOf(f.primary) }

var _ domain.ChatModel = (*FailoverProvider)(nil)
