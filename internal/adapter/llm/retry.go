package llm

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

// RetryProvider retries retryable failures of a ChatModel with exponential
// backoff and jitter. Non-retryable errors are returned immediately.
type RetryProvider struct {
	inner  domain.ChatModel
	cfg    config.RetryConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetryProvider wraps inner. Zero-valued backoff settings fall back to
// 1s initial, 30s cap, factor 2 and 10% jitter.
func NewRetryProvider(inner domain.ChatModel, cfg config.RetryConfig, logger *slog.Logger) *RetryProvider {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	return &RetryProvider{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Chat implements domain.ChatModel.
func (p *RetryProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := computeBackoff(p.cfg, attempt-1)
			p.logger.Warn("retrying llm call",
				"provider", p.inner.Name(),
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)
			if err := p.sleep(ctx, backoff); err != nil {
				return nil, domain.TransportError(p.inner.Name(), "retry", err)
			}
		}

		resp, err := p.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !domain.IsRetryableError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// Name implements domain.ChatModel.
func (p *RetryProvider) Name() string { return p.inner.Name() }

// Model forwards the inner backend's default model.
func (p *RetryProvider) Model() string { return modelOf(p.inner) }

// computeBackoff returns min(initial * factor^attempt, max) plus up to
// JitterFraction of that as random jitter. attempt is 0-indexed.
func computeBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	base := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt))
	if base > float64(cfg.MaxBackoff) {
		base = float64(cfg.MaxBackoff)
	}
	jitter := base * cfg.JitterFraction * rand.Float64() //nolint:gosec // jitter only
	return time.Duration(base + jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ domain.ChatModel = (*RetryProvider)(nil)
