package llm

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &mockChatModel{name: "test", chatFunc: replyWith("ok")}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, newTestLogger())
	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Equal(t, "test", cb.Name())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	inner := &mockChatModel{name: "flaky", chatFunc: failWith(errors.New("provider error"))}

	cfg := config.CircuitBreakerConfig{MaxFailures: 3, Timeout: 5 * time.Second, Interval: 60 * time.Second}
	cb := NewCircuitBreakerProvider(inner, cfg, newTestLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Chat(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider error")
	}
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Open circuit fails fast without reaching the backend.
	_, err := cb.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "flaky", pe.Provider)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCircuitBreakerClosesAfterSuccess(t *testing.T) {
	var shouldFail atomic.Bool
	shouldFail.Store(true)
	inner := &mockChatModel{
		name: "recovering",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			if shouldFail.Load() {
				return nil, errors.New("down")
			}
			return &domain.ChatResponse{Message: domain.Message{Content: "recovered"}}, nil
		},
	}

	cfg := config.CircuitBreakerConfig{MaxFailures: 2, Timeout: 50 * time.Millisecond, Interval: 60 * time.Second}
	cb := NewCircuitBreakerProvider(inner, cfg, newTestLogger())

	for i := 0; i < 2; i++ {
		cb.Chat(context.Background(), domain.ChatRequest{})
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	shouldFail.Store(false)
	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Message.Content)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	inner := &mockChatModel{name: "slow", chatFunc: failWith(domain.TransportError("slow", "request", context.Canceled))}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{MaxFailures: 1}, newTestLogger())
	for i := 0; i < 3; i++ {
		cb.Chat(context.Background(), domain.ChatRequest{})
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCircuitBreakerPropagatesInnerErrors(t *testing.T) {
	sentinel := errors.New("specific error")
	inner := &mockChatModel{name: "err", chatFunc: failWith(sentinel)}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{MaxFailures: 10}, newTestLogger())
	_, err := cb.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestCircuitBreakerCounts(t *testing.T) {
	var callNum int
	inner := &mockChatModel{
		name: "counted",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			callNum++
			if callNum <= 2 {
				return &domain.ChatResponse{Message: domain.Message{Content: "ok"}}, nil
			}
			return nil, errors.New("fail")
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{MaxFailures: 10}, newTestLogger())

	cb.Chat(context.Background(), domain.ChatRequest{})
	cb.Chat(context.Background(), domain.ChatRequest{})
	assert.Equal(t, uint32(2), cb.Counts().TotalSuccesses)

	cb.Chat(context.Background(), domain.ChatRequest{})
	counts := cb.Counts()
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
}

// --- Connection Pooling Tests ---

func TestNewPooledTransport_Defaults(t *testing.T) {
	tr := NewPooledTransport(0, 0, PooledTransportConfig{})

	assert.Equal(t, defaultMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, defaultMaxConnsPerHost, tr.MaxConnsPerHost)
	assert.Equal(t, defaultIdleConnTimeout, tr.IdleConnTimeout)
	assert.True(t, tr.ForceAttemptHTTP2)
}

func TestNewHTTPClient_PoolConfig(t *testing.T) {
	client := NewHTTPClient(config.ProviderConfig{
		ConnTimeout: 2 * time.Second,
		RespTimeout: 8 * time.Second,
		Pool:        config.PoolConfig{MaxIdleConns: 50, MaxConnsPerHost: 30},
	})

	assert.Equal(t, 10*time.Second, client.Timeout)
	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 50, tr.MaxIdleConns)
	assert.Equal(t, 30, tr.MaxConnsPerHost)
	assert.Equal(t, 8*time.Second, tr.ResponseHeaderTimeout)
}
