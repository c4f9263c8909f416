package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/tracer"
)

// maxResponseBody is the maximum response body size we read from LLM APIs.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// doJSONRequest performs a JSON POST request and returns the response body.
// Transport failures and non-2xx answers come back as *domain.ProviderError.
func doJSONRequest(ctx context.Context, client *http.Client, provider, url string, body []byte, headers map[string]string) ([]byte, error) {
	return doRequest(ctx, client, provider, http.MethodPost, url, body, headers)
}

// doGetRequest performs a GET request with the same error mapping as doJSONRequest.
func doGetRequest(ctx context.Context, client *http.Client, provider, url string, headers map[string]string) ([]byte, error) {
	return doRequest(ctx, client, provider, http.MethodGet, url, nil, headers)
}

func doRequest(ctx context.Context, client *http.Client, provider, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, domain.TransportError(provider, "request", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.TransportError(provider, "read response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, mapHTTPError(provider, httpResp.StatusCode, respBody)
	}
	return respBody, nil
}

// logChatCompleted logs the standard debug message after a successful LLM chat.
func logChatCompleted(logger *slog.Logger, providerName string, result *domain.ChatResponse) {
	logger.Debug("llm chat completed",
		"provider", providerName,
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
	)
}

// setUsageAttrs adds token usage attributes to a trace span.
func setUsageAttrs(span trace.Span, usage domain.Usage) {
	span.SetAttributes(
		tracer.IntAttr("llm.prompt_tokens", usage.PromptTokens),
		tracer.IntAttr("llm.completion_tokens", usage.CompletionTokens),
	)
}

// maxErrorDetail bounds how much of an error body is copied into the error text.
const maxErrorDetail = 512

// mapHTTPError maps an HTTP status code + response body to a ProviderError
// carrying the matching category sentinel, so circuit breakers and retry
// policies can classify it.
func mapHTTPError(provider string, statusCode int, body []byte) *domain.ProviderError {
	bodyStr := string(body)
	if len(bodyStr) > maxErrorDetail {
		bodyStr = bodyStr[:maxErrorDetail] + "..."
	}

	var sentinel error
	retryable := false
	switch {
	case statusCode == http.StatusTooManyRequests: // 429
		sentinel, retryable = domain.ErrRateLimit, true
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden: // 401, 403
		sentinel = domain.ErrAuthInvalid
	case statusCode == http.StatusRequestEntityTooLarge: // 413
		sentinel = domain.ErrContextOverflow
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout: // 408, 504
		sentinel, retryable = domain.ErrTimeout, true
	case statusCode >= 500: // 500, 502, 503, 529 ...
		sentinel, retryable = domain.ErrProviderError, true
	default:
		sentinel = domain.ErrProviderError
	}

	return &domain.ProviderError{
		Provider:   provider,
		Op:         "chat",
		StatusCode: statusCode,
		Retryable:  retryable,
		Err:        fmt.Errorf("%w: %s", sentinel, bodyStr),
	}
}

// textAsChat wraps a single prompt as a one-message conversation.
func textAsChat(prompt string) []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Content: prompt}}
}

// modelOf returns a backend's default model when it exposes one.
func modelOf(m domain.ChatModel) string {
	if mm, ok := m.(interface{ Model() string }); ok {
		return mm.Model()
	}
	return ""
}
