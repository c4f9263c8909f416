package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"careai/internal/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 10 * 1024 * 1024
	maxErrorDetail  = 512
)

func defaultClient() *http.Client { return &http.Client{Timeout: defaultTimeout} }

// postJSON sends payload and decodes a 2xx answer into out. Every failure is a
// *domain.ProviderError wrapping domain.ErrEmbeddingFailed.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return embedFailure(provider, 0, false, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return embedFailure(provider, 0, false, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		pe := domain.TransportError(provider, "embed", err)
		pe.Err = fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, pe.Err)
		return pe
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return embedFailure(provider, 0, false, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(respBody)
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail] + "..."
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return embedFailure(provider, resp.StatusCode, retryable, fmt.Errorf("api error: %s", detail))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return embedFailure(provider, 0, false, fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

func embedFailure(provider string, status int, retryable bool, err error) *domain.ProviderError {
	return &domain.ProviderError{
		Provider:   provider,
		Op:         "embed",
		StatusCode: status,
		Retryable:  retryable,
		Err:        fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err),
	}
}
