package llm

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"careai/internal/domain"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status        int
		wantErr       error
		wantRetryable bool
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit, true},
		{http.StatusUnauthorized, domain.ErrAuthInvalid, false},
		{http.StatusForbidden, domain.ErrAuthInvalid, false},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow, false},
		{http.StatusRequestTimeout, domain.ErrTimeout, true},
		{http.StatusGatewayTimeout, domain.ErrTimeout, true},
		{http.StatusInternalServerError, domain.ErrProviderError, true},
		{http.StatusBadGateway, domain.ErrProviderError, true},
		{http.StatusServiceUnavailable, domain.ErrProviderError, true},
		{http.StatusTeapot, domain.ErrProviderError, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := mapHTTPError("openai", tt.status, []byte("body"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if err.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.wantRetryable)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d", err.StatusCode)
			}
		})
	}
}

func TestMapHTTPErrorIncludesBody(t *testing.T) {
	err := mapHTTPError("openai", http.StatusBadRequest, []byte(`{"error":"bad model"}`))
	if !strings.Contains(err.Error(), "bad model") {
		t.Errorf("error should include body: %v", err)
	}
}

func TestMapHTTPErrorTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", maxErrorDetail*2)
	err := mapHTTPError("openai", http.StatusBadRequest, []byte(body))
	if len(err.Error()) > maxErrorDetail+100 {
		t.Errorf("error text not truncated: %d bytes", len(err.Error()))
	}
	if !strings.HasSuffix(err.Error(), "...") {
		t.Errorf("truncated body should end with ellipsis")
	}
}

func TestTextAsChat(t *testing.T) {
	msgs := textAsChat("hello")
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("textAsChat = %+v", msgs)
	}
}
