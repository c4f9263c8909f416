package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

// roundTripFunc is a function type that implements http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// errorReadCloser is an io.ReadCloser whose Read always returns an error.
type errorReadCloser struct{}

func (e *errorReadCloser) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated body read error")
}

func (e *errorReadCloser) Close() error {
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestOpenAIProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content-type: %s", r.Header.Get("Content-Type"))
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxTokens != 500 {
			t.Errorf("max_tokens = %d, want 500", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Temperature)
		}

		resp := openaiResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openaiChoice{
				{
					Index:        0,
					Message:      openaiMessage{Role: "assistant", Content: "  Try a memory game today.  "},
					FinishReason: "stop",
				},
			},
			Usage: openaiUsage{PromptTokens: 10, CompletionTokens: 8, TotalTokens: 18},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	}, newTestLogger())

	req := domain.NewChatRequest([]domain.Message{{Role: domain.RoleUser, Content: "Hello"}}, domain.GenerationOptions{})
	resp, err := provider.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != "Try a memory game today." {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("TotalTokens = %d, want 18", resp.Usage.TotalTokens)
	}
}

func TestOpenAIProviderErrorResponses(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		wantErr       error
		wantRetryable bool
	}{
		{"429 rate limit", http.StatusTooManyRequests, domain.ErrRateLimit, true},
		{"401 unauthorized", http.StatusUnauthorized, domain.ErrAuthInvalid, false},
		{"403 forbidden", http.StatusForbidden, domain.ErrAuthInvalid, false},
		{"413 too large", http.StatusRequestEntityTooLarge, domain.ErrContextOverflow, false},
		{"500 server error", http.StatusInternalServerError, domain.ErrProviderError, true},
		{"504 gateway timeout", http.StatusGatewayTimeout, domain.ErrTimeout, true},
		{"400 bad request", http.StatusBadRequest, domain.ErrProviderError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(`{"error":{"message":"boom"}}`))
			}))
			defer server.Close()

			provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: server.URL}, newTestLogger())
			_, err := provider.Chat(context.Background(), domain.ChatRequest{
				Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var pe *domain.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *domain.ProviderError, got %T", err)
			}
			if pe.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.statusCode)
			}
			if pe.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", pe.Retryable, tt.wantRetryable)
			}
			if pe.Provider != "test" {
				t.Errorf("Provider = %q", pe.Provider)
			}
		})
	}
}

func TestOpenAIProviderDeadlineIsRetryableTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: server.URL}, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !domain.IsRetryableError(err) {
		t.Error("deadline exceeded should be retryable")
	}
}

func TestOpenAIChatInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: server.URL}, newTestLogger())
	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestOpenAIResponseEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: server.URL}, newTestLogger())
	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestOpenAIRequestConversion(t *testing.T) {
	req := domain.ChatRequest{
		Model: "gpt-4o",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are helpful"},
			{Role: domain.RoleUser, Content: "Hi"},
			{Role: domain.RoleAssistant, Content: "Hello"},
		},
		MaxTokens:   100,
		Temperature: 0.3,
	}

	oai := toOpenAIRequest(req)
	if oai.Model != "gpt-4o" {
		t.Errorf("Model = %q", oai.Model)
	}
	if len(oai.Messages) != 3 || oai.Messages[0].Role != "system" || oai.Messages[2].Content != "Hello" {
		t.Errorf("Messages = %+v", oai.Messages)
	}
	if oai.MaxTokens != 100 || oai.Temperature == nil || *oai.Temperature != 0.3 {
		t.Errorf("MaxTokens = %d, Temperature = %v", oai.MaxTokens, oai.Temperature)
	}
}

func TestOpenAIRequestNoMaxTokensNoTemp(t *testing.T) {
	data, err := json.Marshal(toOpenAIRequest(domain.ChatRequest{Model: "m"}))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "max_tokens") || strings.Contains(s, "temperature") {
		t.Errorf("unexpected optional fields in %s", s)
	}
}

func TestOpenAIChatDefaultModel(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: server.URL}, newTestLogger())
	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotModel != defaultOpenAIModel {
		t.Errorf("model = %q, want %q", gotModel, defaultOpenAIModel)
	}
	if resp.Message.Role != domain.RoleAssistant {
		t.Errorf("role = %q, want assistant", resp.Message.Role)
	}
}

func TestOpenAIProviderNoAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("Authorization header should be absent, got %q", auth)
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: server.URL}, newTestLogger())
	if _, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestOpenAIChatReadBodyError(t *testing.T) {
	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: "http://example.invalid"}, newTestLogger())
	provider.client = &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       &errorReadCloser{},
				Header:     make(http.Header),
			}, nil
		}),
	}

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *domain.ProviderError, got %v", err)
	}
	if pe.Op != "read response" {
		t.Errorf("Op = %q", pe.Op)
	}
}

func TestOpenAIChatTransportError(t *testing.T) {
	provider := NewOpenAIProvider(config.ProviderConfig{Name: "test", BaseURL: "http://example.invalid"}, newTestLogger())
	provider.client = &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, io.ErrUnexpectedEOF
		}),
	}

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if domain.IsRetryableError(err) {
		t.Error("plain transport failure should not be retryable")
	}
}
