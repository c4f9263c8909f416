package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

func TestOpenRouterTransport(t *testing.T) {
	var capturedReq *http.Request
	inner := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedReq = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Header:     make(http.Header),
		}, nil
	})

	transport := &openrouterTransport{base: inner}

	origReq, _ := http.NewRequest("GET", "https://example.com", nil)
	origReq.Header.Set("Authorization", "Bearer test-key")

	if _, err := transport.RoundTrip(origReq); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if capturedReq.Header.Get("X-Title") != "careai" {
		t.Errorf("X-Title = %q", capturedReq.Header.Get("X-Title"))
	}
	if capturedReq.Header.Get("HTTP-Referer") == "" {
		t.Error("HTTP-Referer not set")
	}
	if capturedReq.Header.Get("Authorization") != "Bearer test-key" {
		t.Errorf("Authorization = %q", capturedReq.Header.Get("Authorization"))
	}
	if origReq.Header.Get("X-Title") != "" {
		t.Error("original request was mutated")
	}
}

func TestOpenRouterProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Title") != "careai" {
			t.Errorf("X-Title = %q", r.Header.Get("X-Title"))
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Model:   "openai/gpt-4o",
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "routed"}}},
		})
	}))
	defer server.Close()

	provider := NewOpenRouterProvider(config.ProviderConfig{
		Name:    "openrouter",
		BaseURL: server.URL,
		APIKey:  "or-key",
		Model:   "openai/gpt-4o",
	}, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "routed" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if provider.Name() != "openrouter" {
		t.Errorf("Name = %q", provider.Name())
	}
}

func TestOpenRouterProviderDefaults(t *testing.T) {
	p := NewOpenRouterProvider(config.ProviderConfig{Name: "openrouter"}, newTestLogger())
	if p.inner.baseURL != defaultOpenRouterBaseURL {
		t.Errorf("baseURL = %q", p.inner.baseURL)
	}
	if p.Model() != "openai/"+defaultOpenAIModel {
		t.Errorf("model = %q", p.Model())
	}
}
