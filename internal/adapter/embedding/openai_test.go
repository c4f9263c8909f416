package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careai/internal/domain"
)

func TestOpenAIEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello", "world"}, req.Input)
		assert.Equal(t, defaultOpenAIModel, req.Model)

		json.NewEncoder(w).Encode(openaiEmbedResponse{Data: []openaiEmbedData{
			{Index: 1, Embedding: []float32{0.4, 0.5, 0.6}},
			{Index: 0, Embedding: []float32{0.1, 0.2, 0.3}},
		}})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", WithOpenAIBaseURL(server.URL))
	vecs, err := p.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.1, vecs[0][0], 1e-6, "reordered by index")
	assert.InDelta(t, 0.4, vecs[1][0], 1e-6)
}

func TestOpenAIEmbedNoKeyNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("", WithOpenAIBaseURL(server.URL))
	_, err := p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
}

func TestOpenAIEmbedEmptyInput(t *testing.T) {
	p := NewOpenAIProvider("key")
	vecs, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestOpenAIEmbedHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			p := NewOpenAIProvider("key", WithOpenAIBaseURL(server.URL))
			_, err := p.Embed(context.Background(), []string{"hello"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)

			var pe *domain.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, "embed", pe.Op)
			assert.Equal(t, tt.retryable, pe.Retryable)
		})
	}
}

func TestOpenAIEmbedInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("key", WithOpenAIBaseURL(server.URL))
	_, err := p.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestOpenAIEmbedContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOpenAIProvider("key", WithOpenAIBaseURL(server.URL))
	_, err := p.Embed(ctx, []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestOpenAIOptions(t *testing.T) {
	client := &http.Client{}
	p := NewOpenAIProvider("key",
		WithOpenAIModel("text-embedding-3-large"),
		WithOpenAIDimensions(3072),
		WithOpenAIBaseURL("https://custom.api/v1/"),
		WithOpenAIClient(client),
		WithOpenAIName("work"),
	)
	assert.Equal(t, "text-embedding-3-large", p.model)
	assert.Equal(t, 3072, p.Dimensions())
	assert.Equal(t, "https://custom.api/v1", p.baseURL)
	assert.Same(t, client, p.client)
	assert.Equal(t, "work", p.Name())

	p = NewOpenAIProvider("key", WithOpenAIModel(""), WithOpenAIName(""))
	assert.Equal(t, defaultOpenAIModel, p.model)
	assert.Equal(t, "openai", p.Name())
}
