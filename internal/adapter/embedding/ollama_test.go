package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careai/internal/domain"
)

func TestOllamaEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mxbai-embed-large", req.Model)

		out := ollamaEmbedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.5, 0.25})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL+"/v1"), WithOllamaModel("mxbai-embed-large"))
	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, []float32{0.5, 0.25}, vecs[2])
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestOllamaEmbedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaDefaults(t *testing.T) {
	p := NewOllamaProvider()
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, defaultOllamaDims, p.Dimensions())
	assert.Equal(t, defaultOllamaBaseURL, p.baseURL)

	vecs, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
