package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/vcheck/internal/config"
	"github.com/timmy/vcheck/internal/domain"
)

func geminiConfig(baseURL string, dims int) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Provider:   config.ProviderGemini,
		Model:      "text-embedding-004",
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Dimensions: dims,
		Timeout:    5 * time.Second,
	}
}

func TestGeminiEmbedding_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body geminiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Content.Parts, 1)
		assert.Equal(t, "冒頭のフックが弱い", body.Content.Parts[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	p := NewGeminiEmbedding(geminiConfig(srv.URL, 3))
	v, err := p.Embed(context.Background(), "冒頭のフックが弱い")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "text-embedding-004", p.Model())
	assert.Equal(t, 3, p.Dimensions())
}

func TestGeminiEmbedding_EmbedBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:batchEmbedContents", r.URL.Path)

		var body geminiBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Requests, 2)
		assert.Equal(t, "models/text-embedding-004", body.Requests[0].Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`))
	}))
	defer srv.Close()

	p := NewGeminiEmbedding(geminiConfig(srv.URL, 2))
	vs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vs)

	empty, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGeminiEmbedding_NonSuccessCarriesStatusAndBody(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	p := NewGeminiEmbedding(geminiConfig(srv.URL, 3))
	_, err := p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))

	var upstream *domain.EmbeddingUnavailableError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "quota exceeded")
	assert.True(t, upstream.Transient())
	assert.Equal(t, 1, calls, "provider must not retry")
}

func TestGeminiEmbedding_WrongDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2]}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiEmbedding(geminiConfig(srv.URL, 768)).Embed(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestGeminiEmbedding_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGeminiEmbedding(geminiConfig(url, 3)).Embed(context.Background(), "text")
	var upstream *domain.EmbeddingUnavailableError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 0, upstream.StatusCode)
	assert.True(t, upstream.Transient())
}

func TestJinaEmbedding_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jina-key", r.Header.Get("Authorization"))

		var body jinaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"first", "second"}, body.Input)
		assert.Equal(t, "text-matching", body.Task)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	p := NewJinaEmbedding(&config.EmbeddingConfig{
		Provider:   config.ProviderJina,
		Model:      "jina-embeddings-v3",
		APIKey:     "jina-key",
		BaseURL:    srv.URL,
		Dimensions: 2,
	})
	vs, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vs)
}

func TestJinaEmbedding_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	p := NewJinaEmbedding(&config.EmbeddingConfig{Provider: config.ProviderJina, Model: "m", APIKey: "k", BaseURL: srv.URL, Dimensions: 2})
	_, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestOfflineEmbedding_DeterministicUnitVectors(t *testing.T) {
	p := NewOfflineEmbedding("", 64)
	ctx := context.Background()

	a1, err := p.Embed(ctx, "テロップが小さい")
	require.NoError(t, err)
	a2, err := p.Embed(ctx, "テロップが小さい")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "BGMが大きい")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 64)

	var norm float64
	for _, x := range a1 {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	batch, err := p.EmbedBatch(ctx, []string{"テロップが小さい", "BGMが大きい"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{a1, b}, batch)
}

func TestNewEmbeddingProvider(t *testing.T) {
	p, err := NewEmbeddingProvider(&config.EmbeddingConfig{Provider: config.ProviderOffline, Dimensions: 8})
	require.NoError(t, err)
	assert.IsType(t, &OfflineEmbedding{}, p)

	p, err = NewEmbeddingProvider(geminiConfig("", 768))
	require.NoError(t, err)
	assert.IsType(t, &GeminiEmbedding{}, p)

	_, err = NewEmbeddingProvider(&config.EmbeddingConfig{Provider: "openai"})
	assert.Error(t, err)
}
