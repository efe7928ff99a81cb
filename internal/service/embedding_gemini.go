package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/vcheck/internal/config"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "text-embedding-004"
)

// GeminiEmbedding calls the Generative Language embedding API.
type GeminiEmbedding struct {
	client     *resty.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

// NewGeminiEmbedding creates a Gemini provider. The API key travels as the
// key query parameter.
func NewGeminiEmbedding(cfg *config.EmbeddingConfig) *GeminiEmbedding {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiEmbedding{
		client:     newOracleClient(cfg.Timeout),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
	}
}

// Model returns the model name being used.
func (g *GeminiEmbedding) Model() string { return g.model }

// Dimensions returns the vector length.
func (g *GeminiEmbedding) Dimensions() int { return g.dimensions }

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model,omitempty"`
	Content geminiContent `json:"content"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiValues `json:"embedding"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchResponse struct {
	Embeddings []geminiValues `json:"embeddings"`
}

// Embed generates an embedding for a single text.
func (g *GeminiEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp geminiEmbedResponse
	err := oracleCall(config.ProviderGemini, func() (*resty.Response, error) {
		return g.client.R().
			SetContext(ctx).
			SetQueryParam("key", g.apiKey).
			SetBody(geminiEmbedRequest{Content: geminiContent{Parts: []geminiPart{{Text: text}}}}).
			SetResult(&resp).
			Post(g.endpoint("embedContent"))
	})
	if err != nil {
		return nil, err
	}

	vectors := [][]float32{resp.Embedding.Values}
	if err := checkVectors(config.ProviderGemini, vectors, 1, g.dimensions); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (g *GeminiEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		req.Requests[i] = geminiEmbedRequest{
			Model:   "models/" + g.model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}
	}

	var resp geminiBatchResponse
	err := oracleCall(config.ProviderGemini, func() (*resty.Response, error) {
		return g.client.R().
			SetContext(ctx).
			SetQueryParam("key", g.apiKey).
			SetBody(req).
			SetResult(&resp).
			Post(g.endpoint("batchEmbedContents"))
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	if err := checkVectors(config.ProviderGemini, vectors, len(texts), g.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *GeminiEmbedding) endpoint(method string) string {
	return fmt.Sprintf("%s/models/%s:%s", g.baseURL, g.model, method)
}
