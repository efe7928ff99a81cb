package service

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/vcheck/internal/config"
)

const (
	jinaEndpoint = "https://api.jina.ai/v1/embeddings"
)

// JinaEmbedding calls the Jina embeddings API.
type JinaEmbedding struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewJinaEmbedding creates a Jina provider using bearer authentication.
func NewJinaEmbedding(cfg *config.EmbeddingConfig) *JinaEmbedding {
	client := newOracleClient(cfg.Timeout)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)

	endpoint := strings.TrimSuffix(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = jinaEndpoint
	}

	return &JinaEmbedding{
		client:     client,
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Model returns the model name being used.
func (j *JinaEmbedding) Model() string { return j.model }

// Dimensions returns the vector length.
func (j *JinaEmbedding) Dimensions() int { return j.dimensions }

type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (j *JinaEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := j.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Templates and check
// texts are compared symmetrically, so both use the text-matching task.
func (j *JinaEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp jinaResponse
	err := oracleCall(config.ProviderJina, func() (*resty.Response, error) {
		return j.client.R().
			SetContext(ctx).
			SetBody(jinaRequest{
				Model:         j.model,
				Task:          "text-matching",
				Dimensions:    j.dimensions,
				Input:         texts,
				EmbeddingType: "float",
			}).
			SetResult(&resp).
			Post(j.endpoint)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, countMismatch(config.ProviderJina, len(resp.Data), len(texts))
	}

	// results may arrive out of order; place by index
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	if err := checkVectors(config.ProviderJina, vectors, len(texts), j.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}
