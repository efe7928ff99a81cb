package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/timmy/vcheck/internal/config"
	"github.com/timmy/vcheck/internal/metrics"
)

// OfflineEmbedding derives unit vectors from a SHA-256 stream of the text.
// Equal texts always yield equal vectors; it makes no network calls and is
// only used when configured explicitly.
type OfflineEmbedding struct {
	model      string
	dimensions int
}

// NewOfflineEmbedding creates an offline provider.
func NewOfflineEmbedding(model string, dimensions int) *OfflineEmbedding {
	if model == "" {
		model = "offline-sha256"
	}
	return &OfflineEmbedding{model: model, dimensions: dimensions}
}

// Model returns the model name.
func (o *OfflineEmbedding) Model() string { return o.model }

// Dimensions returns the vector length.
func (o *OfflineEmbedding) Dimensions() int { return o.dimensions }

// Embed returns the deterministic vector of text.
func (o *OfflineEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	metrics.RecordEmbeddingRequest(config.ProviderOffline, "ok", 0)
	return o.vector(text), nil
}

// EmbedBatch returns one deterministic vector per text.
func (o *OfflineEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = o.vector(text)
	}
	metrics.RecordEmbeddingRequest(config.ProviderOffline, "ok", 0)
	return vectors, nil
}

func (o *OfflineEmbedding) vector(text string) []float32 {
	v := make([]float32, o.dimensions)
	var block [sha256.Size]byte
	var counter [4]byte
	for i := range v {
		if i%sha256.Size == 0 {
			binary.BigEndian.PutUint32(counter[:], uint32(i/sha256.Size))
			block = sha256.Sum256(append([]byte(text), counter[:]...))
		}
		// map each byte to [-1, 1]
		v[i] = float32(block[i%sha256.Size])/127.5 - 1
	}
	return normalize(v)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	mag := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= mag
	}
	return v
}
