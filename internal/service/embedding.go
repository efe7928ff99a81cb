package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/vcheck/internal/config"
	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/metrics"
)

// EmbeddingProvider turns text into fixed-length vectors. Implementations
// never retry; failures surface as *domain.EmbeddingUnavailableError and the
// caller decides whether to tolerate them.
type EmbeddingProvider interface {
	// Embed returns the vector of one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model returns the model identifier in use.
	Model() string
	// Dimensions returns the fixed vector length the provider yields.
	Dimensions() int
}

// NewEmbeddingProvider creates the provider selected by cfg.Provider.
// Parameters:
//   - cfg: validated embedding configuration.
//
// Returns:
//   - EmbeddingProvider: provider ready to serve requests.
//   - error: non-nil for an unknown provider.
func NewEmbeddingProvider(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiEmbedding(cfg), nil
	case config.ProviderJina:
		return NewJinaEmbedding(cfg), nil
	case config.ProviderOffline:
		return NewOfflineEmbedding(cfg.Model, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// newOracleClient builds the resty client shared by the remote providers.
// Retries stay disabled: repeated oracle calls cost money.
func newOracleClient(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetRetryCount(0)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return client
}

// oracleCall runs one oracle request and converts transport failures and
// non-2xx responses into EmbeddingUnavailableError, recording metrics.
func oracleCall(provider string, do func() (*resty.Response, error)) error {
	start := time.Now()
	resp, err := do()
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordEmbeddingRequest(provider, "error", elapsed)
		return &domain.EmbeddingUnavailableError{Provider: provider, Err: err}
	}
	if !resp.IsSuccess() {
		metrics.RecordEmbeddingRequest(provider, strconv.Itoa(resp.StatusCode()), elapsed)
		return &domain.EmbeddingUnavailableError{
			Provider:   provider,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 512),
		}
	}
	metrics.RecordEmbeddingRequest(provider, "ok", elapsed)
	return nil
}

// checkVectors verifies count and dimensionality of an oracle response.
func checkVectors(provider string, vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return countMismatch(provider, len(vectors), want)
	}
	for i, v := range vectors {
		if dims > 0 && len(v) != dims {
			return &domain.EmbeddingUnavailableError{
				Provider: provider,
				Body:     fmt.Sprintf("embedding %d has %d dimensions, expected %d", i, len(v), dims),
			}
		}
	}
	return nil
}

func countMismatch(provider string, got, want int) error {
	return &domain.EmbeddingUnavailableError{
		Provider: provider,
		Body:     fmt.Sprintf("unexpected number of embeddings: got %d, expected %d", got, want),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
