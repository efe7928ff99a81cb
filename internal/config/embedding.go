package config

import (
	"fmt"
	"os"
	"time"
)

// Embedding provider identifiers.
const (
	ProviderGemini  = "gemini"
	ProviderJina    = "jina"
	ProviderOffline = "offline"
)

// EmbeddingConfig defines the embedding oracle used for templates and check texts.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`    // gemini, jina or offline
	Model      string        `mapstructure:"model"`       // model name/ID
	APIKey     string        `mapstructure:"api_key"`     // set directly or via APIKeyEnv
	APIKeyEnv  string        `mapstructure:"api_key_env"` // environment variable holding the key
	BaseURL    string        `mapstructure:"base_url"`    // override for the provider endpoint
	Dimensions int           `mapstructure:"dimensions"`  // expected vector length
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ResolveEnvVars loads the API key from APIKeyEnv when no direct value is set.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}

// Validate checks that the embedding configuration has all required fields.
// The offline provider needs no credentials.
func (c *EmbeddingConfig) Validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}

	switch c.Provider {
	case ProviderOffline:
		return nil
	case ProviderGemini, ProviderJina:
	default:
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("embedding %q: model is required", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Provider, c.APIKeyEnv)
	}
	return nil
}
