package storage

import (
	"context"
	"strings"

	"github.com/timmy/vcheck/internal/config"
)

// NewStorage creates an ObjectStorage from configuration.
// Parameters:
//   - ctx: context used while loading AWS configuration.
//   - cfg: storage section of the application config.
//
// Returns:
//   - *S3Storage: initialized storage client.
//   - error: non-nil if the client cannot be created.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (*S3Storage, error) {
	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	return NewS3Storage(ctx, &S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
}

// detectStorageType guesses the storage flavour from the endpoint host.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"), endpoint == "":
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
