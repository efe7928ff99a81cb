package storage

import "context"

// ObjectStorage is the subset of object storage the engine needs: removing
// a video file once its record is gone.
type ObjectStorage interface {
	// Delete removes an object. Deleting a missing object succeeds.
	Delete(ctx context.Context, key string) error
}
