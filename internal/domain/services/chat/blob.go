package chat

import (
	"context"
	"time"
)

// BlobStore holds uploaded file bytes behind signed, time-limited URLs
type BlobStore interface {
	// UploadURL returns a URL accepting a single PUT of the blob for storageID
	UploadURL(ctx context.Context, storageID string, ttl time.Duration) (url string, expiresAt time.Time, err error)

	// ReadURL returns a fetchable URL for an existing blob
	ReadURL(ctx context.Context, storageID string, ttl time.Duration) (string, error)

	Delete(ctx context.Context, storageID string) error
}
