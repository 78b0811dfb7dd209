package simplestorage

import (
	"context"
	"io"
)

// Service defines the key-addressed storage API
type Service interface {
	// Put stores content under key, replacing any previous content and
	// attributes.
	Put(ctx context.Context, key string, content io.Reader, attrs Attributes) error

	// Get fetches the object's metadata and returns a handle whose content
	// is loaded on first access.
	Get(ctx context.Context, key string) (*Object, error)

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// GetMeta returns the object's metadata without transferring content.
	GetMeta(ctx context.Context, key string) (*ObjectMeta, error)

	// GetURL returns the direct-access URL for key without contacting the
	// backend.
	GetURL(key string) (string, error)

	// Open returns a fresh content stream for key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// FullPath returns the normalized path the backend operates on.
	FullPath(key string) (string, error)

	// Backend returns the adapter name.
	Backend() string
}
