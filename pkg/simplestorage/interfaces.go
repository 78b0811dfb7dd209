package simplestorage

import (
	"context"
	"io"
)

// Adapter defines the operations a storage provider must supply. Every
// method except NormalizeKey takes a full path that has already been
// normalized, and every error leaving an adapter is classified through the
// taxonomy in errors.go.
type Adapter interface {
	// Name identifies the backend in errors, logs and metrics
	Name() string

	// NormalizeKey combines the context path with key and applies the
	// adapter's path rules. The result never has a leading separator.
	NormalizeKey(contextPath, key string) string

	// Put streams content to fullPath, replacing any previous content and
	// metadata. The content type goes to the provider's dedicated property.
	Put(ctx context.Context, fullPath string, content io.Reader, attrs Attributes) error

	// Remove deletes fullPath. A missing object is not an error.
	Remove(ctx context.Context, fullPath string) error

	// GetMeta returns the object's metadata, or a NotFound error.
	GetMeta(ctx context.Context, fullPath string) (*ObjectMeta, error)

	// Open returns a stream over the object's content without buffering it.
	Open(ctx context.Context, fullPath string) (io.ReadCloser, error)

	// URL builds a direct-access URL without any network call. The object
	// may not exist.
	URL(fullPath string) string
}

// ContentCache is a reclaimable cell holding a handle's materialized content.
// Load reports false when the cell is empty or its content was reclaimed.
type ContentCache interface {
	Load() ([]byte, bool)
	Store(data []byte)
	Clear()
}

// ContentTier is an optional shared cache consulted before the backend when
// materializing content. Keys are version-specific.
type ContentTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// EventSink defines the interface for storage event handling
type EventSink interface {
	// ObjectStored is fired after a successful put
	ObjectStored(ctx context.Context, key string, attrs Attributes) error

	// ObjectRemoved is fired after a successful remove
	ObjectRemoved(ctx context.Context, key string) error
}

// URLStrategy builds public URLs for full paths. Implementations must not
// perform I/O.
type URLStrategy interface {
	URL(fullPath string) string
}
