package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const backendName = "memory"

type entry struct {
	data        []byte
	contentType string
	metadata    map[string]string
	etag        string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the simplestorage.Adapter interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]*entry
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]*entry),
	}
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) NormalizeKey(contextPath, key string) string {
	return simplestorage.NormalizeKey(contextPath, key)
}

// Put stores content, replacing any previous content and metadata
func (b *Backend) Put(ctx context.Context, fullPath string, content io.Reader, attrs simplestorage.Attributes) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return simplestorage.Unexpected(backendName, "put", fullPath, err)
	}
	contentType, metadata := simplestorage.SplitAttributes(attrs)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[fullPath] = &entry{
		data:        data,
		contentType: contentType,
		metadata:    metadata,
		etag:        hex.EncodeToString(sum[:]),
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

// Remove deletes content; missing objects are ignored
func (b *Backend) Remove(ctx context.Context, fullPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, fullPath)
	return nil
}

// GetMeta retrieves metadata for an object in memory
func (b *Backend) GetMeta(ctx context.Context, fullPath string) (*simplestorage.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, exists := b.objects[fullPath]
	if !exists {
		return nil, simplestorage.NotFound(backendName, "get_meta", fullPath, nil)
	}

	metadata := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		metadata[k] = v
	}
	return &simplestorage.ObjectMeta{
		Key:         fullPath,
		ContentType: e.contentType,
		Size:        int64(len(e.data)),
		ETag:        e.etag,
		UpdatedAt:   e.updatedAt,
		Metadata:    metadata,
	}, nil
}

// Open returns a reader over the stored content
func (b *Backend) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, exists := b.objects[fullPath]
	if !exists {
		return nil, simplestorage.NotFound(backendName, "open", fullPath, nil)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (b *Backend) URL(fullPath string) string {
	return "memory://" + fullPath
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
