package nats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const (
	backendName = "nats"

	headerContentType = "Content-Type"
)

// Config options for the NATS JetStream object store backend
type Config struct {
	URL         string // NATS server URL, defaults to nats.DefaultURL
	Bucket      string // Object store bucket
	Description string // Optional bucket description used on creation
	Replicas    int    // Replicas for a newly created bucket

	Logger *slog.Logger // Optional; defaults to slog.Default()
}

// Backend stores objects in a JetStream object store bucket. Content type
// travels as the Content-Type header; free-form attributes as object
// metadata.
type Backend struct {
	conn   *nats.Conn
	store  jetstream.ObjectStore
	bucket string
	logger *slog.Logger
}

func validate(config Config) (Config, error) {
	config.Bucket = strings.TrimSpace(config.Bucket)
	if config.Bucket == "" {
		return config, simplestorage.Misconfigured(backendName, "bucket", "bucket name is required")
	}
	if strings.ContainsAny(config.Bucket, " .*>/\\") {
		return config, simplestorage.Misconfigured(backendName, "bucket", fmt.Sprintf("invalid bucket name %q", config.Bucket))
	}
	if config.URL == "" {
		config.URL = nats.DefaultURL
	}
	if config.Replicas <= 0 {
		config.Replicas = 1
	}
	return config, nil
}

// New connects to NATS and opens the object store bucket, creating it if it
// does not exist.
func New(ctx context.Context, config Config) (*Backend, error) {
	config, err := validate(config)
	if err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(config.URL, nats.Name("simplestorage"))
	if err != nil {
		return nil, mapError("connect", config.Bucket, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, mapError("connect", config.Bucket, err)
	}

	store, err := openStore(ctx, js, config, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Backend{
		conn:   conn,
		store:  store,
		bucket: config.Bucket,
		logger: logger,
	}, nil
}

func openStore(ctx context.Context, js jetstream.JetStream, config Config, logger *slog.Logger) (jetstream.ObjectStore, error) {
	store, err := js.ObjectStore(ctx, config.Bucket)
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, mapError("connect", config.Bucket, err)
	}

	store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      config.Bucket,
		Description: config.Description,
		Replicas:    config.Replicas,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		// Created concurrently by another client
		store, err = js.ObjectStore(ctx, config.Bucket)
	} else if err == nil {
		logger.Info("New NATS object store bucket created", "bucket", config.Bucket)
	}
	if err != nil {
		return nil, mapError("connect", config.Bucket, err)
	}
	return store, nil
}

// Close drains the underlying connection
func (b *Backend) Close() error {
	return b.conn.Drain()
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) NormalizeKey(contextPath, key string) string {
	return simplestorage.NormalizeKey(contextPath, key)
}

// Put stores content under fullPath; an existing object is replaced
func (b *Backend) Put(ctx context.Context, fullPath string, content io.Reader, attrs simplestorage.Attributes) error {
	contentType, metadata := simplestorage.SplitAttributes(attrs)

	meta := jetstream.ObjectMeta{
		Name:     fullPath,
		Metadata: metadata,
	}
	if contentType != "" {
		meta.Headers = nats.Header{}
		meta.Headers.Set(headerContentType, contentType)
	}

	if _, err := b.store.Put(ctx, meta, content); err != nil {
		return mapError("put", fullPath, err)
	}
	return nil
}

// Remove deletes the object; a missing object is not an error
func (b *Backend) Remove(ctx context.Context, fullPath string) error {
	err := b.store.Delete(ctx, fullPath)
	if err == nil || errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil
	}
	return mapError("remove", fullPath, err)
}

// GetMeta reads the object info
func (b *Backend) GetMeta(ctx context.Context, fullPath string) (*simplestorage.ObjectMeta, error) {
	info, err := b.store.GetInfo(ctx, fullPath)
	if err != nil {
		return nil, mapError("get_meta", fullPath, err)
	}
	return objectMeta(fullPath, info), nil
}

func objectMeta(fullPath string, info *jetstream.ObjectInfo) *simplestorage.ObjectMeta {
	meta := &simplestorage.ObjectMeta{
		Key:       fullPath,
		Size:      int64(info.Size),
		ETag:      info.Digest,
		UpdatedAt: info.ModTime,
		Metadata:  make(map[string]string, len(info.Metadata)),
	}
	if info.Headers != nil {
		meta.ContentType = info.Headers.Get(headerContentType)
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}
	for k, v := range info.Metadata {
		meta.Metadata[k] = v
	}
	return meta
}

// Open streams the object's chunks
func (b *Backend) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	result, err := b.store.Get(ctx, fullPath)
	if err != nil {
		return nil, mapError("open", fullPath, err)
	}
	return result, nil
}

// URL returns nats://{bucket}/{path}
func (b *Backend) URL(fullPath string) string {
	return fmt.Sprintf("nats://%s/%s", b.bucket, fullPath)
}

func mapError(op, fullPath string, err error) error {
	switch {
	case errors.Is(err, jetstream.ErrObjectNotFound), errors.Is(err, jetstream.ErrBucketNotFound):
		return simplestorage.NotFound(backendName, op, fullPath, err)
	case errors.Is(err, nats.ErrPermissionViolation), errors.Is(err, nats.ErrAuthorization):
		return simplestorage.AccessDenied(backendName, op, fullPath, err)
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return simplestorage.Translate(backendName, op, fullPath, apiErr.Code, err)
	}
	return simplestorage.Unexpected(backendName, op, fullPath, err)
}
