package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const (
	backendName = "fs"
	metaDirName = ".simplestorage-meta"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir   string       // Base directory for storing files
	URLPrefix string       // Optional URL prefix; file:// URLs are built when empty
	Logger    *slog.Logger // Optional; defaults to slog.Default()
}

// Backend is a filesystem implementation of the simplestorage.Adapter interface.
// Content lives at BaseDir/<path>; attributes live in a CBOR sidecar under
// BaseDir/.simplestorage-meta/<path>.cbor.
type Backend struct {
	mu        sync.RWMutex
	baseDir   string
	urlPrefix string
}

// sidecar is the persisted attribute record
type sidecar struct {
	ContentType string            `cbor:"content_type"`
	Metadata    map[string]string `cbor:"metadata"`
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if strings.TrimSpace(config.BaseDir) == "" {
		return nil, simplestorage.Misconfigured(backendName, "base_dir", "base directory is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, &simplestorage.ConfigError{Backend: backendName, Field: "base_dir", Msg: "cannot resolve path", Err: err}
	}

	if _, err := os.Stat(baseDir); errors.Is(err, iofs.ErrNotExist) {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
		logger.Info("Created storage directory", "base_dir", baseDir)
	} else if err != nil {
		return nil, mapError("connect", baseDir, err)
	}

	return &Backend{
		baseDir:   baseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

func (b *Backend) Name() string { return backendName }

// NormalizeKey additionally cleans the path so it cannot escape the base
// directory.
func (b *Backend) NormalizeKey(contextPath, key string) string {
	fullPath := simplestorage.NormalizeKey(contextPath, key)
	return strings.TrimPrefix(path.Clean("/"+fullPath), "/")
}

func (b *Backend) contentPath(fullPath string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(fullPath))
}

func (b *Backend) sidecarPath(fullPath string) string {
	return filepath.Join(b.baseDir, metaDirName, filepath.FromSlash(fullPath)+".cbor")
}

// writeTemp writes r to a temporary file next to dst and returns its path
func writeTemp(dst string, r io.Reader) (string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	file, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// Put writes content and replaces the attribute sidecar. Both are written to
// temporary files before either is renamed into place, so a failed write
// leaves the previous object untouched.
func (b *Backend) Put(ctx context.Context, fullPath string, content io.Reader, attrs simplestorage.Attributes) error {
	contentType, metadata := simplestorage.SplitAttributes(attrs)
	encoded, err := cbor.Marshal(sidecar{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return simplestorage.Unexpected(backendName, "put", fullPath, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	contentPath, sidecarPath := b.contentPath(fullPath), b.sidecarPath(fullPath)

	sidecarTmp, err := writeTemp(sidecarPath, bytes.NewReader(encoded))
	if err != nil {
		return mapError("put", fullPath, err)
	}
	contentTmp, err := writeTemp(contentPath, content)
	if err != nil {
		os.Remove(sidecarTmp)
		return mapError("put", fullPath, err)
	}
	if err := os.Rename(contentTmp, contentPath); err != nil {
		os.Remove(contentTmp)
		os.Remove(sidecarTmp)
		return mapError("put", fullPath, err)
	}
	if err := os.Rename(sidecarTmp, sidecarPath); err != nil {
		// New content must not be served with the previous attributes
		os.Remove(sidecarTmp)
		os.Remove(contentPath)
		return mapError("put", fullPath, err)
	}
	return nil
}

// Remove deletes content and sidecar; missing files are ignored
func (b *Backend) Remove(ctx context.Context, fullPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range []string{b.contentPath(fullPath), b.sidecarPath(fullPath)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return mapError("remove", fullPath, err)
		}
	}
	return nil
}

// GetMeta retrieves metadata for an object in the filesystem
func (b *Backend) GetMeta(ctx context.Context, fullPath string) (*simplestorage.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	filePath := b.contentPath(fullPath)
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, mapError("get_meta", fullPath, err)
	}
	if info.IsDir() {
		return nil, simplestorage.NotFound(backendName, "get_meta", fullPath, errors.New("path is a directory"))
	}

	var sc sidecar
	raw, err := os.ReadFile(b.sidecarPath(fullPath))
	switch {
	case err == nil:
		if err := cbor.Unmarshal(raw, &sc); err != nil {
			return nil, simplestorage.Unexpected(backendName, "get_meta", fullPath, err)
		}
	case errors.Is(err, iofs.ErrNotExist):
		// Files placed by other tools have no sidecar
		sc.ContentType = detectContentType(filePath)
	default:
		return nil, mapError("get_meta", fullPath, err)
	}
	if sc.ContentType == "" {
		sc.ContentType = "application/octet-stream"
	}
	if sc.Metadata == nil {
		sc.Metadata = map[string]string{}
	}

	return &simplestorage.ObjectMeta{
		Key:         fullPath,
		ContentType: sc.ContentType,
		Size:        info.Size(),
		ETag:        fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()),
		UpdatedAt:   info.ModTime(),
		Metadata:    sc.Metadata,
	}, nil
}

func detectContentType(filePath string) string {
	file, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer file.Close()
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return http.DetectContentType(buffer[:n])
}

// Open opens the content file for streaming
func (b *Backend) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	file, err := os.Open(b.contentPath(fullPath))
	if err != nil {
		return nil, mapError("open", fullPath, err)
	}
	return file, nil
}

// URL returns urlPrefix/<path>, or a file:// URL without a prefix
func (b *Backend) URL(fullPath string) string {
	if b.urlPrefix != "" {
		return b.urlPrefix + "/" + fullPath
	}
	return "file://" + filepath.ToSlash(b.contentPath(fullPath))
}

func mapError(op, fullPath string, err error) error {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return simplestorage.NotFound(backendName, op, fullPath, err)
	case errors.Is(err, iofs.ErrPermission):
		return simplestorage.AccessDenied(backendName, op, fullPath, err)
	default:
		return simplestorage.Unexpected(backendName, op, fullPath, err)
	}
}
