package simplestorage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Convenience functions for common put shapes. They keep the core Service
// interface small.

// PutBytes stores data under key and records its content-length.
func PutBytes(ctx context.Context, svc Service, key string, data []byte, attrs Attributes) error {
	merged := attrs.Clone()
	merged[AttrContentLength] = strconv.Itoa(len(data))
	return svc.Put(ctx, key, bytes.NewReader(data), merged)
}

// PutString stores s under key and records its content-length.
func PutString(ctx context.Context, svc Service, key, s string, attrs Attributes) error {
	merged := attrs.Clone()
	merged[AttrContentLength] = strconv.Itoa(len(s))
	return svc.Put(ctx, key, strings.NewReader(s), merged)
}

// PutFile streams the file at path to key. The filename attribute defaults
// to the file's base name.
func PutFile(ctx context.Context, svc Service, key, path string, attrs Attributes) error {
	f, err := os.Open(path)
	if err != nil {
		return Unexpected(svc.Backend(), "put", key, err)
	}
	defer f.Close()

	merged := attrs.Clone()
	if _, ok := merged.Get(AttrFilename); !ok {
		merged[AttrFilename] = filepath.Base(path)
	}
	if info, err := f.Stat(); err == nil {
		merged[AttrContentLength] = strconv.FormatInt(info.Size(), 10)
	}
	return svc.Put(ctx, key, f, merged)
}

// Save stores data under key and returns a handle for it.
func Save(ctx context.Context, svc Service, key string, data []byte, attrs Attributes) (*Object, error) {
	if err := PutBytes(ctx, svc, key, data, attrs); err != nil {
		return nil, err
	}
	return svc.Get(ctx, key)
}
