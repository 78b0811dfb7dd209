package simplestorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/htmlindex"
)

const contentFlight = "content"

// Object is a stored blob observed at one point in time. Attributes are
// fetched when the handle is created and never refreshed; content is loaded
// on first access and kept in a reclaimable cell.
//
// Byte slices returned by an Object are shared with its cache and must not
// be modified.
type Object struct {
	svc      *service
	key      string
	fullPath string
	meta     *ObjectMeta
	attrs    Attributes

	cache ContentCache
	loads singleflight.Group

	mu     sync.Mutex
	loaded bool  // content was materialized at least once
	cause  error // set once a fetch fails; the handle is invalid from then on
}

func newObject(svc *service, key, fullPath string, meta *ObjectMeta) *Object {
	return &Object{
		svc:      svc,
		key:      key,
		fullPath: fullPath,
		meta:     meta,
		attrs:    meta.Attributes(),
		cache:    svc.cacheFactory(),
	}
}

// Key returns the caller-visible key.
func (o *Object) Key() string { return o.key }

// FullPath returns the path the backend operates on.
func (o *Object) FullPath() string { return o.fullPath }

// Attributes returns a copy of all attributes, reserved ones included.
func (o *Object) Attributes() Attributes { return o.attrs.Clone() }

// Attribute returns a single attribute value.
func (o *Object) Attribute(name string) (string, bool) { return o.attrs.Get(name) }

// Metadata returns a copy of the free-form metadata, without reserved
// attributes such as content-type.
func (o *Object) Metadata() map[string]string {
	out := make(map[string]string, len(o.meta.Metadata))
	for k, v := range o.meta.Metadata {
		if IsReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// ContentType returns the content type reported by the backend.
func (o *Object) ContentType() string { return o.meta.ContentType }

// URL returns the direct-access URL of the object.
func (o *Object) URL() string { return o.svc.urls.URL(o.fullPath) }

// Length prefers the content-length attribute, then the size of already
// materialized content. It never fetches content and reports 0 otherwise.
func (o *Object) Length() int64 {
	if n, ok := o.attrs.ContentLength(); ok {
		return n
	}
	if data, ok := o.cache.Load(); ok {
		return int64(len(data))
	}
	return 0
}

// Err returns the cause stored when a content fetch failed.
func (o *Object) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cause
}

// Valid reports whether no content fetch has failed.
func (o *Object) Valid() bool {
	return o.Err() == nil
}

// Bytes returns the object's content, fetching it on first access and again
// after the cache was reclaimed. Concurrent callers share one fetch; the
// fetch is not tied to any single caller, and each caller stops waiting
// when its own context is done.
func (o *Object) Bytes(ctx context.Context) ([]byte, error) {
	if err := o.Err(); err != nil {
		return nil, err
	}
	if data, ok := o.cache.Load(); ok {
		o.svc.metrics.cacheEvent(cacheHit)
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, o.abandoned(ctx)
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := o.loads.DoChan(contentFlight, func() (interface{}, error) {
		return o.load(fetchCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, o.abandoned(ctx)
	}
}

// abandoned reports a caller that stopped waiting. The handle stays valid.
func (o *Object) abandoned(ctx context.Context) error {
	return Unexpected(o.svc.adapter.Name(), "read", o.key, ctx.Err())
}

func (o *Object) load(ctx context.Context) ([]byte, error) {
	// A flight that finished between the caller's check and DoChan may
	// already have filled the cache or failed.
	if err := o.Err(); err != nil {
		return nil, err
	}
	if data, ok := o.cache.Load(); ok {
		return data, nil
	}

	o.mu.Lock()
	reclaimed := o.loaded
	o.mu.Unlock()
	if reclaimed {
		o.svc.metrics.cacheEvent(cacheReclaimed)
	} else {
		o.svc.metrics.cacheEvent(cacheMiss)
	}

	data, err := o.svc.fetchContent(ctx, o)
	if err != nil {
		o.mu.Lock()
		o.cause = err
		o.mu.Unlock()
		return nil, err
	}

	o.cache.Store(data)
	o.mu.Lock()
	o.loaded = true
	o.mu.Unlock()
	return data, nil
}

// String returns the content decoded as UTF-8.
func (o *Object) String(ctx context.Context) (string, error) {
	data, err := o.Bytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StringWithCharset decodes the content using the named charset, for
// example "iso-8859-1" or "shift_jis".
func (o *Object) StringWithCharset(ctx context.Context, charset string) (string, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	data, err := o.Bytes(ctx)
	if err != nil {
		return "", err
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s content: %w", charset, err)
	}
	return string(decoded), nil
}

// File writes the content to a new temporary file and returns its path.
// The caller owns the file.
func (o *Object) File(ctx context.Context) (string, error) {
	data, err := o.Bytes(ctx)
	if err != nil {
		return "", err
	}

	pattern := "sobj-*"
	if name, ok := o.attrs.Get(AttrFilename); ok && name != "" {
		pattern = "sobj-*-" + filepath.Base(name)
	} else if ext := filepath.Ext(o.fullPath); ext != "" {
		pattern = "sobj-*" + ext
	}

	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", o.svc.fail("file", o.key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", o.svc.fail("file", o.key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", o.svc.fail("file", o.key, err)
	}
	return f.Name(), nil
}

// Open returns a fresh backend stream. It neither uses nor fills the cache.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.svc.open(ctx, o.key, o.fullPath)
}
