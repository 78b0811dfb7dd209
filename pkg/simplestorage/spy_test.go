package simplestorage

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
)

type spyEntry struct {
	data        []byte
	contentType string
	metadata    map[string]string
	version     int
}

// spyAdapter is an in-memory Adapter that counts every call.
type spyAdapter struct {
	mu      sync.Mutex
	objects map[string]*spyEntry

	hideSize bool          // report Size -1 like providers without a length property
	gate     chan struct{} // when set, Open blocks until it is closed

	puts    atomic.Int64
	removes atomic.Int64
	metas   atomic.Int64
	opens   atomic.Int64
	urls    atomic.Int64
}

func newSpyAdapter() *spyAdapter {
	return &spyAdapter{objects: make(map[string]*spyEntry)}
}

func (s *spyAdapter) calls() int64 {
	return s.puts.Load() + s.removes.Load() + s.metas.Load() + s.opens.Load()
}

func (s *spyAdapter) Name() string { return "spy" }

func (s *spyAdapter) NormalizeKey(contextPath, key string) string {
	return NormalizeKey(contextPath, key)
}

func (s *spyAdapter) Put(ctx context.Context, fullPath string, content io.Reader, attrs Attributes) error {
	s.puts.Add(1)
	data, err := io.ReadAll(content)
	if err != nil {
		return Unexpected("spy", "put", fullPath, err)
	}
	contentType, metadata := SplitAttributes(attrs)

	s.mu.Lock()
	defer s.mu.Unlock()
	version := 1
	if prev, ok := s.objects[fullPath]; ok {
		version = prev.version + 1
	}
	s.objects[fullPath] = &spyEntry{data: data, contentType: contentType, metadata: metadata, version: version}
	return nil
}

func (s *spyAdapter) Remove(ctx context.Context, fullPath string) error {
	s.removes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, fullPath)
	return nil
}

func (s *spyAdapter) GetMeta(ctx context.Context, fullPath string) (*ObjectMeta, error) {
	s.metas.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[fullPath]
	if !ok {
		return nil, NotFound("spy", "get_meta", fullPath, nil)
	}
	metadata := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		metadata[k] = v
	}
	size := int64(len(e.data))
	if s.hideSize {
		size = -1
	}
	return &ObjectMeta{
		Key:         fullPath,
		ContentType: e.contentType,
		Size:        size,
		ETag:        "v" + strconv.Itoa(e.version),
		Metadata:    metadata,
	}, nil
}

func (s *spyAdapter) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	s.opens.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, Unexpected("spy", "open", fullPath, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, Unexpected("spy", "open", fullPath, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[fullPath]
	if !ok {
		return nil, NotFound("spy", "open", fullPath, nil)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (s *spyAdapter) URL(fullPath string) string {
	s.urls.Add(1)
	return "spy://bucket/" + fullPath
}

// recordingSink collects events
type recordingSink struct {
	mu      sync.Mutex
	stored  []string
	attrs   []Attributes
	removed []string
	err     error
}

func (r *recordingSink) ObjectStored(ctx context.Context, key string, attrs Attributes) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, key)
	r.attrs = append(r.attrs, attrs)
	return r.err
}

func (r *recordingSink) ObjectRemoved(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, key)
	return r.err
}

// mapTier is an in-process ContentTier
type mapTier struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
	failGet error
}

func newMapTier() *mapTier {
	return &mapTier{entries: make(map[string][]byte)}
}

func (m *mapTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet != nil {
		return nil, false, m.failGet
	}
	data, ok := m.entries[key]
	return data, ok, nil
}

func (m *mapTier) Set(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.entries[key] = data
	return nil
}
