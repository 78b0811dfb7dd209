package simplestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidKey indicates a blank key
var ErrInvalidKey = errors.New("key is required")

// service implements the Service interface
type service struct {
	adapter      Adapter
	contextPath  string
	defaults     Attributes
	logger       *slog.Logger
	eventSink    EventSink
	urls         URLStrategy
	cacheFactory CacheFactory
	tier         ContentTier
	registerer   prometheus.Registerer
	metrics      *serviceMetrics
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithAdapter sets the storage backend
func WithAdapter(adapter Adapter) Option {
	return func(s *service) {
		s.adapter = adapter
	}
}

// WithContextPath sets the prefix applied to every key
func WithContextPath(contextPath string) Option {
	return func(s *service) {
		s.contextPath = contextPath
	}
}

// WithDefaultAttributes sets attributes merged under every put. Values
// supplied to Put win.
func WithDefaultAttributes(attrs Attributes) Option {
	return func(s *service) {
		s.defaults = attrs.Clone()
	}
}

// WithLogger sets the logger used for unexpected failures and events
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithURLStrategy overrides the adapter's URL template
func WithURLStrategy(strategy URLStrategy) Option {
	return func(s *service) {
		s.urls = strategy
	}
}

// WithCacheFactory sets the content cell created for each handle
func WithCacheFactory(factory CacheFactory) Option {
	return func(s *service) {
		s.cacheFactory = factory
	}
}

// WithContentTier adds a shared content cache consulted before the backend
func WithContentTier(tier ContentTier) Option {
	return func(s *service) {
		s.tier = tier
	}
}

// WithMetrics registers service metrics on reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *service) {
		s.registerer = reg
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger:       slog.Default(),
		eventSink:    NewNoopEventSink(),
		cacheFactory: NewWeakCache,
	}

	for _, option := range options {
		option(s)
	}

	if s.adapter == nil {
		return nil, Misconfigured("service", "adapter", "storage adapter is required")
	}
	if s.urls == nil {
		s.urls = adapterURLs{s.adapter}
	}

	m, err := newServiceMetrics(s.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	s.metrics = m

	return s, nil
}

type adapterURLs struct {
	adapter Adapter
}

func (a adapterURLs) URL(fullPath string) string {
	return a.adapter.URL(fullPath)
}

func (s *service) ready() error {
	if s == nil || s.adapter == nil {
		return Misconfigured("service", "adapter", "no storage adapter connected")
	}
	return nil
}

func (s *service) Backend() string {
	if s == nil || s.adapter == nil {
		return ""
	}
	return s.adapter.Name()
}

func (s *service) FullPath(key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", &StorageError{Backend: s.adapter.Name(), Op: "normalize", Key: key, Kind: KindUnexpected, Err: ErrInvalidKey}
	}
	return s.adapter.NormalizeKey(s.contextPath, key), nil
}

// fail classifies err, records it, and logs unexpected failures.
func (s *service) fail(op, key string, err error) error {
	err = Unexpected(s.adapter.Name(), op, key, err)
	s.metrics.observe(s.adapter.Name(), op, err)
	if KindOf(err) == KindUnexpected && !errors.Is(err, context.Canceled) {
		s.logger.Error("Unexpected storage failure", "backend", s.adapter.Name(), "op", op, "key", key, "err", err)
	}
	return err
}

func (s *service) mergeAttributes(attrs Attributes) Attributes {
	merged := make(Attributes, len(s.defaults)+len(attrs))
	put := func(k, v string) {
		if IsReserved(k) || strings.EqualFold(k, AttrFilename) {
			k = strings.ToLower(k)
		}
		merged[k] = v
	}
	for k, v := range s.defaults {
		put(k, v)
	}
	for k, v := range attrs {
		put(k, v)
	}
	return merged
}

func (s *service) Put(ctx context.Context, key string, content io.Reader, attrs Attributes) error {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return err
	}
	if content == nil {
		return s.fail("put", key, errors.New("content is required"))
	}

	merged := s.mergeAttributes(attrs)
	if err := s.adapter.Put(ctx, fullPath, content, merged); err != nil {
		return s.fail("put", key, err)
	}
	s.metrics.observe(s.adapter.Name(), "put", nil)

	if err := s.eventSink.ObjectStored(ctx, key, merged); err != nil {
		s.logger.Warn("Event sink failed", "event", "stored", "key", key, "err", err)
	}
	return nil
}

func (s *service) Get(ctx context.Context, key string) (*Object, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return nil, err
	}
	meta, err := s.adapter.GetMeta(ctx, fullPath)
	if err != nil {
		return nil, s.fail("get", key, err)
	}
	s.metrics.observe(s.adapter.Name(), "get", nil)
	return newObject(s, key, fullPath, meta), nil
}

func (s *service) GetMeta(ctx context.Context, key string) (*ObjectMeta, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return nil, err
	}
	meta, err := s.adapter.GetMeta(ctx, fullPath)
	if err != nil {
		return nil, s.fail("get_meta", key, err)
	}
	s.metrics.observe(s.adapter.Name(), "get_meta", nil)
	return meta, nil
}

func (s *service) Remove(ctx context.Context, key string) error {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return err
	}
	if err := s.adapter.Remove(ctx, fullPath); err != nil {
		return s.fail("remove", key, err)
	}
	s.metrics.observe(s.adapter.Name(), "remove", nil)

	if err := s.eventSink.ObjectRemoved(ctx, key); err != nil {
		s.logger.Warn("Event sink failed", "event", "removed", "key", key, "err", err)
	}
	return nil
}

func (s *service) GetURL(key string) (string, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return "", err
	}
	return s.urls.URL(fullPath), nil
}

func (s *service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, key, fullPath)
}

func (s *service) open(ctx context.Context, key, fullPath string) (io.ReadCloser, error) {
	rc, err := s.adapter.Open(ctx, fullPath)
	if err != nil {
		return nil, s.fail("open", key, err)
	}
	s.metrics.observe(s.adapter.Name(), "open", nil)
	return rc, nil
}

// fetchContent reads the full content for a handle, consulting the shared
// tier when the handle observed a version.
func (s *service) fetchContent(ctx context.Context, o *Object) ([]byte, error) {
	tierKey := ""
	if s.tier != nil && o.meta.ETag != "" {
		tierKey = o.fullPath + "@" + o.meta.ETag
		data, ok, err := s.tier.Get(ctx, tierKey)
		if err != nil {
			s.logger.Warn("Content tier read failed", "key", o.key, "err", err)
		} else if ok {
			s.metrics.cacheEvent(cacheTierHit)
			return data, nil
		}
	}

	rc, err := s.open(ctx, o.key, o.fullPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, s.fail("read", o.key, err)
	}

	if tierKey != "" {
		if err := s.tier.Set(ctx, tierKey, data); err != nil {
			s.logger.Warn("Content tier write failed", "key", o.key, "err", err)
		}
	}
	return data, nil
}
