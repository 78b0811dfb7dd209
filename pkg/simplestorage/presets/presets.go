package presets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/config"
	fsstorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/fs"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
)

// Configuration Presets
//
// This package provides easy-to-use configuration presets for common use cases.
// Presets eliminate boilerplate and provide sensible defaults while remaining customizable.

// NewDevelopment creates a service configured for local development.
//
// Features:
//   - Filesystem storage at ./dev-data/ (persistent across restarts)
//   - file:// URLs unless a URL prefix is given
//   - Debug logging
//
// Returns:
//   - Service instance
//   - Cleanup function (call with defer to remove the storage directory)
//   - Error if setup fails
//
// Example:
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simplestorage.Service, func(), error) {
	// Default configuration
	cfg := &devConfig{
		storageDir: "./dev-data",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	logger, err := config.NewLogger(config.LogConfig{Level: "debug", Format: "text"})
	if err != nil {
		return nil, nil, err
	}

	// Create filesystem storage
	fsBackend, err := fsstorage.New(fsstorage.Config{
		BaseDir:   cfg.storageDir,
		URLPrefix: cfg.urlPrefix,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := simplestorage.New(
		simplestorage.WithAdapter(fsBackend),
		simplestorage.WithContextPath(cfg.contextPath),
		simplestorage.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	// Cleanup function
	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}

	return svc, cleanup, nil
}

// NewTesting creates a service configured for unit and integration tests.
//
// Features:
//   - In-memory storage (fast, no disk I/O, isolated per test)
//   - Strong content cache, so handle content is never reclaimed mid-test
//   - Errors only in logs (cleaner test output)
//   - Optional fixtures stored before the service is returned
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    svc := presets.NewTesting(t, presets.WithTestFixtures(map[string]string{
//	        "greeting.txt": "hello",
//	    }))
//	    // Use service in test...
//	}
func NewTesting(t testing.TB, opts ...TestingOption) simplestorage.Service {
	t.Helper()

	// Default configuration
	cfg := &testConfig{}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	svc, err := simplestorage.New(
		simplestorage.WithAdapter(memorystorage.New()),
		simplestorage.WithContextPath(cfg.contextPath),
		simplestorage.WithLogger(logger),
		simplestorage.WithCacheFactory(simplestorage.NewStrongCache),
	)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	ctx := context.Background()
	for key, content := range cfg.fixtures {
		if err := simplestorage.PutString(ctx, svc, key, content, nil); err != nil {
			t.Fatalf("failed to store fixture %s: %v", key, err)
		}
	}

	return svc
}

// NewProduction creates a service from the environment (see config.WithEnv)
// and refuses non-persistent storage.
//
// Required Environment Variables:
//   - STORAGE_BACKEND: "s3", "azure", "nats", "postgres" or "fs"
//   - The backend's settings, e.g. AWS_S3_BUCKET or AZURE_STORAGE_ACCOUNT
//
// Optional Environment Variables:
//   - STORAGE_CONTEXT_PATH, CDN_BASE_URL, REDIS_URL, LOG_LEVEL, LOG_FORMAT
//
// Example:
//
//	rt, err := presets.NewProduction(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
func NewProduction(ctx context.Context, opts ...config.Option) (*config.Runtime, error) {
	// Environment first, explicit options override it
	cfg, err := config.Load(append([]config.Option{config.WithEnv()}, opts...)...)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == config.BackendMemory {
		return nil, simplestorage.Misconfigured("presets", "backend", "production preset requires persistent storage (not memory)")
	}
	return cfg.Build(ctx, nil)
}

// devConfig holds development preset configuration
type devConfig struct {
	storageDir  string
	urlPrefix   string
	contextPath string
}

// testConfig holds testing preset configuration
type testConfig struct {
	contextPath string
	fixtures    map[string]string
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevURLPrefix serves development files from a local HTTP prefix
func WithDevURLPrefix(prefix string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.urlPrefix = prefix
	}
}

// WithDevContextPath sets the context path for development keys
func WithDevContextPath(contextPath string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.contextPath = contextPath
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestContextPath sets the context path for test keys
func WithTestContextPath(contextPath string) TestingOption {
	return func(cfg *testConfig) {
		cfg.contextPath = contextPath
	}
}

// WithTestFixtures stores key/content pairs before the service is returned
func WithTestFixtures(fixtures map[string]string) TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = fixtures
	}
}

// testWriter routes log output through t.Log
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
