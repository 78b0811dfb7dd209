package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	redistier "github.com/tendant/simple-storage/pkg/simplestorage/cache/redis"
	azurestorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/azure"
	fsstorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/fs"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
	natsstorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/nats"
	pgstorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/postgres"
	s3storage "github.com/tendant/simple-storage/pkg/simplestorage/storage/s3"
	"github.com/tendant/simple-storage/pkg/simplestorage/urlstrategy"
)

// Supported backend types
const (
	BackendMemory   = "memory"
	BackendFS       = "fs"
	BackendS3       = "s3"
	BackendAzure    = "azure"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Backend: BackendMemory,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Azure: AzureConfig{
			Protocol: "https",
		},
		NATS: NATSConfig{
			URL: "nats://127.0.0.1:4222",
		},
		Postgres: PostgresConfig{
			Table: pgstorage.DefaultTable,
		},
		Redis: RedisConfig{
			TTL: redistier.DefaultTTL,
		},
	}
}

// Config represents the configuration of a storage service. Fields carry
// cleanenv tags; see WithEnv.
type Config struct {
	Backend     string `env:"STORAGE_BACKEND"`      // memory, fs, s3, azure, nats, postgres
	ContextPath string `env:"STORAGE_CONTEXT_PATH"` // Prefix joined in front of every key
	CDNBaseURL  string `env:"CDN_BASE_URL"`         // Optional; URLs point at the CDN instead of the backend

	DefaultAttributes map[string]string // Merged under caller attributes on every put

	Log      LogConfig
	FS       FSConfig
	S3       S3Config
	Azure    AzureConfig
	NATS     NATSConfig
	Postgres PostgresConfig
	Redis    RedisConfig

	Registerer prometheus.Registerer // Optional; enables metrics
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"`  // debug, info, warn, error
	Format string `env:"LOG_FORMAT"` // text (tint) or json
}

type FSConfig struct {
	BaseDir   string `env:"FS_BASE_DIR"`
	URLPrefix string `env:"FS_URL_PREFIX"`
}

type S3Config struct {
	Region          string `env:"AWS_S3_REGION"`
	Bucket          string `env:"AWS_S3_BUCKET"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE"`
	EnableSSE       bool   `env:"AWS_S3_ENABLE_SSE"`
	SSEAlgorithm    string `env:"AWS_S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `env:"AWS_S3_SSE_KMS_KEY_ID"`
}

type AzureConfig struct {
	Protocol     string `env:"AZURE_STORAGE_PROTOCOL"`
	AccountName  string `env:"AZURE_STORAGE_ACCOUNT"`
	AccountKey   string `env:"AZURE_STORAGE_KEY"`
	Container    string `env:"AZURE_STORAGE_CONTAINER"`
	Endpoint     string `env:"AZURE_STORAGE_ENDPOINT"`
	PublicAccess bool   `env:"AZURE_STORAGE_PUBLIC"`
}

type NATSConfig struct {
	URL    string `env:"NATS_URL"`
	Bucket string `env:"NATS_BUCKET"`
}

type PostgresConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Table       string `env:"PG_TABLE"`
}

type RedisConfig struct {
	URL string        `env:"REDIS_URL"` // Optional; enables the shared content tier
	TTL time.Duration `env:"REDIS_TTL"`
}

func invalid(field, msg string) error {
	return simplestorage.Misconfigured("config", field, msg)
}

// Validate validates the configuration without touching any backend
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFS:
		if strings.TrimSpace(c.FS.BaseDir) == "" {
			return invalid("fs.base_dir", "base directory is required for fs storage")
		}
	case BackendS3:
		if strings.TrimSpace(c.S3.Bucket) == "" {
			return invalid("s3.bucket", "bucket is required for s3 storage")
		}
	case BackendAzure:
		if c.Azure.AccountName == "" || c.Azure.AccountKey == "" {
			return invalid("azure.account", "account name and key are required for azure storage")
		}
		if strings.TrimSpace(c.Azure.Container) == "" {
			return invalid("azure.container", "container is required for azure storage")
		}
	case BackendNATS:
		if c.NATS.Bucket == "" {
			return invalid("nats.bucket", "bucket is required for nats storage")
		}
	case BackendPostgres:
		if c.Postgres.DatabaseURL == "" {
			return invalid("postgres.database_url", "database url is required for postgres storage")
		}
	default:
		return invalid("backend", fmt.Sprintf("unsupported storage backend %q", c.Backend))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid("log.level", err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", fmt.Sprintf("log format must be 'text' or 'json', got: %s", c.Log.Format))
	}
	if c.Redis.TTL < 0 {
		return invalid("redis.ttl", "ttl cannot be negative")
	}
	return nil
}

// Runtime is a built service together with the resources it holds open
type Runtime struct {
	Service simplestorage.Service
	closers []func() error
}

// Close releases connections opened by Build
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates a Service from the configuration. The adapter
// connects eagerly, creating its container when missing.
func (c *Config) BuildService(ctx context.Context, logger *slog.Logger) (simplestorage.Service, error) {
	rt, err := c.Build(ctx, logger)
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

// Build is BuildService that also returns the open resources for shutdown.
// A nil logger is built from the Log settings.
func (c *Config) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		var err error
		if logger, err = NewLogger(c.Log); err != nil {
			return nil, err
		}
	}
	rt := &Runtime{}

	adapter, err := c.buildAdapter(ctx, logger, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Backend, err)
	}

	options := []simplestorage.Option{
		simplestorage.WithAdapter(adapter),
		simplestorage.WithContextPath(c.ContextPath),
		simplestorage.WithLogger(logger),
	}
	if len(c.DefaultAttributes) > 0 {
		options = append(options, simplestorage.WithDefaultAttributes(c.DefaultAttributes))
	}
	if c.CDNBaseURL != "" {
		options = append(options, simplestorage.WithURLStrategy(urlstrategy.NewCDNStrategy(c.CDNBaseURL)))
	}
	if c.Redis.URL != "" {
		tier, err := redistier.New(ctx, redistier.Config{RedisURL: c.Redis.URL, TTL: c.Redis.TTL})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, tier.Close)
		options = append(options, simplestorage.WithContentTier(tier))
	}
	if c.Registerer != nil {
		options = append(options, simplestorage.WithMetrics(c.Registerer))
	}

	svc, err := simplestorage.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

func (c *Config) buildAdapter(ctx context.Context, logger *slog.Logger, rt *Runtime) (simplestorage.Adapter, error) {
	switch c.Backend {
	case BackendMemory:
		return memorystorage.New(), nil

	case BackendFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.FS.BaseDir,
			URLPrefix: c.FS.URLPrefix,
			Logger:    logger,
		})

	case BackendS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
			EnableSSE:       c.S3.EnableSSE,
			SSEAlgorithm:    c.S3.SSEAlgorithm,
			SSEKMSKeyID:     c.S3.SSEKMSKeyID,
			Logger:          logger,
		})

	case BackendAzure:
		return azurestorage.New(ctx, azurestorage.Config{
			Protocol:     c.Azure.Protocol,
			AccountName:  c.Azure.AccountName,
			AccountKey:   c.Azure.AccountKey,
			Container:    c.Azure.Container,
			Endpoint:     c.Azure.Endpoint,
			PublicAccess: c.Azure.PublicAccess,
			Logger:       logger,
		})

	case BackendNATS:
		backend, err := natsstorage.New(ctx, natsstorage.Config{
			URL:    c.NATS.URL,
			Bucket: c.NATS.Bucket,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, backend.Close)
		return backend, nil

	case BackendPostgres:
		backend, err := pgstorage.New(ctx, pgstorage.Config{
			DatabaseURL: c.Postgres.DatabaseURL,
			Table:       c.Postgres.Table,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error {
			backend.Close()
			return nil
		})
		return backend, nil

	default:
		return nil, invalid("backend", fmt.Sprintf("unsupported storage backend %q", c.Backend))
	}
}
