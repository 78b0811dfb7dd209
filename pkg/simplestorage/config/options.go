package config

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WithBackend selects the storage backend type
func WithBackend(backend string) Option {
	return func(c *Config) error {
		if backend == "" {
			return fmt.Errorf("storage backend cannot be empty")
		}
		c.Backend = backend
		return nil
	}
}

// WithContextPath sets the prefix joined in front of every key
func WithContextPath(contextPath string) Option {
	return func(c *Config) error {
		c.ContextPath = contextPath
		return nil
	}
}

// WithDefaultAttributes sets attributes merged under caller attributes on every put
func WithDefaultAttributes(attrs map[string]string) Option {
	return func(c *Config) error {
		if c.DefaultAttributes == nil {
			c.DefaultAttributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			c.DefaultAttributes[k] = v
		}
		return nil
	}
}

// WithFilesystemStorage selects filesystem storage rooted at baseDir
func WithFilesystemStorage(baseDir, urlPrefix string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Backend = BackendFS
		c.FS = FSConfig{BaseDir: baseDir, URLPrefix: urlPrefix}
		return nil
	}
}

// WithS3Storage selects S3 storage with static credentials.
// Empty credentials fall back to the AWS default credential chain.
func WithS3Storage(bucket, region, accessKeyID, secretAccessKey string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		c.Backend = BackendS3
		c.S3.Bucket = bucket
		if region != "" {
			c.S3.Region = region
		}
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points S3 storage at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *Config) error {
		c.S3.Endpoint = endpoint
		c.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithAzureStorage selects Azure Blob storage
func WithAzureStorage(protocol, accountName, accountKey, container string) Option {
	return func(c *Config) error {
		if accountName == "" || accountKey == "" {
			return fmt.Errorf("azure account name and key cannot be empty")
		}
		c.Backend = BackendAzure
		if protocol != "" {
			c.Azure.Protocol = protocol
		}
		c.Azure.AccountName = accountName
		c.Azure.AccountKey = accountKey
		c.Azure.Container = container
		return nil
	}
}

// WithAzurePublicAccess creates the container with container-level public read access
func WithAzurePublicAccess(public bool) Option {
	return func(c *Config) error {
		c.Azure.PublicAccess = public
		return nil
	}
}

// WithNATSStorage selects NATS JetStream object store storage
func WithNATSStorage(url, bucket string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return fmt.Errorf("NATS bucket cannot be empty")
		}
		c.Backend = BackendNATS
		if url != "" {
			c.NATS.URL = url
		}
		c.NATS.Bucket = bucket
		return nil
	}
}

// WithPostgresStorage selects PostgreSQL storage
func WithPostgresStorage(databaseURL, table string) Option {
	return func(c *Config) error {
		if databaseURL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.Backend = BackendPostgres
		c.Postgres.DatabaseURL = databaseURL
		if table != "" {
			c.Postgres.Table = table
		}
		return nil
	}
}

// WithRedisTier enables the shared Redis content tier
func WithRedisTier(url string, ttl time.Duration) Option {
	return func(c *Config) error {
		if url == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
		c.Redis.URL = url
		if ttl > 0 {
			c.Redis.TTL = ttl
		}
		return nil
	}
}

// WithCDN makes URLs point at a CDN instead of the backend
func WithCDN(baseURL string) Option {
	return func(c *Config) error {
		c.CDNBaseURL = baseURL
		return nil
	}
}

// WithMetrics registers service metrics with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Config) error {
		c.Registerer = reg
		return nil
	}
}

// WithLogging sets log level and format
func WithLogging(level, format string) Option {
	return func(c *Config) error {
		if level != "" {
			c.Log.Level = level
		}
		if format != "" {
			c.Log.Format = format
		}
		return nil
	}
}
