package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Property keys accepted by WithProperties
const (
	PropBackend     = "storage.backend"
	PropContextPath = "storage.context-path"
	PropCDNBaseURL  = "storage.cdn.base-url"

	PropAzureProtocol    = "storage.azure.protocol"
	PropAzureAccountName = "storage.azure.account.name"
	PropAzureAccountKey  = "storage.azure.account.key"
	PropAzureBucket      = "storage.azure.bucket"
	PropAzureEndpoint    = "storage.azure.endpoint"
	PropAzurePublic      = "storage.azure.public"

	PropS3Bucket    = "storage.s3.bucket"
	PropS3Region    = "storage.s3.region"
	PropS3AccessKey = "storage.s3.access-key"
	PropS3SecretKey = "storage.s3.secret-key"
	PropS3Endpoint  = "storage.s3.endpoint"
	PropS3PathStyle = "storage.s3.path-style"

	PropFSBaseDir   = "storage.fs.base-dir"
	PropFSURLPrefix = "storage.fs.url-prefix"

	PropNATSURL    = "storage.nats.url"
	PropNATSBucket = "storage.nats.bucket"

	PropPostgresURL   = "storage.postgres.url"
	PropPostgresTable = "storage.postgres.table"

	PropRedisURL = "storage.redis.url"
	PropRedisTTL = "storage.redis.ttl"
)

// WithProperties applies a flat map of dotted property keys, the format
// used by properties files. Keys outside the storage namespace are
// ignored. When storage.backend is absent and the map configures exactly
// one backend, that backend is selected.
func WithProperties(props map[string]string) Option {
	return func(c *Config) error {
		strs := map[string]*string{
			PropContextPath:      &c.ContextPath,
			PropCDNBaseURL:       &c.CDNBaseURL,
			PropAzureProtocol:    &c.Azure.Protocol,
			PropAzureAccountName: &c.Azure.AccountName,
			PropAzureAccountKey:  &c.Azure.AccountKey,
			PropAzureBucket:      &c.Azure.Container,
			PropAzureEndpoint:    &c.Azure.Endpoint,
			PropS3Bucket:         &c.S3.Bucket,
			PropS3Region:         &c.S3.Region,
			PropS3AccessKey:      &c.S3.AccessKeyID,
			PropS3SecretKey:      &c.S3.SecretAccessKey,
			PropS3Endpoint:       &c.S3.Endpoint,
			PropFSBaseDir:        &c.FS.BaseDir,
			PropFSURLPrefix:      &c.FS.URLPrefix,
			PropNATSURL:          &c.NATS.URL,
			PropNATSBucket:       &c.NATS.Bucket,
			PropPostgresURL:      &c.Postgres.DatabaseURL,
			PropPostgresTable:    &c.Postgres.Table,
			PropRedisURL:         &c.Redis.URL,
		}
		bools := map[string]*bool{
			PropAzurePublic: &c.Azure.PublicAccess,
			PropS3PathStyle: &c.S3.UsePathStyle,
		}

		backends := map[string]bool{}
		for key, raw := range props {
			value := strings.TrimSpace(raw)
			if backend, ok := backendOf(key); ok {
				backends[backend] = true
			}

			if dst, ok := strs[key]; ok {
				*dst = value
				continue
			}
			if dst, ok := bools[key]; ok {
				parsed, err := strconv.ParseBool(value)
				if err != nil {
					return invalid(key, fmt.Sprintf("invalid boolean %q", value))
				}
				*dst = parsed
				continue
			}
			if key == PropRedisTTL {
				ttl, err := time.ParseDuration(value)
				if err != nil {
					return invalid(key, fmt.Sprintf("invalid duration %q", value))
				}
				c.Redis.TTL = ttl
			}
		}

		if backend, ok := props[PropBackend]; ok {
			c.Backend = strings.TrimSpace(backend)
		} else if len(backends) == 1 {
			for backend := range backends {
				c.Backend = backend
			}
		}
		return nil
	}
}

// backendOf reports the backend a storage.<backend>.* key configures
func backendOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "storage.")
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, ".")
	if !ok {
		return "", false
	}
	switch name {
	case BackendFS, BackendS3, BackendAzure, BackendNATS, BackendPostgres:
		return name, true
	}
	return "", false
}
