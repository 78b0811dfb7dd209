package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// WithEnv applies environment variable overrides using cleanenv. Only
// variables that are set override the current values.
//
// Core:
//
//	STORAGE_BACKEND       memory (default), fs, s3, azure, nats, postgres
//	STORAGE_CONTEXT_PATH  prefix joined in front of every key
//	CDN_BASE_URL          serve URLs from a CDN
//	LOG_LEVEL, LOG_FORMAT debug|info|warn|error, text|json
//
// Backends:
//
//	FS_BASE_DIR, FS_URL_PREFIX
//	AWS_S3_BUCKET, AWS_S3_REGION, AWS_S3_ENDPOINT, AWS_S3_USE_PATH_STYLE,
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_S3_ENABLE_SSE, ...
//	AZURE_STORAGE_PROTOCOL, AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY,
//	AZURE_STORAGE_CONTAINER, AZURE_STORAGE_ENDPOINT, AZURE_STORAGE_PUBLIC
//	NATS_URL, NATS_BUCKET
//	DATABASE_URL, PG_TABLE
//
// Shared content tier:
//
//	REDIS_URL, REDIS_TTL
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return &simplestorage.ConfigError{Backend: "config", Field: "env", Msg: "cannot read environment", Err: err}
		}
		return nil
	}
}

// EnvUsage returns a description of every supported environment variable
func EnvUsage() string {
	var cfg Config
	usage, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return usage
}
