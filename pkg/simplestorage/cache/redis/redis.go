package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const (
	DefaultPrefix        = "simplestorage:content:"
	DefaultTTL           = time.Hour
	DefaultMaxObjectSize = 4 << 20
)

// Config options for the Redis content tier
type Config struct {
	RedisURL      string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL           time.Duration // Entry lifetime, defaults to DefaultTTL
	Prefix        string        // Key prefix, defaults to DefaultPrefix
	MaxObjectSize int           // Larger contents are not cached, defaults to DefaultMaxObjectSize
}

// Tier is a simplestorage.ContentTier backed by Redis. Keys carry the
// object version, so entries only ever expire; they are never invalidated.
type Tier struct {
	client  *goredis.Client
	ttl     time.Duration
	prefix  string
	maxSize int
}

var _ simplestorage.ContentTier = (*Tier)(nil)

// New parses the URL and checks the connection before returning
func New(ctx context.Context, cfg Config) (*Tier, error) {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, &simplestorage.ConfigError{Backend: "redis", Field: "redis_url", Msg: "invalid redis url", Err: err}
	}
	client := goredis.NewClient(opts)

	// Fail-fast connection check
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *goredis.Client, cfg Config) *Tier {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
	return &Tier{
		client:  client,
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
		maxSize: cfg.MaxObjectSize,
	}
}

func (t *Tier) cacheKey(key string) string {
	return t.prefix + key
}

// Get returns the cached content; a missing entry is (nil, false, nil)
func (t *Tier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := t.client.Get(ctx, t.cacheKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores content unless it exceeds the size limit
func (t *Tier) Set(ctx context.Context, key string, data []byte) error {
	if len(data) > t.maxSize {
		return nil
	}
	return t.client.Set(ctx, t.cacheKey(key), data, t.ttl).Err()
}

// Close closes the Redis client
func (t *Tier) Close() error {
	return t.client.Close()
}
