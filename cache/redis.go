package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/techthiyanes/langtest/sample"
)

// RedisOptions configures the Redis-backed prediction cache.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// TTL is how long cached predictions live. Zero means 24h. Cached
	// outputs go stale when the model behind the endpoint changes, so
	// long-lived deployments should keep this bounded.
	TTL time.Duration

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration
}

// Redis implements Cache on go-redis/v9, for sharing predictions across
// harness processes that test the same model.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis prediction cache and verifies connectivity.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, ttl: opts.TTL}, nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (sample.Output, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return sample.Output{}, false, nil
		}
		return sample.Output{}, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	var out sample.Output
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// A corrupt entry behaves as a miss; the fresh prediction
		// overwrites it on the next Set.
		return sample.Output{}, false, nil
	}
	return out, true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, out sample.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal cached output: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
