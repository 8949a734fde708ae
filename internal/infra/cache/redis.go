package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds redis connection configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Redis is a remote cache backend shared across processes.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "mils:cache"
	}
	return &Redis{rdb: rdb, prefix: prefix}, nil
}

// Name identifies the backend.
func (r *Redis) Name() string { return "redis" }

func (r *Redis) cacheKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Get returns the payload for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return val, true, nil
}

// Set stores the payload under key with TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.cacheKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes key if present.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
