// Package cache provides the content-addressed response cache: pluggable
// backends (memory LRU, redis, badger, layered) behind a single-flight
// coordinator that guarantees at most one in-flight computation per key.
package cache

import (
	"context"
	"time"
)

// Backend is a content-addressed store. Implementations may be
// memory-only, disk-backed, remote, or layered combinations.
type Backend interface {
	// Get returns the payload for key. The bool reports presence; an
	// expired entry is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the payload under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key if present.
	Delete(ctx context.Context, key string) error

	// Name identifies the backend in logs and metrics.
	Name() string

	// Close releases backend resources.
	Close() error
}
