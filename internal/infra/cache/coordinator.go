package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/metrics"
)

// ComputeFunc produces the payload for a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Stats is a point-in-time view of coordinator counters.
type Stats struct {
	Hits           int64
	Misses         int64
	SharedComputes int64
}

// evictionGuarded is implemented by backends whose eviction must skip
// in-flight keys.
type evictionGuarded interface {
	SetEvictionGuard(func(key string) bool)
}

// Coordinator fronts a cache backend with single-flight deduplication:
// at most one computation is in flight per key, and every concurrent
// caller for that key receives the one computation's result. Backend
// failures are logged and treated as misses, never surfaced.
type Coordinator struct {
	backend Backend
	group   singleflight.Group
	ttl     time.Duration
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}

	hits   atomic.Int64
	misses atomic.Int64
	shared atomic.Int64
}

// NewCoordinator wraps a backend with a default entry TTL. If the
// backend supports eviction guarding, in-flight keys are protected.
func NewCoordinator(backend Backend, ttl time.Duration, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		backend:  backend,
		ttl:      ttl,
		log:      log,
		inflight: make(map[string]struct{}),
	}
	if g, ok := backend.(evictionGuarded); ok {
		g.SetEvictionGuard(c.isInFlight)
	}
	return c
}

// GetOrCompute returns the payload for key, invoking compute at most
// once across all concurrent callers on a miss. Nothing is cached on
// failure, so a later call may retry. The bool reports a cache hit.
func (c *Coordinator) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) ([]byte, bool, error) {
	if val, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		metrics.CacheHits.WithLabelValues(c.backend.Name()).Inc()
		return val, true, nil
	}

	c.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(c.backend.Name()).Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		// The flight is shared by every waiter, so it must not die with
		// the caller that happened to start it. Values from the initiating
		// ctx still apply; only its cancellation is severed. An abandoned
		// flight runs to completion bounded by the compute's own deadline.
		flightCtx := context.WithoutCancel(ctx)

		// Double-check: another flight may have stored the value between
		// our lookup and this closure running.
		if val, ok := c.lookup(flightCtx, key); ok {
			return val, nil
		}

		c.markInFlight(key)
		defer c.clearInFlight(key)

		val, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}

		if setErr := c.backend.Set(flightCtx, key, val, c.ttl); setErr != nil {
			c.log.Warn("cache set failed", "backend", c.backend.Name(), "error", setErr)
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		// The caller abandons the wait; the flight itself keeps running
		// for any remaining waiters.
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// Drop the failed flight so a subsequent call may retry.
			c.group.Forget(key)
			return nil, false, res.Err
		}
		if res.Shared {
			c.shared.Add(1)
			metrics.CacheSharedComputes.Inc()
		}
		return res.Val.([]byte), false, nil
	}
}

// Invalidate removes key from the backend.
func (c *Coordinator) Invalidate(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.log.Warn("cache delete failed", "backend", c.backend.Name(), "error", err)
	}
}

// Stats returns current counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		SharedComputes: c.shared.Load(),
	}
}

// Close closes the underlying backend.
func (c *Coordinator) Close() error {
	return c.backend.Close()
}

// lookup reads the backend, degrading backend errors to a miss.
func (c *Coordinator) lookup(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed, treating as miss",
			"backend", c.backend.Name(), "error", err)
		return nil, false
	}
	return val, ok
}

func (c *Coordinator) markInFlight(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key] = struct{}{}
}

func (c *Coordinator) clearInFlight(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

func (c *Coordinator) isInFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}
