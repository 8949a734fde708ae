package cache

import (
	"context"
	"time"
)

// Layered checks a fast inner backend first and falls back to the outer
// one on miss, backfilling the inner layer. Writes go to both layers.
type Layered struct {
	inner       Backend // typically Memory
	outer       Backend // typically Redis or Badger
	backfillTTL time.Duration
}

// NewLayered combines two backends into a hybrid cache. backfillTTL
// bounds how long an outer hit lives in the inner layer; without it a
// near-expired outer entry would be pinned in memory past its lifetime.
func NewLayered(inner, outer Backend, backfillTTL time.Duration) *Layered {
	return &Layered{inner: inner, outer: outer, backfillTTL: backfillTTL}
}

// Name identifies the backend.
func (l *Layered) Name() string { return "layered" }

// Get checks the inner layer first, then the outer one. Outer hits are
// backfilled into the inner layer under backfillTTL.
func (l *Layered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok, err := l.inner.Get(ctx, key); err == nil && ok {
		return val, true, nil
	}

	val, ok, err := l.outer.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// Backfill failures are invisible to the caller; the outer layer
	// already served the payload.
	_ = l.inner.Set(ctx, key, val, l.backfillTTL)
	return val, true, nil
}

// Set writes to both layers; the first error wins but both are attempted.
func (l *Layered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	innerErr := l.inner.Set(ctx, key, value, ttl)
	outerErr := l.outer.Set(ctx, key, value, ttl)
	if innerErr != nil {
		return innerErr
	}
	return outerErr
}

// Delete removes key from both layers.
func (l *Layered) Delete(ctx context.Context, key string) error {
	innerErr := l.inner.Delete(ctx, key)
	outerErr := l.outer.Delete(ctx, key)
	if innerErr != nil {
		return innerErr
	}
	return outerErr
}

// Close closes both layers.
func (l *Layered) Close() error {
	innerErr := l.inner.Close()
	outerErr := l.outer.Close()
	if innerErr != nil {
		return innerErr
	}
	return outerErr
}
