package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// brokenBackend fails every operation; the coordinator must degrade it
// to cache misses rather than failing calls.
type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}
func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}
func (brokenBackend) Delete(context.Context, string) error { return errors.New("backend down") }
func (brokenBackend) Name() string                         { return "broken" }
func (brokenBackend) Close() error                         { return nil }

func TestCoordinator_ConcurrentCallersComputeOnce(t *testing.T) {
	c := NewCoordinator(NewMemory(DefaultMemoryConfig), time.Minute, nil)

	var computes atomic.Int32
	compute := func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte("payload"), nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, _, err := c.GetOrCompute(context.Background(), "key", compute)
			if err != nil {
				t.Errorf("caller %d failed: %v", i, err)
				return
			}
			results[i] = val
		}(i)
	}
	wg.Wait()

	if computes.Load() != 1 {
		t.Errorf("expected exactly one compute, got %d", computes.Load())
	}
	for i, val := range results {
		if string(val) != "payload" {
			t.Errorf("caller %d got %q", i, val)
		}
	}
}

func TestCoordinator_FailureNotCached(t *testing.T) {
	c := NewCoordinator(NewMemory(DefaultMemoryConfig), time.Minute, nil)
	ctx := context.Background()

	var computes atomic.Int32
	boom := errors.New("upstream down")

	_, _, err := c.GetOrCompute(ctx, "key", func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute failure, got %v", err)
	}

	// The failed flight must be forgotten so a later call retries.
	val, hit, err := c.GetOrCompute(ctx, "key", func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		return []byte("recovered"), nil
	})
	if err != nil {
		t.Fatalf("retry should succeed, got %v", err)
	}
	if hit {
		t.Error("second call should be a miss, nothing was cached")
	}
	if string(val) != "recovered" {
		t.Errorf("unexpected payload %q", val)
	}
	if computes.Load() != 2 {
		t.Errorf("expected 2 computes, got %d", computes.Load())
	}

	// Third call hits the now-populated cache.
	_, hit, err = c.GetOrCompute(ctx, "key", func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		return nil, errors.New("should not run")
	})
	if err != nil || !hit {
		t.Errorf("expected cache hit, got hit=%v err=%v", hit, err)
	}
	if computes.Load() != 2 {
		t.Errorf("cache hit must not recompute, got %d computes", computes.Load())
	}
}

func TestCoordinator_BackendFailureDegradesToMiss(t *testing.T) {
	c := NewCoordinator(brokenBackend{}, time.Minute, nil)

	val, hit, err := c.GetOrCompute(context.Background(), "key", func(ctx context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	if err != nil {
		t.Fatalf("backend failure must not fail the call: %v", err)
	}
	if hit {
		t.Error("broken backend cannot produce a hit")
	}
	if string(val) != "computed" {
		t.Errorf("unexpected payload %q", val)
	}
}

func TestCoordinator_CallerCancelDoesNotKillFlight(t *testing.T) {
	c := NewCoordinator(NewMemory(DefaultMemoryConfig), time.Minute, nil)

	var computes atomic.Int32
	started := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		close(started)
		time.Sleep(100 * time.Millisecond)
		return []byte("payload"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, _, err := c.GetOrCompute(ctx, "key", compute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller should unblock with ctx error, got %v", err)
	}

	// The flight finishes in the background and stores its result.
	time.Sleep(150 * time.Millisecond)
	val, hit, err := c.GetOrCompute(context.Background(), "key", func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("should not run")
	})
	if err != nil || !hit {
		t.Fatalf("expected cache hit from completed flight, got hit=%v err=%v", hit, err)
	}
	if string(val) != "payload" {
		t.Errorf("unexpected payload %q", val)
	}
	if computes.Load() != 1 {
		t.Errorf("expected one compute, got %d", computes.Load())
	}
}

func TestCoordinator_JoinersSurviveInitiatorCancellation(t *testing.T) {
	c := NewCoordinator(NewMemory(DefaultMemoryConfig), time.Minute, nil)

	var computes atomic.Int32
	started := make(chan struct{})
	// The compute honors its context; it only delivers if the flight is
	// detached from the initiator's cancellation.
	compute := func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return []byte("payload"), nil
		}
	}

	initiatorCtx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := c.GetOrCompute(initiatorCtx, "key", compute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("initiator should unblock with its ctx error, got %v", err)
		}
	}()

	<-started
	joined := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(joined)
		val, _, err := c.GetOrCompute(context.Background(), "key", compute)
		if err != nil {
			t.Errorf("joiner must receive the flight's result, got %v", err)
			return
		}
		if string(val) != "payload" {
			t.Errorf("joiner got %q", val)
		}
	}()

	<-joined
	time.Sleep(10 * time.Millisecond) // let the joiner reach the flight
	cancel()
	wg.Wait()

	if computes.Load() != 1 {
		t.Errorf("expected one shared compute, got %d", computes.Load())
	}
}

func TestCoordinator_Stats(t *testing.T) {
	c := NewCoordinator(NewMemory(DefaultMemoryConfig), time.Minute, nil)
	ctx := context.Background()

	compute := func(ctx context.Context) ([]byte, error) { return []byte("v"), nil }
	_, _, _ = c.GetOrCompute(ctx, "key", compute)
	_, _, _ = c.GetOrCompute(ctx, "key", compute)

	stats := c.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("expected 1 miss and 1 hit, got %+v", stats)
	}
}
