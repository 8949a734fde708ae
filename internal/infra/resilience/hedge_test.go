package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

func newTestHedger(cfg HedgeConfig) (*Hedger, *Registry) {
	registry := NewRegistry(DefaultBreakerConfig)
	retrier := NewRetrier(registry, fastPolicy(1))
	return NewHedger(retrier, cfg), registry
}

func TestHedger_HedgeWinsWhenPrimaryIsSlow(t *testing.T) {
	h, _ := newTestHedger(HedgeConfig{Delay: 10 * time.Millisecond, MaxHedges: 1})

	var attempts atomic.Int32
	start := time.Now()
	gen, err := h.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		if attempts.Add(1) == 1 {
			select {
			case <-ctx.Done():
				return domain.Generation{}, ctx.Err()
			case <-time.After(500 * time.Millisecond):
				return domain.Generation{Text: "primary"}, nil
			}
		}
		return domain.Generation{Text: "hedge"}, nil
	})

	if err != nil {
		t.Fatalf("expected hedge success, got %v", err)
	}
	if gen.Text != "hedge" {
		t.Errorf("expected hedge to win, got %q", gen.Text)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("hedge win should not wait for the primary, took %v", elapsed)
	}
}

func TestHedger_CancelledLoserRecordsNothing(t *testing.T) {
	h, registry := newTestHedger(HedgeConfig{Delay: 10 * time.Millisecond, MaxHedges: 1})

	primaryCancelled := make(chan struct{})
	var attempts atomic.Int32
	_, err := h.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		if attempts.Add(1) == 1 {
			<-ctx.Done()
			close(primaryCancelled)
			return domain.Generation{}, ctx.Err()
		}
		return domain.Generation{Text: "hedge"}, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	select {
	case <-primaryCancelled:
	case <-time.After(time.Second):
		t.Fatal("losing attempt was never cancelled")
	}

	// Give the cancelled attempt's bookkeeping a moment to land.
	time.Sleep(20 * time.Millisecond)
	b := registry.Get("test/model")
	if b.consecutiveFails != 0 {
		t.Errorf("cancelled loser must not count as failure, got %d", b.consecutiveFails)
	}
}

func TestHedger_CancelledLoserSuccessRecordsNothing(t *testing.T) {
	registry := NewRegistry(BreakerConfig{
		FailureThreshold: 1, OpenDuration: 30 * time.Second,
		HalfOpenTrialBudget: 2, HalfOpenSuccesses: 2,
	})
	b := registry.Get("test/model")
	clock := time.Unix(1700000000, 0)
	b.now = func() time.Time { return clock }
	b.RecordFailure()
	clock = clock.Add(31 * time.Second)

	retrier := NewRetrier(registry, fastPolicy(1))
	h := NewHedger(retrier, HedgeConfig{Delay: 10 * time.Millisecond, MaxHedges: 1})

	loserDone := make(chan struct{})
	var attempts atomic.Int32
	gen, err := h.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		if attempts.Add(1) == 1 {
			<-ctx.Done()
			defer close(loserDone)
			// The attempt's work finished before it noticed the cancel.
			return domain.Generation{Text: "late"}, nil
		}
		return domain.Generation{Text: "hedge"}, nil
	})
	if err != nil || gen.Text != "hedge" {
		t.Fatalf("expected hedge win, got %q err=%v", gen.Text, err)
	}

	select {
	case <-loserDone:
	case <-time.After(time.Second):
		t.Fatal("losing attempt never completed")
	}
	time.Sleep(20 * time.Millisecond)

	// One genuine probe success out of the two required: the loser's
	// late success must not be the second.
	if b.State() != StateHalfOpen {
		t.Errorf("breaker must not re-close on a cancelled loser's success, got %v", b.State())
	}
}

func TestHedger_AllAttemptsFail(t *testing.T) {
	h, _ := newTestHedger(HedgeConfig{Delay: 5 * time.Millisecond, MaxHedges: 1})

	failure := errors.New("connection reset")
	var attempts atomic.Int32
	_, err := h.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		attempts.Add(1)
		return domain.Generation{}, failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected primary plus one hedge, got %d attempts", attempts.Load())
	}
}

func TestHedger_FastFailureTriggersNextHedgeImmediately(t *testing.T) {
	h, _ := newTestHedger(HedgeConfig{Delay: time.Second, MaxHedges: 1})

	var attempts atomic.Int32
	start := time.Now()
	gen, err := h.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		if attempts.Add(1) == 1 {
			return domain.Generation{}, errors.New("connection refused")
		}
		return domain.Generation{Text: "hedge"}, nil
	})

	if err != nil {
		t.Fatalf("expected hedge success, got %v", err)
	}
	if gen.Text != "hedge" {
		t.Errorf("unexpected winner %q", gen.Text)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("hedge should launch without waiting the full delay, took %v", elapsed)
	}
}

func TestHedger_CallerCancellation(t *testing.T) {
	h, _ := newTestHedger(HedgeConfig{Delay: time.Second, MaxHedges: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := h.Do(ctx, "test/model", func(ctx context.Context) (domain.Generation, error) {
		<-ctx.Done()
		return domain.Generation{}, ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
