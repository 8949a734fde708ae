package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Base:        time.Millisecond,
		Multiplier:  2,
		MaxDelay:    10 * time.Millisecond,
	}
}

func TestRetrier_TerminalFailureFailsFast(t *testing.T) {
	registry := NewRegistry(DefaultBreakerConfig)
	r := NewRetrier(registry, fastPolicy(3))

	var calls atomic.Int32
	terminal := domain.NewCallError(domain.KindInvalidRequest, "test/model", errors.New("bad request"))

	_, err := r.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		calls.Add(1)
		return domain.Generation{}, terminal
	})

	if !errors.Is(err, terminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("terminal failure should not retry, got %d calls", calls.Load())
	}
}

func TestRetrier_TransientFailureRetries(t *testing.T) {
	registry := NewRegistry(DefaultBreakerConfig)
	r := NewRetrier(registry, fastPolicy(3))

	var calls atomic.Int32
	gen, err := r.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		if calls.Add(1) < 3 {
			return domain.Generation{}, errors.New("connection reset by peer")
		}
		return domain.Generation{Text: "ok"}, nil
	})

	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if gen.Text != "ok" {
		t.Errorf("unexpected payload %q", gen.Text)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRetrier_ExhaustsAttemptBudget(t *testing.T) {
	registry := NewRegistry(DefaultBreakerConfig)
	r := NewRetrier(registry, fastPolicy(3))

	var calls atomic.Int32
	lastErr := errors.New("timeout")
	_, err := r.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		calls.Add(1)
		return domain.Generation{}, lastErr
	})

	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last attempt error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls.Load())
	}
}

func TestRetrier_BreakerRefusalConsumesNoAttempt(t *testing.T) {
	registry := NewRegistry(BreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})
	r := NewRetrier(registry, fastPolicy(3))

	// Trip the breaker directly.
	registry.Get("test/model").RecordFailure()

	var calls atomic.Int32
	_, err := r.Do(context.Background(), "test/model", func(ctx context.Context) (domain.Generation, error) {
		calls.Add(1)
		return domain.Generation{Text: "ok"}, nil
	})

	if !domain.IsCircuitOpen(err) {
		t.Fatalf("expected circuit-open error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("refusal must not invoke the operation, got %d calls", calls.Load())
	}
}

func TestRetrier_CancelledAttemptRecordsNothing(t *testing.T) {
	registry := NewRegistry(BreakerConfig{FailureThreshold: 2, OpenDuration: time.Minute})
	r := NewRetrier(registry, fastPolicy(3))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Do(ctx, "test/model", func(ctx context.Context) (domain.Generation, error) {
		cancel()
		return domain.Generation{}, ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	b := registry.Get("test/model")
	if b.consecutiveFails != 0 {
		t.Errorf("cancelled attempt must not count as failure, got %d", b.consecutiveFails)
	}
	if b.State() != StateClosed {
		t.Errorf("breaker should stay closed, got %v", b.State())
	}
}

func TestRetrier_CancelledSuccessRecordsNothing(t *testing.T) {
	registry := NewRegistry(BreakerConfig{
		FailureThreshold: 1, OpenDuration: time.Minute,
		HalfOpenTrialBudget: 1, HalfOpenSuccesses: 1,
	})
	r := NewRetrier(registry, fastPolicy(3))

	b := registry.Get("test/model")
	clock := time.Unix(1700000000, 0)
	b.now = func() time.Time { return clock }
	b.RecordFailure()
	clock = clock.Add(2 * time.Minute)

	// The operation completes successfully, but only after the caller
	// cancelled it.
	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Do(ctx, "test/model", func(ctx context.Context) (domain.Generation, error) {
		cancel()
		return domain.Generation{Text: "late"}, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("cancelled success must not count toward re-closing, got %v", b.State())
	}
	if !b.Allow() {
		t.Error("the probe slot should be released for another attempt")
	}
}

func TestRetrier_Backoff(t *testing.T) {
	r := NewRetrier(NewRegistry(DefaultBreakerConfig), RetryPolicy{
		MaxAttempts:         5,
		Base:                100 * time.Millisecond,
		Multiplier:          2,
		MaxDelay:            time.Second,
		RateLimitMultiplier: 4,
	})

	tests := []struct {
		attempt int
		kind    domain.ErrorKind
		expect  time.Duration
	}{
		{1, domain.KindTransient, 100 * time.Millisecond},
		{2, domain.KindTransient, 200 * time.Millisecond},
		{3, domain.KindTransient, 400 * time.Millisecond},
		{1, domain.KindRateLimited, 400 * time.Millisecond},
		{2, domain.KindRateLimited, 800 * time.Millisecond},
		{5, domain.KindTransient, time.Second}, // capped
		{3, domain.KindRateLimited, time.Second},
	}

	for _, tt := range tests {
		if got := r.backoff(tt.attempt, tt.kind); got != tt.expect {
			t.Errorf("backoff(%d, %v) = %v, want %v", tt.attempt, tt.kind, got, tt.expect)
		}
	}
}
