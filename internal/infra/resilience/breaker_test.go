package resilience

import (
	"testing"
	"time"
)

func testBreaker(cfg BreakerConfig) (*Breaker, *time.Time) {
	b := NewBreaker("test/model", cfg)
	clock := time.Unix(1700000000, 0)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{FailureThreshold: 3, OpenDuration: 30 * time.Second})

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("call %d should be allowed while closed", i)
		}
		b.RecordFailure()
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after 2 failures, got %v", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %v", b.State())
	}
	if b.Allow() {
		t.Error("open breaker should refuse calls")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{FailureThreshold: 3, OpenDuration: 30 * time.Second})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Errorf("non-consecutive failures should not open, got %v", b.State())
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{FailureThreshold: 1, OpenDuration: 30 * time.Second, HalfOpenTrialBudget: 2})

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("should refuse right after opening")
	}

	*clock = clock.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("should allow a probe after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open, got %v", b.State())
	}
}

func TestBreaker_HalfOpenProbeBudget(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{FailureThreshold: 1, OpenDuration: 30 * time.Second, HalfOpenTrialBudget: 2})

	b.RecordFailure()
	*clock = clock.Add(31 * time.Second)

	if !b.Allow() {
		t.Fatal("first probe should be allowed")
	}
	if !b.Allow() {
		t.Fatal("second probe should fit the budget")
	}
	if b.Allow() {
		t.Error("third probe should be refused")
	}
}

func TestBreaker_ReclosesAfterProbeSuccesses(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{
		FailureThreshold: 1, OpenDuration: 30 * time.Second,
		HalfOpenTrialBudget: 2, HalfOpenSuccesses: 2,
	})

	b.RecordFailure()
	*clock = clock.Add(31 * time.Second)

	b.Allow()
	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("one success should not reclose, got %v", b.State())
	}

	b.Allow()
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after required successes, got %v", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{FailureThreshold: 1, OpenDuration: 30 * time.Second})

	b.RecordFailure()
	*clock = clock.Add(31 * time.Second)
	b.Allow()
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Fatalf("probe failure should reopen, got %v", b.State())
	}
	// The cooldown restarts from the reopen.
	*clock = clock.Add(29 * time.Second)
	if b.Allow() {
		t.Error("should still refuse before the new cooldown elapses")
	}
	*clock = clock.Add(2 * time.Second)
	if !b.Allow() {
		t.Error("should probe again after the new cooldown")
	}
}

func TestBreaker_CancelledReleasesProbeSlot(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{FailureThreshold: 1, OpenDuration: 30 * time.Second, HalfOpenTrialBudget: 1})

	b.RecordFailure()
	*clock = clock.Add(31 * time.Second)

	if !b.Allow() {
		t.Fatal("probe should be allowed")
	}
	if b.Allow() {
		t.Fatal("budget of 1 should refuse a second probe")
	}

	b.RecordCancelled()
	if b.State() != StateHalfOpen {
		t.Fatalf("cancellation must not change state, got %v", b.State())
	}
	if !b.Allow() {
		t.Error("released slot should admit another probe")
	}
}
