package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// Operation is one logical upstream call. Implementations must honor
// ctx cancellation.
type Operation func(ctx context.Context) (domain.Generation, error)

// RetryPolicy defines retry behavior around one attempt sequence. It is
// immutable once constructed and shared read-only across calls.
type RetryPolicy struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	Base           time.Duration `yaml:"base"`
	Multiplier     float64       `yaml:"multiplier"`
	JitterFraction float64       `yaml:"jitter_fraction"`
	MaxDelay       time.Duration `yaml:"max_delay"`

	// RateLimitMultiplier extends backoff for rate-limited failures.
	RateLimitMultiplier float64 `yaml:"rate_limit_multiplier"`
}

// DefaultRetryPolicy provides sensible defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:         3,
	Base:                200 * time.Millisecond,
	Multiplier:          2.0,
	JitterFraction:      0.2,
	MaxDelay:            10 * time.Second,
	RateLimitMultiplier: 4.0,
}

// Retrier executes operations with classified retries. Every attempt is
// gated by the endpoint's circuit breaker; a refusal short-circuits with
// a circuit-open error without consuming the attempt budget.
type Retrier struct {
	registry *Registry
	policy   RetryPolicy
}

// NewRetrier creates a retrier bound to a breaker registry.
func NewRetrier(registry *Registry, policy RetryPolicy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.Base <= 0 {
		policy.Base = DefaultRetryPolicy.Base
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = DefaultRetryPolicy.Multiplier
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if policy.RateLimitMultiplier < 1 {
		policy.RateLimitMultiplier = DefaultRetryPolicy.RateLimitMultiplier
	}
	return &Retrier{registry: registry, policy: policy}
}

// Do runs op against the endpoint, retrying transient and rate-limited
// failures with exponential backoff. Terminal failures fail immediately.
// Cancelled attempts record neither success nor failure on the breaker.
func (r *Retrier) Do(ctx context.Context, endpoint string, op Operation) (domain.Generation, error) {
	breaker := r.registry.Get(endpoint)
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if !breaker.Allow() {
			return domain.Generation{}, domain.NewCallError(
				domain.KindCircuitOpen, endpoint, domain.ErrCircuitOpen)
		}

		gen, err := op(ctx)
		if err == nil {
			if ctx.Err() != nil {
				// A losing hedge attempt may finish its work after the
				// winner cancelled it; its completion records neither
				// success nor failure.
				breaker.RecordCancelled()
				return domain.Generation{}, ctx.Err()
			}
			breaker.RecordSuccess()
			return gen, nil
		}

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			breaker.RecordCancelled()
			return domain.Generation{}, ctx.Err()
		}

		breaker.RecordFailure()
		lastErr = err

		kind := domain.Classify(err)
		if !kind.Retryable() {
			return domain.Generation{}, err
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.backoff(attempt, kind)
		select {
		case <-ctx.Done():
			return domain.Generation{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return domain.Generation{}, lastErr
}

// backoff computes the delay before the next attempt:
// base * multiplier^(n-1) * (1 ± jitter), capped at MaxDelay.
func (r *Retrier) backoff(attempt int, kind domain.ErrorKind) time.Duration {
	delay := float64(r.policy.Base) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if kind == domain.KindRateLimited {
		delay *= r.policy.RateLimitMultiplier
	}
	if r.policy.JitterFraction > 0 {
		jitter := 1 + r.policy.JitterFraction*(2*rand.Float64()-1)
		delay *= jitter
	}
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	return time.Duration(delay)
}
