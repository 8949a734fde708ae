package resilience

import (
	"context"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/metrics"
)

// CallExecutor wraps one logical upstream call with the full resilience
// stack. Layering is strict: the breaker gates attempts, retry wraps one
// attempt sequence, hedging wraps a sequence of retry-wrapped attempts;
// no layer reaches back into an outer layer's state.
type CallExecutor struct {
	registry *Registry
	hedger   *Hedger
	deadline time.Duration
}

// ExecutorConfig configures a CallExecutor.
type ExecutorConfig struct {
	Breaker      BreakerConfig
	Retry        RetryPolicy
	Hedge        HedgeConfig
	CallDeadline time.Duration // bounds each logical call, retries and hedges included
}

// DefaultCallDeadline bounds one logical call end to end.
const DefaultCallDeadline = 30 * time.Second

// NewCallExecutor wires breaker registry, retrier, and hedger together.
// The registry is shared so callers can observe breaker states.
func NewCallExecutor(registry *Registry, cfg ExecutorConfig) *CallExecutor {
	if cfg.CallDeadline <= 0 {
		cfg.CallDeadline = DefaultCallDeadline
	}
	retrier := NewRetrier(registry, cfg.Retry)
	return &CallExecutor{
		registry: registry,
		hedger:   NewHedger(retrier, cfg.Hedge),
		deadline: cfg.CallDeadline,
	}
}

// Registry exposes the breaker registry for state snapshots.
func (e *CallExecutor) Registry() *Registry { return e.registry }

// Execute runs op against the endpoint under the per-call deadline.
// Exceeding the deadline is classified as a transient timeout failure.
func (e *CallExecutor) Execute(ctx context.Context, endpoint string, op Operation) (domain.Generation, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	start := time.Now()
	metrics.GenerationCalls.WithLabelValues(endpoint).Inc()

	gen, err := e.hedger.Do(callCtx, endpoint, op)
	metrics.GenerationLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		// Deadline expiry on the call context is a transient timeout,
		// not a caller cancellation.
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = domain.NewCallError(domain.KindTransient, endpoint, context.DeadlineExceeded)
		}
		metrics.GenerationErrors.WithLabelValues(endpoint, domain.Classify(err).String()).Inc()
		return domain.Generation{}, err
	}
	return gen, nil
}
