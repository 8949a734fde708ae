package resilience

import (
	"context"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/metrics"
)

// HedgeConfig defines hedged duplicate requests for tail latency.
type HedgeConfig struct {
	Delay     time.Duration `yaml:"delay"`      // wait before issuing a duplicate attempt
	MaxHedges int           `yaml:"max_hedges"` // duplicates beyond the primary attempt
}

// DefaultHedgeConfig provides sensible defaults.
var DefaultHedgeConfig = HedgeConfig{
	Delay:     2 * time.Second,
	MaxHedges: 1,
}

// Hedger issues a primary attempt plus delayed duplicates and accepts
// the first success. Each individual attempt is retry-wrapped; the batch
// as a whole is never retried — the caller decides whether to retry a
// round.
type Hedger struct {
	retrier *Retrier
	cfg     HedgeConfig
}

// NewHedger creates a hedging executor on top of a retrier.
func NewHedger(retrier *Retrier, cfg HedgeConfig) *Hedger {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultHedgeConfig.Delay
	}
	if cfg.MaxHedges < 0 {
		cfg.MaxHedges = 0
	}
	return &Hedger{retrier: retrier, cfg: cfg}
}

type hedgeResult struct {
	index int
	gen   domain.Generation
	err   error
}

// Do runs op as a hedge batch against the endpoint. The first successful
// attempt wins and every other in-flight duplicate is cancelled the
// instant the winner is determined; cancelled attempts mutate neither
// cache nor breaker counters. If all attempts fail, the last observed
// failure by completion time is returned.
func (h *Hedger) Do(ctx context.Context, endpoint string, op Operation) (domain.Generation, error) {
	hedgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	maxAttempts := h.cfg.MaxHedges + 1
	results := make(chan hedgeResult, maxAttempts)

	launch := func(index int) {
		go func() {
			gen, err := h.retrier.Do(hedgeCtx, endpoint, op)
			results <- hedgeResult{index: index, gen: gen, err: err}
		}()
	}

	launched := 1
	launch(0)

	timer := time.NewTimer(h.cfg.Delay)
	defer timer.Stop()

	var lastErr error
	finished := 0

	for {
		select {
		case <-ctx.Done():
			return domain.Generation{}, ctx.Err()

		case <-timer.C:
			if launched < maxAttempts {
				metrics.HedgesLaunched.WithLabelValues(endpoint).Inc()
				launch(launched)
				launched++
				// Further duplicates are delayed by another full interval.
				timer.Reset(h.cfg.Delay)
			}

		case res := <-results:
			finished++
			if res.err == nil {
				cancel()
				winner := "primary"
				if res.index > 0 {
					winner = "hedge"
				}
				metrics.HedgeWins.WithLabelValues(endpoint, winner).Inc()
				return res.gen, nil
			}

			lastErr = res.err
			if finished == launched && launched == maxAttempts {
				return domain.Generation{}, lastErr
			}
			if finished == launched {
				// Every launched attempt failed before the next hedge was
				// due; waiting longer cannot help, so issue it now.
				if launched < maxAttempts {
					metrics.HedgesLaunched.WithLabelValues(endpoint).Inc()
					launch(launched)
					launched++
					timer.Reset(h.cfg.Delay)
				}
			}
		}
	}
}
