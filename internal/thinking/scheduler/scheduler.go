// Package scheduler fans one thinking round out into concurrent
// candidate generations and reconciles the results.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/cache"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/provider"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/resilience"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/metrics"
)

// Evaluator scores a candidate answer in [0, 1]. The scoring function
// itself is an external collaborator; the scheduler only consumes the
// number.
type Evaluator interface {
	Score(ctx context.Context, candidate string, input domain.RoundInput) (float64, error)
}

// Config bounds one round's fan-out.
type Config struct {
	Fanout          int `yaml:"fanout"`            // concurrent candidates per round
	RoundRetryLimit int `yaml:"round_retry_limit"` // whole-round retries when every candidate fails
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	Fanout:          3,
	RoundRetryLimit: 1,
}

// Scheduler issues candidate generations through the cache coordinator,
// using the hedged and retried call executor as the compute function.
type Scheduler struct {
	gen   provider.Generator
	exec  *resilience.CallExecutor
	cache *cache.Coordinator
	eval  Evaluator
	cfg   Config
	log   *slog.Logger
}

// New creates a scheduler. All collaborators are injected; the
// scheduler owns no global state.
func New(gen provider.Generator, exec *resilience.CallExecutor, coord *cache.Coordinator, eval Evaluator, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.Fanout <= 0 {
		cfg.Fanout = DefaultConfig.Fanout
	}
	if cfg.RoundRetryLimit < 0 {
		cfg.RoundRetryLimit = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{gen: gen, exec: exec, cache: coord, eval: eval, cfg: cfg, log: log}
}

// RunRound executes one fan-out round. The round succeeds if at least
// one candidate succeeds; if every candidate fails the whole round is
// retried up to the configured limit before AllCandidatesFailedError.
func (s *Scheduler) RunRound(ctx context.Context, input domain.RoundInput) (domain.ThinkingRound, error) {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.RoundRetryLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.ThinkingRound{}, err
		}

		round, err := s.runOnce(ctx, input)
		if err == nil {
			metrics.RoundsCompleted.WithLabelValues("ok").Inc()
			metrics.RoundScore.Observe(round.Selected.Score)
			return round, nil
		}
		if ctx.Err() != nil {
			return domain.ThinkingRound{}, ctx.Err()
		}

		lastErr = err
		s.log.Warn("round attempt failed",
			"round", input.RoundIndex, "attempt", attempt+1, "error", err)
	}

	metrics.RoundsCompleted.WithLabelValues("failed").Inc()
	return domain.ThinkingRound{}, &domain.AllCandidatesFailedError{
		RoundIndex: input.RoundIndex,
		Attempts:   s.cfg.RoundRetryLimit + 1,
		Last:       lastErr,
	}
}

func (s *Scheduler) runOnce(ctx context.Context, input domain.RoundInput) (domain.ThinkingRound, error) {
	start := time.Now()
	results := make(chan domain.CandidateOutcome, s.cfg.Fanout)

	for i := 0; i < s.cfg.Fanout; i++ {
		go func(index int) {
			results <- s.generateCandidate(ctx, input, index)
		}(i)
	}

	// Collect as candidates complete, not in submission order.
	round := domain.ThinkingRound{Index: input.RoundIndex, Input: input}
	var lastErr error
	for i := 0; i < s.cfg.Fanout; i++ {
		outcome := <-results
		if outcome.Err != nil {
			lastErr = outcome.Err
		} else {
			round.Cost = round.Cost.Add(outcome.Cost)
		}
		round.Candidates = append(round.Candidates, outcome)
	}
	round.Duration = time.Since(start)

	selected, ok := selectBest(round.Candidates)
	if !ok {
		if lastErr == nil {
			lastErr = fmt.Errorf("no candidates produced")
		}
		return domain.ThinkingRound{}, lastErr
	}
	round.Selected = selected
	return round, nil
}

// generateCandidate runs one candidate through cache and executor and
// scores it. A candidate never fails the round on its own; failures are
// reported in the outcome for the partial-failure policy to weigh.
func (s *Scheduler) generateCandidate(ctx context.Context, input domain.RoundInput, index int) domain.CandidateOutcome {
	params := input.Params
	// Distinct seeds make candidates explore different completions
	// while keeping each one individually cacheable.
	params.Seed = params.Seed + index + 1

	endpoint := s.gen.Endpoint(params)
	key := cache.Fingerprint(input, index)

	start := time.Now()
	payload, hit, err := s.cache.GetOrCompute(ctx, key, func(computeCtx context.Context) ([]byte, error) {
		gen, err := s.exec.Execute(computeCtx, endpoint, func(attemptCtx context.Context) (domain.Generation, error) {
			return s.gen.Generate(attemptCtx, input.Prompt, input.Context, params)
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(gen)
	})
	latency := time.Since(start)

	if err != nil {
		return domain.CandidateOutcome{Index: index, Latency: latency, Err: err}
	}

	var gen domain.Generation
	if err := json.Unmarshal(payload, &gen); err != nil {
		// A corrupt cache entry must not sink the candidate; drop it and
		// report the failure upward.
		s.cache.Invalidate(ctx, key)
		return domain.CandidateOutcome{Index: index, Latency: latency,
			Err: fmt.Errorf("corrupt cached payload: %w", err)}
	}

	outcome := domain.CandidateOutcome{
		Index:     index,
		Text:      gen.Text,
		Latency:   latency,
		FromCache: hit,
	}
	if !hit {
		outcome.Cost = gen.Cost
	}

	score, err := s.eval.Score(ctx, gen.Text, input)
	if err != nil {
		s.log.Warn("evaluator failed, scoring candidate as zero",
			"round", input.RoundIndex, "candidate", index, "error", err)
		score = 0
	}
	outcome.Score = score
	return outcome
}

// selectBest picks among successful candidates: highest score, then
// lowest latency, then lowest index. Deterministic given identical
// (score, latency, index) tuples regardless of completion order.
func selectBest(candidates []domain.CandidateOutcome) (*domain.CandidateOutcome, bool) {
	ok := make([]domain.CandidateOutcome, 0, len(candidates))
	for _, c := range candidates {
		if c.Succeeded() {
			ok = append(ok, c)
		}
	}
	if len(ok) == 0 {
		return nil, false
	}

	sort.Slice(ok, func(i, j int) bool {
		if ok[i].Score != ok[j].Score {
			return ok[i].Score > ok[j].Score
		}
		if ok[i].Latency != ok[j].Latency {
			return ok[i].Latency < ok[j].Latency
		}
		return ok[i].Index < ok[j].Index
	})

	best := ok[0]
	return &best, true
}
