// Package engine drives the adaptive refinement loop: propose a round,
// generate it through the scheduler, evaluate, and decide whether to
// continue or return the best answer observed so far.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/budget"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/resilience"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/storage"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/scheduler"
)

// ErrBudgetExhausted is returned when the daily call quota is spent
// before any round could run.
var ErrBudgetExhausted = errors.New("call budget exhausted")

// Config holds the refinement loop parameters.
type Config struct {
	MaxRounds          int              `yaml:"max_rounds"`
	ConvergenceEpsilon float64          `yaml:"convergence_epsilon"`
	TokenBudget        int              `yaml:"token_budget"`
	Strategy           string           `yaml:"strategy"` // adaptive | fixed_depth | budget
	MaxCallBudget      int              `yaml:"max_call_budget"`
	Params             domain.GenParams `yaml:"-"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxRounds:          4,
	ConvergenceEpsilon: 0.05,
	TokenBudget:        4096,
	Strategy:           StrategyAdaptive,
}

// Engine is the top of the refinement stack. Nothing below it sees
// conversation-level state.
type Engine struct {
	sched    *scheduler.Scheduler
	strategy Strategy
	trimmer  ContextTrimmer
	repo     storage.ConversationRepository
	tracker  *budget.Tracker
	registry *resilience.Registry
	fanout   int
	cfg      Config
	log      *slog.Logger
}

// New wires the engine. trimmer may be nil (tail trimming is used).
func New(
	sched *scheduler.Scheduler,
	trimmer ContextTrimmer,
	repo storage.ConversationRepository,
	tracker *budget.Tracker,
	registry *resilience.Registry,
	fanout int,
	cfg Config,
	log *slog.Logger,
) (*Engine, error) {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultConfig.MaxRounds
	}
	if cfg.ConvergenceEpsilon <= 0 {
		cfg.ConvergenceEpsilon = DefaultConfig.ConvergenceEpsilon
	}
	if trimmer == nil {
		trimmer = TailTrimmer{}
	}
	if log == nil {
		log = slog.Default()
	}

	strategy, err := NewStrategy(cfg.Strategy, cfg)
	if err != nil {
		return nil, err
	}

	return &Engine{
		sched:    sched,
		strategy: strategy,
		trimmer:  trimmer,
		repo:     repo,
		tracker:  tracker,
		registry: registry,
		fanout:   fanout,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Think answers the query through iterative refinement. The returned
// answer is built from the best-scoring round across the whole
// conversation, not necessarily the last one.
func (e *Engine) Think(ctx context.Context, query, conversationID string) (domain.FinalAnswer, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	history, err := e.repo.History(ctx, conversationID)
	if err != nil {
		// Thinking can proceed without history; the answer just loses
		// conversational context.
		e.log.Warn("failed to load history", "conversation", conversationID, "error", err)
		history = nil
	}

	state := &domain.RefinementState{ConversationID: conversationID}
	start := time.Now()

	for {
		if stop, reason := e.strategy.ShouldStop(state); stop {
			state.StopReason = reason
			break
		}

		if e.tracker != nil && !e.tracker.CanMakeCalls(e.fanout) {
			if !state.HasBest {
				return domain.FinalAnswer{}, ErrBudgetExhausted
			}
			state.StopReason = domain.StopBudgetExhausted
			break
		}

		input := domain.RoundInput{
			ConversationID: conversationID,
			RoundIndex:     len(state.Rounds),
			Prompt:         e.buildPrompt(query, state),
			Context:        e.trimmer.Trim(history, e.cfg.TokenBudget),
			Params:         e.cfg.Params,
		}

		round, err := e.sched.RunRound(ctx, input)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.FinalAnswer{}, ctxErr
			}

			var failed *domain.AllCandidatesFailedError
			if errors.As(err, &failed) && state.HasBest {
				// Terminate early with the best answer so far rather
				// than propagating the raw round failure.
				e.log.Warn("round failed, returning partial result",
					"conversation", conversationID, "round", failed.RoundIndex, "error", err)
				state.StopReason = domain.StopRoundFailed
				answer := e.finalize(state, true)
				e.persist(ctx, conversationID, query, answer)
				return answer, nil
			}
			// No round ever succeeded: surface the failure.
			return domain.FinalAnswer{}, err
		}

		if e.tracker != nil {
			e.tracker.Record(conversationID, input.Params.Model, round.Cost)
		}
		state.RecordRound(round)

		e.log.Debug("round completed",
			"conversation", conversationID,
			"round", round.Index,
			"score", round.Selected.Score,
			"candidates", len(round.Candidates),
			"duration", round.Duration)
	}

	answer := e.finalize(state, false)
	e.persist(ctx, conversationID, query, answer)

	e.log.Info("refinement finished",
		"conversation", conversationID,
		"rounds", answer.RoundsUsed,
		"score", answer.Score,
		"stop", answer.StopReason,
		"duration", time.Since(start))
	return answer, nil
}

// buildPrompt asks for a fresh answer in the first round and for a
// refinement of the running best in later rounds.
func (e *Engine) buildPrompt(query string, state *domain.RefinementState) string {
	if !state.HasBest {
		return query
	}
	return fmt.Sprintf(
		"%s\n\nPrevious answer:\n%s\n\nImprove the previous answer. Correct mistakes, fill gaps, and tighten the reasoning.",
		query, state.BestText)
}

func (e *Engine) finalize(state *domain.RefinementState, recursionFailed bool) domain.FinalAnswer {
	answer := domain.FinalAnswer{
		Text:            state.BestText,
		Score:           state.BestScore,
		RoundsUsed:      len(state.Rounds),
		BestRound:       state.BestRound,
		TotalCost:       state.Cost,
		StopReason:      state.StopReason,
		RecursionFailed: recursionFailed,
	}
	if e.registry != nil {
		answer.BreakerStates = e.registry.States(nil)
	}
	return answer
}

// persist records the exchange best-effort; storage failures never fail
// a served answer.
func (e *Engine) persist(ctx context.Context, conversationID, query string, answer domain.FinalAnswer) {
	now := time.Now()
	err := e.repo.Append(ctx, conversationID,
		domain.Message{Role: domain.RoleUser, Content: query, CreatedAt: now},
		domain.Message{Role: domain.RoleAssistant, Content: answer.Text, CreatedAt: now},
	)
	if err != nil {
		e.log.Warn("failed to append history", "conversation", conversationID, "error", err)
	}
	if err := e.repo.RecordAnswer(ctx, conversationID, answer); err != nil {
		e.log.Warn("failed to record answer", "conversation", conversationID, "error", err)
	}
}
