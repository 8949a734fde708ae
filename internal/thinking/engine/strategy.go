package engine

import (
	"fmt"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// Strategy decides, before each round, whether the loop should stop.
// The set of strategies is closed and selected at engine construction.
type Strategy interface {
	ShouldStop(state *domain.RefinementState) (bool, domain.StopReason)
}

// Strategy names accepted in configuration.
const (
	StrategyAdaptive   = "adaptive"
	StrategyFixedDepth = "fixed_depth"
	StrategyBudget     = "budget"
)

// NewStrategy builds a stopping strategy from its configured name.
func NewStrategy(name string, cfg Config) (Strategy, error) {
	switch name {
	case StrategyAdaptive, "":
		return &adaptiveStop{maxRounds: cfg.MaxRounds, epsilon: cfg.ConvergenceEpsilon}, nil
	case StrategyFixedDepth:
		return &fixedDepthStop{rounds: cfg.MaxRounds}, nil
	case StrategyBudget:
		return &budgetStop{maxCalls: cfg.MaxCallBudget, maxRounds: cfg.MaxRounds}, nil
	default:
		return nil, fmt.Errorf("unknown stopping strategy %q", name)
	}
}

// adaptiveStop continues while each round still improves the score by
// at least the convergence epsilon, bounded by the round ceiling.
type adaptiveStop struct {
	maxRounds int
	epsilon   float64
}

func (s *adaptiveStop) ShouldStop(state *domain.RefinementState) (bool, domain.StopReason) {
	if improvement, ok := state.LastImprovement(); ok && improvement < s.epsilon {
		return true, domain.StopConverged
	}
	if len(state.Rounds) >= s.maxRounds {
		return true, domain.StopMaxRounds
	}
	return false, ""
}

// fixedDepthStop always runs the configured number of rounds.
type fixedDepthStop struct {
	rounds int
}

func (s *fixedDepthStop) ShouldStop(state *domain.RefinementState) (bool, domain.StopReason) {
	if len(state.Rounds) >= s.rounds {
		return true, domain.StopMaxRounds
	}
	return false, ""
}

// budgetStop continues until the upstream call budget is spent, with
// the round ceiling as a hard backstop.
type budgetStop struct {
	maxCalls  int
	maxRounds int
}

func (s *budgetStop) ShouldStop(state *domain.RefinementState) (bool, domain.StopReason) {
	if s.maxCalls > 0 && state.Cost.Calls >= s.maxCalls {
		return true, domain.StopBudgetExhausted
	}
	if len(state.Rounds) >= s.maxRounds {
		return true, domain.StopMaxRounds
	}
	return false, ""
}
