package engine

import (
	"context"
	"math"
	"strings"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// HeuristicEvaluator is the built-in fallback scorer used when no
// external quality evaluator is wired in (tests, dry-run mode). It
// rewards substance and prompt-term coverage, saturating towards 1.
type HeuristicEvaluator struct{}

// Score returns a deterministic quality estimate in [0, 1].
func (HeuristicEvaluator) Score(_ context.Context, candidate string, input domain.RoundInput) (float64, error) {
	text := strings.TrimSpace(candidate)
	if text == "" {
		return 0, nil
	}

	// Length component saturates around a few hundred words.
	words := float64(len(strings.Fields(text)))
	lengthScore := 1 - math.Exp(-words/150)

	// Coverage component: fraction of prompt terms echoed in the answer.
	lower := strings.ToLower(text)
	terms := strings.Fields(strings.ToLower(input.Prompt))
	covered := 0
	for _, term := range terms {
		if len(term) > 3 && strings.Contains(lower, term) {
			covered++
		}
	}
	coverage := 0.0
	if len(terms) > 0 {
		coverage = float64(covered) / float64(len(terms))
	}

	return 0.7*lengthScore + 0.3*coverage, nil
}
