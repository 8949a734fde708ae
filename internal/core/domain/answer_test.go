package domain

import (
	"math"
	"testing"
)

func round(index int, score float64, text string) ThinkingRound {
	return ThinkingRound{
		Index:    index,
		Selected: &CandidateOutcome{Index: 0, Text: text, Score: score},
		Cost:     CallCost{Calls: 3, PromptTokens: 30, CompletionTokens: 60},
	}
}

func TestRefinementState_TracksBestAcrossRounds(t *testing.T) {
	state := &RefinementState{ConversationID: "conv-1"}

	state.RecordRound(round(0, 0.5, "draft"))
	state.RecordRound(round(1, 0.9, "peak"))
	state.RecordRound(round(2, 0.7, "regression"))

	if state.BestRound != 1 || state.BestText != "peak" || state.BestScore != 0.9 {
		t.Errorf("best should stick to the peak round: %+v", state)
	}
	if state.Cost.Calls != 9 || state.Cost.TotalTokens() != 270 {
		t.Errorf("cost should accumulate across rounds: %+v", state.Cost)
	}
}

func TestRefinementState_LastImprovement(t *testing.T) {
	state := &RefinementState{}

	if _, ok := state.LastImprovement(); ok {
		t.Error("no rounds: no improvement signal")
	}

	state.RecordRound(round(0, 0.5, "a"))
	if _, ok := state.LastImprovement(); ok {
		t.Error("one round: no improvement signal")
	}

	state.RecordRound(round(1, 0.7, "b"))
	delta, ok := state.LastImprovement()
	if !ok || math.Abs(delta-0.2) > 1e-9 {
		t.Errorf("expected ~0.2 improvement, got %v (ok=%v)", delta, ok)
	}

	state.RecordRound(round(2, 0.6, "c"))
	delta, ok = state.LastImprovement()
	if !ok || delta >= 0 {
		t.Errorf("regression should be negative, got %v", delta)
	}
}
