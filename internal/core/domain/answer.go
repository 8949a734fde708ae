package domain

// StopReason records why the refinement loop terminated.
type StopReason string

const (
	StopConverged       StopReason = "converged"        // score improvement fell below epsilon
	StopMaxRounds       StopReason = "max_rounds"       // configured round ceiling reached
	StopBudgetExhausted StopReason = "budget_exhausted" // cost budget spent
	StopRoundFailed     StopReason = "round_failed"     // a whole round failed after retries
)

// RefinementState is the engine's per-conversation loop state. Round
// indexes are strictly increasing and bounded by the configured maximum.
type RefinementState struct {
	ConversationID string
	Rounds         []ThinkingRound
	BestRound      int
	BestScore      float64
	BestText       string
	HasBest        bool
	Cost           CallCost
	StopReason     StopReason
}

// RecordRound appends a completed round and updates the running best.
func (s *RefinementState) RecordRound(round ThinkingRound) {
	s.Rounds = append(s.Rounds, round)
	s.Cost = s.Cost.Add(round.Cost)

	if round.Selected == nil {
		return
	}
	if !s.HasBest || round.Selected.Score > s.BestScore {
		s.HasBest = true
		s.BestRound = round.Index
		s.BestScore = round.Selected.Score
		s.BestText = round.Selected.Text
	}
}

// LastImprovement returns the score delta between the two most recent
// rounds. The second value is false until at least two rounds completed.
func (s *RefinementState) LastImprovement() (float64, bool) {
	n := len(s.Rounds)
	if n < 2 {
		return 0, false
	}
	prev, cur := s.Rounds[n-2].Selected, s.Rounds[n-1].Selected
	if prev == nil || cur == nil {
		return 0, false
	}
	return cur.Score - prev.Score, true
}

// FinalAnswer is the terminal result returned to the caller, built from
// the best-scoring round observed across the whole conversation.
type FinalAnswer struct {
	Text            string            `json:"text"`
	Score           float64           `json:"score"`
	RoundsUsed      int               `json:"rounds_used"`
	BestRound       int               `json:"best_round"`
	TotalCost       CallCost          `json:"total_cost"`
	BreakerStates   map[string]string `json:"breaker_states,omitempty"`
	StopReason      StopReason        `json:"stop_reason"`
	RecursionFailed bool              `json:"recursion_failed,omitempty"`
}
