package domain

import "time"

// GenParams are the generation parameters sent to the upstream provider.
// They are part of the cache fingerprint.
type GenParams struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Seed        int     `json:"seed"`
}

// CallCost accumulates upstream usage for budget accounting.
type CallCost struct {
	Calls            int `json:"calls"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add returns the sum of two costs.
func (c CallCost) Add(other CallCost) CallCost {
	return CallCost{
		Calls:            c.Calls + other.Calls,
		PromptTokens:     c.PromptTokens + other.PromptTokens,
		CompletionTokens: c.CompletionTokens + other.CompletionTokens,
	}
}

// TotalTokens returns prompt plus completion tokens.
func (c CallCost) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

// Generation is one successful upstream completion.
type Generation struct {
	Text string   `json:"text"`
	Cost CallCost `json:"cost"`
}

// RoundInput is everything a single thinking round is generated from.
type RoundInput struct {
	ConversationID string    `json:"conversation_id"`
	RoundIndex     int       `json:"round_index"`
	Prompt         string    `json:"prompt"`
	Context        []Message `json:"context"`
	Params         GenParams `json:"params"`
}

// CandidateOutcome is the result of one candidate generation within a round.
// Either Text is set (success) or Err is set (failure), never both.
type CandidateOutcome struct {
	Index     int
	Text      string
	Score     float64
	Latency   time.Duration
	Cost      CallCost
	FromCache bool
	Err       error
}

// Succeeded reports whether this candidate produced a usable payload.
func (c CandidateOutcome) Succeeded() bool { return c.Err == nil }

// ThinkingRound is one completed fan-out iteration.
type ThinkingRound struct {
	Index      int
	Input      RoundInput
	Candidates []CandidateOutcome
	Selected   *CandidateOutcome
	Cost       CallCost
	Duration   time.Duration
}
