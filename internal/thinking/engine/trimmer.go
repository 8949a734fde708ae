package engine

import "github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"

// ContextTrimmer reduces a conversation history to a token budget. The
// real compression algorithm is an external collaborator; the engine
// only depends on this interface.
type ContextTrimmer interface {
	Trim(history []domain.Message, tokenBudget int) []domain.Message
}

// TailTrimmer keeps the newest messages that fit the budget. It is the
// default trimmer when no external context manager is wired in.
type TailTrimmer struct{}

// Trim drops the oldest messages first until the approximate token
// count fits the budget. A budget of zero keeps everything.
func (TailTrimmer) Trim(history []domain.Message, tokenBudget int) []domain.Message {
	if tokenBudget <= 0 || len(history) == 0 {
		return history
	}

	total := 0
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += history[i].ApproxTokens()
		if total > tokenBudget {
			break
		}
		cut = i
	}
	return history[cut:]
}
