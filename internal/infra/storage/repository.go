// Package storage persists conversation history. The engine only
// depends on the repository interface; memory and postgres
// implementations live in subpackages.
package storage

import (
	"context"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// ConversationRepository stores ordered conversation histories and the
// answers the engine produced for them.
type ConversationRepository interface {
	// History returns the ordered messages for a conversation. An
	// unknown conversation returns an empty history, not an error.
	History(ctx context.Context, conversationID string) ([]domain.Message, error)

	// Append adds messages to the end of a conversation's history.
	Append(ctx context.Context, conversationID string, msgs ...domain.Message) error

	// RecordAnswer stores a terminal answer with its provenance.
	RecordAnswer(ctx context.Context, conversationID string, answer domain.FinalAnswer) error
}
