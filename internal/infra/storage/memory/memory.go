// Package memory provides an in-process ConversationRepository used in
// tests and when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

type conversation struct {
	messages []domain.Message
	answers  []domain.FinalAnswer
}

// Repository keeps conversations in a map guarded by one RWMutex.
type Repository struct {
	mu    sync.RWMutex
	convs map[string]*conversation
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{convs: make(map[string]*conversation)}
}

// History returns a copy of the conversation's messages.
func (r *Repository) History(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.convs[conversationID]
	if !ok {
		return nil, nil
	}
	return append([]domain.Message(nil), c.messages...), nil
}

// Append adds messages to the conversation, creating it on first use.
func (r *Repository) Append(_ context.Context, conversationID string, msgs ...domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convs[conversationID]
	if !ok {
		c = &conversation{}
		r.convs[conversationID] = c
	}
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		c.messages = append(c.messages, m)
	}
	return nil
}

// RecordAnswer stores a terminal answer.
func (r *Repository) RecordAnswer(_ context.Context, conversationID string, answer domain.FinalAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convs[conversationID]
	if !ok {
		c = &conversation{}
		r.convs[conversationID] = c
	}
	c.answers = append(c.answers, answer)
	return nil
}

// Answers returns recorded answers for assertions in tests.
func (r *Repository) Answers(conversationID string) []domain.FinalAnswer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.convs[conversationID]
	if !ok {
		return nil
	}
	return append([]domain.FinalAnswer(nil), c.answers...)
}
