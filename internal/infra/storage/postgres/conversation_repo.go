// Package postgres persists conversation history and answers in
// PostgreSQL via sqlx. Schema lives in the migrations directory.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// ConversationRepo implements storage.ConversationRepository.
type ConversationRepo struct {
	db *DB
}

// NewConversationRepo creates a postgres-backed repository.
func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type messageRow struct {
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// History returns the ordered messages for a conversation.
func (r *ConversationRepo) History(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT role, content, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	msgs := make([]domain.Message, len(rows))
	for i, row := range rows {
		msgs[i] = domain.Message{
			Role:      row.Role,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
	}
	return msgs, nil
}

// Append adds messages to the end of a conversation's history.
func (r *ConversationRepo) Append(ctx context.Context, conversationID string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_messages (conversation_id, seq, role, content, created_at)
			VALUES ($1,
				(SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_messages WHERE conversation_id = $1),
				$2, $3, $4)`,
			conversationID, m.Role, m.Content, createdAt)
		if err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RecordAnswer stores a terminal answer with its provenance as JSON.
func (r *ConversationRepo) RecordAnswer(ctx context.Context, conversationID string, answer domain.FinalAnswer) error {
	provenance, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversation_answers (conversation_id, text, score, rounds_used, stop_reason, provenance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conversationID, answer.Text, answer.Score, answer.RoundsUsed,
		string(answer.StopReason), provenance, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}
