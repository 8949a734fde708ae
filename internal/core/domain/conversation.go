package domain

import "time"

// Message roles mirror the chat completion wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation groups the ordered message history for one caller session.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApproxTokens estimates the token count of a message. Real tokenization
// lives upstream; four characters per token is close enough for trimming.
func (m Message) ApproxTokens() int {
	n := len(m.Content) / 4
	if n == 0 {
		n = 1
	}
	return n
}
