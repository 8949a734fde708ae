package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// MockOutcome scripts one Generate call on the mock provider.
type MockOutcome struct {
	Text    string
	Err     error
	Latency time.Duration
}

// Mock is a scripted in-process generator used by tests and dry-run
// mode. Outcomes are served in FIFO order; once the script is exhausted
// every call succeeds with a deterministic synthetic answer.
type Mock struct {
	mu      sync.Mutex
	script  []MockOutcome
	calls   int
	prompts []string
}

// NewMock creates a mock provider with an optional outcome script.
func NewMock(script ...MockOutcome) *Mock {
	return &Mock{script: script}
}

// Enqueue appends outcomes to the script.
func (m *Mock) Enqueue(outcomes ...MockOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, outcomes...)
}

// Endpoint keys breakers per model, like a real provider.
func (m *Mock) Endpoint(params domain.GenParams) string {
	return fmt.Sprintf("mock/%s", params.Model)
}

// Generate serves the next scripted outcome, honoring its latency and
// the caller's context.
func (m *Mock) Generate(ctx context.Context, prompt string, _ []domain.Message, params domain.GenParams) (domain.Generation, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, prompt)

	var out MockOutcome
	if len(m.script) > 0 {
		out = m.script[0]
		m.script = m.script[1:]
	} else {
		out = MockOutcome{Text: fmt.Sprintf("synthetic answer %d (model=%s seed=%d)", call, params.Model, params.Seed)}
	}
	m.mu.Unlock()

	if out.Latency > 0 {
		select {
		case <-ctx.Done():
			return domain.Generation{}, ctx.Err()
		case <-time.After(out.Latency):
		}
	} else if ctx.Err() != nil {
		return domain.Generation{}, ctx.Err()
	}

	if out.Err != nil {
		return domain.Generation{}, out.Err
	}
	return domain.Generation{
		Text: out.Text,
		Cost: domain.CallCost{
			Calls:            1,
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(out.Text) / 4,
		},
	}, nil
}

// Calls returns how many Generate calls were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns the prompts seen so far, in call order.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
