// Package provider abstracts the upstream text-generation service. The
// rest of the system only sees Generator; the concrete client maps wire
// failures onto the domain error kinds.
package provider

import (
	"context"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// Generator is one upstream text-generation service.
type Generator interface {
	// Generate produces a completion for the prompt within the given
	// conversation context. Failures carry a domain.ErrorKind.
	Generate(ctx context.Context, prompt string, context_ []domain.Message, params domain.GenParams) (domain.Generation, error)

	// Endpoint returns the breaker/budget key for the given parameters,
	// e.g. "openai/gpt-4o-mini". Distinct models are isolated from each
	// other's failures.
	Endpoint(params domain.GenParams) string
}

// Config selects and configures the upstream provider.
type Config struct {
	Type    string `yaml:"type"` // "openai" or "mock"
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}
