package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// OpenAI talks to any OpenAI-compatible chat completion API (OpenAI
// itself, or local servers like Ollama/vLLM via BaseURL).
type OpenAI struct {
	client *openai.Client
	name   string
}

// NewOpenAI creates a provider from config. BaseURL is optional and
// overrides the default API host.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		name:   "openai",
	}
}

// Endpoint keys breakers and budgets per model.
func (p *OpenAI) Endpoint(params domain.GenParams) string {
	return fmt.Sprintf("%s/%s", p.name, params.Model)
}

// Generate issues one chat completion call.
func (p *OpenAI) Generate(ctx context.Context, prompt string, history []domain.Message, params domain.GenParams) (domain.Generation, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	if params.Seed != 0 {
		seed := params.Seed
		req.Seed = &seed
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Generation{}, p.wrapError(params, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Generation{}, domain.NewCallError(
			domain.KindTransient, p.Endpoint(params), errors.New("empty choices in response"))
	}

	return domain.Generation{
		Text: resp.Choices[0].Message.Content,
		Cost: domain.CallCost{
			Calls:            1,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// wrapError maps API failures onto domain error kinds so the resilience
// layers can classify without knowing the wire format.
func (p *OpenAI) wrapError(params domain.GenParams, err error) error {
	endpoint := p.Endpoint(params)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewCallError(kindForStatus(apiErr.HTTPStatusCode), endpoint, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Connection resets, DNS failures, unexpected EOFs.
	return domain.NewCallError(domain.KindTransient, endpoint, err)
}

func kindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.KindUnauthorized
	case status >= 400 && status < 500:
		return domain.KindInvalidRequest
	default:
		return domain.KindTransient
	}
}
