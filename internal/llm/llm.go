// Package llm wraps the language-model backend. The orchestrator depends
// on the small Client interface, not on the vendor SDK, so tests can
// substitute a fake and count invocations.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the minimal subset of the OpenAI client the orchestrator uses.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	BaseURL string
	APIKey  string
}

// NewClient creates the real backend client.
func NewClient(cfg Config) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}
