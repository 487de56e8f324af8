package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicGenerator calls the Anthropic Messages API with a single user turn.
type AnthropicGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator builds a client for apiKey.
func NewAnthropicGenerator(apiKey, model string, maxTokens int) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set for anthropic provider")
	}
	if model == "" {
		return nil, errors.New("anthropic model cannot be empty")
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGenerator{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

func (g *AnthropicGenerator) Call(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
