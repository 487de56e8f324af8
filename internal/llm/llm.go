// Package llm adapts the configured model providers to the single-prompt
// Generator contract used by the reviewer agent and the aggregator.
package llm

import (
	"context"
	"errors"

	"github.com/sevigo/goframe/llms"
)

// Generator produces a completion for a single prompt.
//
//go:generate mockgen -destination=../../mocks/mock_generator.go -package=mocks . Generator
type Generator interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// TokenCounter is implemented by generators that can count tokens natively.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

var errNoTokenizer = errors.New("model does not expose a tokenizer")

// ModelGenerator wraps a goframe model.
type ModelGenerator struct {
	model llms.Model
}

// NewModelGenerator returns a Generator backed by model.
func NewModelGenerator(model llms.Model) *ModelGenerator {
	return &ModelGenerator{model: model}
}

func (g *ModelGenerator) Call(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.model, prompt)
}

// CountTokens uses the model's tokenizer when it has one.
func (g *ModelGenerator) CountTokens(ctx context.Context, text string) (int, error) {
	t, ok := g.model.(llms.Tokenizer)
	if !ok {
		return 0, errNoTokenizer
	}
	return t.CountTokens(ctx, text)
}
