package llm

import "context"

// charsPerToken is the fallback ratio when no tokenizer is available.
const charsPerToken = 3

// EstimateTokens is a fast character-based token estimate.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// CountTokens counts tokens with gen's tokenizer when it implements
// TokenCounter, falling back to EstimateTokens on absence or error.
func CountTokens(ctx context.Context, gen Generator, text string) int {
	if tc, ok := gen.(TokenCounter); ok {
		n, err := tc.CountTokens(ctx, text)
		if err == nil {
			return n
		}
	}
	return EstimateTokens(text)
}
