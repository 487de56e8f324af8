package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/llm"
)

// DefaultMaxInputTokens is the summary prompt budget when none is configured.
const DefaultMaxInputTokens = 32000

// Aggregator reduces the structured results of a run to one Summary with a
// single model call.
type Aggregator struct {
	gen            llm.Generator
	prompts        *llm.PromptManager
	provider       llm.ModelProvider
	maxInputTokens int
	logger         *slog.Logger
}

func NewAggregator(gen llm.Generator, prompts *llm.PromptManager, provider llm.ModelProvider, maxInputTokens int, logger *slog.Logger) *Aggregator {
	if maxInputTokens <= 0 {
		maxInputTokens = DefaultMaxInputTokens
	}
	if provider == "" {
		provider = llm.DefaultProvider
	}
	return &Aggregator{
		gen:            gen,
		prompts:        prompts,
		provider:       provider,
		maxInputTokens: maxInputTokens,
		logger:         logger,
	}
}

type summaryData struct {
	Results     string
	Truncated   bool
	FailedFiles []string
}

// Summarize synthesises results. With no results it returns the fixed
// no-changes summary without calling the model.
func (a *Aggregator) Summarize(ctx context.Context, results []core.StructuredResult) (*core.Summary, error) {
	return a.SummarizeWithFailures(ctx, results, nil)
}

// SummarizeWithFailures is Summarize with the list of files that could not
// be reviewed passed on to the model.
func (a *Aggregator) SummarizeWithFailures(ctx context.Context, results []core.StructuredResult, failed []string) (*core.Summary, error) {
	summary := &core.Summary{FilesReviewed: len(results), FilesFailed: failed}
	summary.Tally(results)

	if len(results) == 0 {
		summary.Text = core.NoChangesText
		if len(failed) > 0 {
			summary.Text = core.NothingReviewedText
		}
		return summary, nil
	}

	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(x, y core.StructuredResult) int {
		return strings.Compare(x.FilePath, y.FilePath)
	})

	prompt, dropped, err := a.fitPrompt(ctx, sorted, failed)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		summary.Truncated = true
		a.logger.Warn("summary input exceeded the token budget, dropped lowest-severity issues",
			"dropped_issues", dropped,
			"budget_tokens", a.maxInputTokens)
	}

	text, err := a.gen.Call(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	summary.Text = strings.TrimSpace(text)
	return summary, nil
}

// fitPrompt renders the summary prompt, dropping the lowest-severity issues
// until it fits the budget. It returns the number of dropped issues.
func (a *Aggregator) fitPrompt(ctx context.Context, results []core.StructuredResult, failed []string) (string, int, error) {
	total := 0
	for _, r := range results {
		total += len(r.Issues)
	}

	dropped := 0
	current := results
	for {
		prompt, err := a.render(current, dropped > 0, failed)
		if err != nil {
			return "", 0, err
		}
		tokens := llm.CountTokens(ctx, a.gen, prompt)
		if tokens <= a.maxInputTokens {
			return prompt, dropped, nil
		}
		remaining := total - dropped
		if remaining == 0 {
			a.logger.Warn("summary input still exceeds the token budget with all issues dropped",
				"tokens", tokens, "budget_tokens", a.maxInputTokens)
			return prompt, dropped, nil
		}
		// Drop a tenth of what is left per round to bound the number of token counts.
		dropped += max(1, remaining/10)
		current = dropLowest(results, dropped)
	}
}

func (a *Aggregator) render(results []core.StructuredResult, truncated bool, failed []string) (string, error) {
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize results: %w", err)
	}
	prompt, err := a.prompts.Render(llm.SummaryPrompt, a.provider, summaryData{
		Results:     string(payload),
		Truncated:   truncated,
		FailedFiles: failed,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render summary prompt: %w", err)
	}
	return prompt, nil
}

type issueRef struct {
	result, issue int
	rank          int
}

// dropLowest returns a copy of results without the n lowest-severity issues.
// Among equal severities, later files and later issues are dropped first.
func dropLowest(results []core.StructuredResult, n int) []core.StructuredResult {
	var refs []issueRef
	for i, r := range results {
		for j, issue := range r.Issues {
			refs = append(refs, issueRef{result: i, issue: j, rank: core.SeverityRank(issue.Severity)})
		}
	}
	slices.SortStableFunc(refs, func(x, y issueRef) int {
		if x.rank != y.rank {
			return x.rank - y.rank
		}
		if x.result != y.result {
			return y.result - x.result
		}
		return y.issue - x.issue
	})

	drop := make(map[[2]int]bool, n)
	for _, ref := range refs[:min(n, len(refs))] {
		drop[[2]int{ref.result, ref.issue}] = true
	}

	out := make([]core.StructuredResult, len(results))
	for i, r := range results {
		out[i] = core.StructuredResult{FilePath: r.FilePath, Issues: []core.Issue{}}
		for j, issue := range r.Issues {
			if !drop[[2]int{i, j}] {
				out[i].Issues = append(out[i].Issues, issue)
			}
		}
	}
	return out
}
