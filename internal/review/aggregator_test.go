package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/llm"
	"github.com/montarelab/rev-ai/mocks"
)

func promptManager(t *testing.T) *llm.PromptManager {
	t.Helper()
	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	return pm
}

// issueCountingGenerator counts 100 tokens per serialized issue.
type issueCountingGenerator struct {
	prompts []string
	reply   string
}

func (g *issueCountingGenerator) Call(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

func (g *issueCountingGenerator) CountTokens(_ context.Context, text string) (int, error) {
	return strings.Count(text, `"description"`) * 100, nil
}

func issue(sev core.Severity, desc string) core.Issue {
	return core.Issue{IssueType: "bug", Severity: sev, Description: desc}
}

func TestAggregator_EmptyInputSkipsModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)

	agg := NewAggregator(gen, promptManager(t), llm.DefaultProvider, 0, discard)
	summary, err := agg.Summarize(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, core.NoChangesText, summary.Text)
	assert.Equal(t, core.VerdictApprove, summary.Verdict)
	assert.Zero(t, summary.FilesReviewed)
	assert.False(t, summary.Truncated)
}

func TestAggregator_Summarize(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Call(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, `"file_path": "a.py"`)
		assert.Contains(t, prompt, `"file_path": "b.py"`)
		assert.Contains(t, prompt, "sql injection")
		assert.Contains(t, prompt, "c.py")
		assert.Less(t, strings.Index(prompt, `"a.py"`), strings.Index(prompt, `"b.py"`))
		return "  # Overview\nLooks risky.  ", nil
	})

	results := []core.StructuredResult{
		{FilePath: "b.py", Issues: []core.Issue{issue(core.SeverityLow, "unused import")}},
		{FilePath: "a.py", Issues: []core.Issue{issue(core.SeverityCritical, "sql injection")}},
	}
	agg := NewAggregator(gen, promptManager(t), "ollama", 0, discard)
	summary, err := agg.SummarizeWithFailures(context.Background(), results, []string{"c.py"})
	require.NoError(t, err)

	assert.Equal(t, "# Overview\nLooks risky.", summary.Text)
	assert.Equal(t, core.VerdictBlock, summary.Verdict)
	assert.Equal(t, core.SeverityCritical, summary.HighestSeverity)
	assert.Equal(t, 2, summary.FilesReviewed)
	assert.Equal(t, []string{"c.py"}, summary.FilesFailed)
	assert.False(t, summary.Truncated)
	assert.Equal(t, "b.py", results[0].FilePath, "input is not reordered")
}

func TestAggregator_TruncatesLowestSeverityFirst(t *testing.T) {
	gen := &issueCountingGenerator{reply: "summary"}
	results := []core.StructuredResult{
		{FilePath: "a.go", Issues: []core.Issue{issue(core.SeverityCritical, "crit-a"), issue(core.SeverityLow, "low-a")}},
		{FilePath: "b.go", Issues: []core.Issue{issue(core.SeverityInfo, "info-b"), issue(core.SeverityHigh, "high-b")}},
	}

	agg := NewAggregator(gen, promptManager(t), llm.DefaultProvider, 250, discard)
	summary, err := agg.Summarize(context.Background(), results)
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "crit-a")
	assert.Contains(t, prompt, "high-b")
	assert.NotContains(t, prompt, "low-a")
	assert.NotContains(t, prompt, "info-b")
	assert.Contains(t, prompt, "omitted")

	assert.True(t, summary.Truncated)
	assert.Equal(t, 1, summary.IssueCounts[core.SeverityLow], "metadata counts every issue")
	assert.Equal(t, 1, summary.IssueCounts[core.SeverityInfo])
	assert.Len(t, results[0].Issues, 2, "input is not mutated")
}

func TestAggregator_OverBudgetWithNothingLeftStillSummarizes(t *testing.T) {
	gen := &issueCountingGenerator{reply: "summary"}
	results := []core.StructuredResult{
		{FilePath: "a.go", Issues: []core.Issue{issue(core.SeverityHigh, "x")}},
	}
	agg := NewAggregator(gen, promptManager(t), llm.DefaultProvider, 1, discard)

	// With every issue dropped the counter reports 0 tokens, which fits.
	summary, err := agg.Summarize(context.Background(), results)
	require.NoError(t, err)
	assert.True(t, summary.Truncated)
	assert.Equal(t, core.VerdictBlock, summary.Verdict)
}

func TestAggregator_ModelError(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Call(gomock.Any(), gomock.Any()).Return("", errors.New("connection refused"))

	agg := NewAggregator(gen, promptManager(t), llm.DefaultProvider, 0, discard)
	_, err := agg.Summarize(context.Background(), []core.StructuredResult{{FilePath: "a.go"}})
	assert.ErrorContains(t, err, "connection refused")
}

func TestDropLowest(t *testing.T) {
	results := []core.StructuredResult{
		{FilePath: "a", Issues: []core.Issue{issue(core.SeverityLow, "a1"), issue(core.SeverityMedium, "a2")}},
		{FilePath: "b", Issues: []core.Issue{issue(core.SeverityLow, "b1"), issue(core.SeverityInfo, "b2")}},
	}

	descs := func(rs []core.StructuredResult) []string {
		var out []string
		for _, r := range rs {
			for _, i := range r.Issues {
				out = append(out, i.Description)
			}
		}
		return out
	}

	assert.Equal(t, []string{"a1", "a2", "b1"}, descs(dropLowest(results, 1)))
	assert.Equal(t, []string{"a1", "a2"}, descs(dropLowest(results, 2)))
	assert.Equal(t, []string{"a2"}, descs(dropLowest(results, 3)))
	assert.Empty(t, descs(dropLowest(results, 10)))
	assert.Len(t, dropLowest(results, 10), 2, "files are kept")
}
