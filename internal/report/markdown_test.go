package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/core"
)

func sampleReport() *core.Report {
	structured := []core.StructuredResult{
		{FilePath: "a.py", Issues: []core.Issue{{
			IssueType:      "bug",
			Severity:       core.SeverityMedium,
			Description:    "Divides by zero when\nlist is empty | sometimes",
			Recommendation: "Guard the length.",
		}}},
		{FilePath: "b.py", Issues: []core.Issue{}},
	}
	summary := &core.Summary{Text: "One medium finding.", FilesReviewed: 2, FilesFailed: []string{"c.py"}, Partial: true}
	summary.Tally(structured)
	return &core.Report{
		Task:         core.Task{ID: "task-9"},
		ProjectPath:  "/src/app",
		SourceBranch: "feature/x",
		TargetBranch: "main",
		Summary:      summary,
		Structured:   structured,
		Outcomes: []core.FileOutcome{
			{FilePath: "a.py", Status: core.FileCompleted},
			{FilePath: "b.py", Status: core.FileCompleted},
			{FilePath: "c.py", Status: core.FileFailed, Error: "review timed out"},
		},
	}
}

func TestMarkdown(t *testing.T) {
	generated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := Markdown(sampleReport(), Meta{Model: "qwen2.5-coder", Provider: "ollama", Generated: generated})

	for _, want := range []string{
		"# Git Branch Diff Summary",
		"- **Project Path**: /src/app",
		"- **Source Branch**: feature/x",
		"- **Target Branch**: main",
		"- **AI Provider**: ollama",
		"- **AI Model**: qwen2.5-coder",
		"- **Task ID**: task-9",
		"- **Generated**: 2026-01-02T03:04:05Z",
		"**Verdict**: comment (highest severity: medium)",
		"> Partial review: 1 file(s) could not be reviewed.",
		"One medium finding.",
		"### a.py",
		`| medium | bug | Divides by zero when<br>list is empty \| sometimes | Guard the length. |`,
		"- `c.py`: review timed out",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "### b.py")
	assert.NotContains(t, out, "left out of the summary input")
	assert.NotContains(t, out, "## Skipped Files")
}

func TestMarkdown_SkippedFiles(t *testing.T) {
	rep := sampleReport()
	rep.Summary.FilesSkipped = []string{"d.py"}

	out := Markdown(rep, Meta{Model: "m"})

	assert.Contains(t, out, "> Partial review: 2 file(s) could not be reviewed.")
	assert.Contains(t, out, "## Skipped Files")
	assert.Contains(t, out, "- `d.py`: marked reviewed without a result in this run")
}

func TestMarkdown_NoFindings(t *testing.T) {
	summary := &core.Summary{Text: core.NoChangesText}
	summary.Tally(nil)
	out := Markdown(&core.Report{Summary: summary}, Meta{Model: "m"})

	assert.Contains(t, out, "**Verdict**: approve\n")
	assert.Contains(t, out, core.NoChangesText)
	assert.NotContains(t, out, "## Findings")
	assert.NotContains(t, out, "## Failed Files")
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "review.md")

	require.NoError(t, WriteMarkdown(path, sampleReport(), Meta{Model: "m"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "One medium finding.")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteMarkdown_MissingSummary(t *testing.T) {
	err := WriteMarkdown(filepath.Join(t.TempDir(), "r.md"), &core.Report{}, Meta{})
	assert.Error(t, err)
}
