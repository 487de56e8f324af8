// Package report writes review reports to disk.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/montarelab/rev-ai/internal/core"
)

// Meta is the run configuration printed at the top of the report.
type Meta struct {
	Model     string
	Provider  string
	Generated time.Time
}

var separator = strings.Repeat("=", 80)

// WriteMarkdown renders r to path, creating parent directories. The file is
// written to a sibling temp file first and renamed into place.
func WriteMarkdown(path string, r *core.Report, meta Meta) error {
	if r == nil || r.Summary == nil {
		return fmt.Errorf("failed to write report: report has no summary")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(Markdown(r, meta)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

// Markdown renders the report body.
func Markdown(r *core.Report, meta Meta) string {
	if meta.Generated.IsZero() {
		meta.Generated = time.Now()
	}
	s := r.Summary
	var sb strings.Builder

	sb.WriteString("# Git Branch Diff Summary\n\n")

	section(&sb, "Configuration")
	fmt.Fprintf(&sb, "- **Project Path**: %s\n", r.ProjectPath)
	fmt.Fprintf(&sb, "- **Source Branch**: %s\n", r.SourceBranch)
	fmt.Fprintf(&sb, "- **Target Branch**: %s\n", r.TargetBranch)
	if meta.Provider != "" {
		fmt.Fprintf(&sb, "- **AI Provider**: %s\n", meta.Provider)
	}
	fmt.Fprintf(&sb, "- **AI Model**: %s\n", meta.Model)
	fmt.Fprintf(&sb, "- **Task ID**: %s\n", r.Task.ID)
	fmt.Fprintf(&sb, "- **Generated**: %s\n\n", meta.Generated.Format(time.RFC3339))

	section(&sb, "Summary")
	fmt.Fprintf(&sb, "**Verdict**: %s", s.Verdict)
	if s.HighestSeverity != "" {
		fmt.Fprintf(&sb, " (highest severity: %s)", s.HighestSeverity)
	}
	sb.WriteString("\n\n")
	if s.Partial {
		fmt.Fprintf(&sb, "> Partial review: %d file(s) could not be reviewed.\n\n", len(s.NotReviewed()))
	}
	if s.Truncated {
		sb.WriteString("> Some low-severity findings were left out of the summary input.\n\n")
	}
	sb.WriteString(strings.TrimSpace(s.Text))
	sb.WriteString("\n\n")

	if hasIssues(r.Structured) {
		section(&sb, "Findings")
		for _, result := range r.Structured {
			if len(result.Issues) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "### %s\n\n", result.FilePath)
			sb.WriteString("| Severity | Type | Description | Recommendation |\n")
			sb.WriteString("|----------|------|-------------|----------------|\n")
			for _, issue := range result.Issues {
				fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
					issue.Severity, cell(issue.IssueType), cell(issue.Description), cell(issue.Recommendation))
			}
			sb.WriteString("\n")
		}
	}

	if len(s.FilesFailed) > 0 {
		section(&sb, "Failed Files")
		for _, o := range r.Outcomes {
			if o.Status == core.FileFailed {
				fmt.Fprintf(&sb, "- `%s`: %s\n", o.FilePath, o.Error)
			}
		}
		sb.WriteString("\n")
	}

	if len(s.FilesSkipped) > 0 {
		section(&sb, "Skipped Files")
		for _, path := range s.FilesSkipped {
			fmt.Fprintf(&sb, "- `%s`: marked reviewed without a result in this run\n", path)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(separator)
	sb.WriteString("\n")
	return sb.String()
}

func section(sb *strings.Builder, title string) {
	fmt.Fprintf(sb, "%s\n## %s\n%s\n\n", separator, title, separator)
}

func hasIssues(results []core.StructuredResult) bool {
	for _, r := range results {
		if len(r.Issues) > 0 {
			return true
		}
	}
	return false
}

// cell makes text safe for a single Markdown table cell.
func cell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}
