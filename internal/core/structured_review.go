package core

import "strings"

// Severity of a single finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityRank orders severities; higher is worse. Unknown severities rank as info.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// NormalizeSeverity maps free-form model output ("High", "MAJOR", "warning") onto a Severity.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker":
		return SeverityCritical
	case "high", "major", "error":
		return SeverityHigh
	case "medium", "moderate", "warning":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Issue is one finding reported by a reviewer.
type Issue struct {
	IssueType      string   `json:"issue_type"`
	Severity       Severity `json:"severity"`
	FilePath       string   `json:"file_path"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
}

// StructuredResult is the machine-readable output of one reviewer invocation.
type StructuredResult struct {
	FilePath string  `json:"file_path"`
	Issues   []Issue `json:"issues"`
}

// Verdict is the merge decision derived from the findings.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictComment Verdict = "comment"
	VerdictBlock   Verdict = "block"
)

// Summary is the final synthesis of a run.
type Summary struct {
	Text            string           `json:"text"`
	Verdict         Verdict          `json:"verdict"`
	HighestSeverity Severity         `json:"highest_severity,omitempty"`
	IssueCounts     map[Severity]int `json:"issue_counts"`
	FilesReviewed   int              `json:"files_reviewed"`
	FilesFailed     []string         `json:"files_failed,omitempty"`
	FilesSkipped    []string         `json:"files_skipped,omitempty"`
	Partial         bool             `json:"partial"`
	Truncated       bool             `json:"truncated"`
}

// NoChangesText is the summary text used when there is nothing to summarize.
const NoChangesText = "No changes to review."

// NothingReviewedText replaces NoChangesText when files were changed but
// none of them could be reviewed.
const NothingReviewedText = "No files could be reviewed."

// NotReviewed returns the failed and the skipped files.
func (s *Summary) NotReviewed() []string {
	out := make([]string, 0, len(s.FilesFailed)+len(s.FilesSkipped))
	out = append(out, s.FilesFailed...)
	return append(out, s.FilesSkipped...)
}

// Tally fills the severity counts, highest severity and verdict from results.
func (s *Summary) Tally(results []StructuredResult) {
	s.IssueCounts = make(map[Severity]int)
	s.HighestSeverity = ""
	highest := -1
	for _, r := range results {
		for _, issue := range r.Issues {
			s.IssueCounts[issue.Severity]++
			if rank := SeverityRank(issue.Severity); rank > highest {
				highest = rank
				s.HighestSeverity = issue.Severity
			}
		}
	}

	switch {
	case highest >= SeverityRank(SeverityHigh):
		s.Verdict = VerdictBlock
	case highest >= SeverityRank(SeverityLow):
		s.Verdict = VerdictComment
	default:
		s.Verdict = VerdictApprove
	}
}
