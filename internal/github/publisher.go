package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
)

// maxCommentBytes stays under GitHub's 65536 character limit for comment bodies.
const maxCommentBytes = 60000

const truncatedNotice = "\n\n_Comment truncated. See the full report for the remaining findings._\n"

// Publisher posts a review report as a pull request comment.
type Publisher struct {
	client Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(client Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// Publish comments the report summary on pr. A head branch that differs from
// the reviewed source branch is logged but does not prevent the comment.
func (p *Publisher) Publish(ctx context.Context, pr *gitutil.PullRequest, report *core.Report) error {
	if report == nil || report.Summary == nil {
		return fmt.Errorf("failed to publish review: report has no summary")
	}

	ghPR, err := p.client.GetPullRequest(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		return fmt.Errorf("failed to get pull request %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
	}
	if head := ghPR.GetHead().GetRef(); head != "" && report.SourceBranch != "" && head != report.SourceBranch {
		p.logger.WarnContext(ctx, "pull request head differs from reviewed branch",
			"pr_head", head, "source_branch", report.SourceBranch)
	}

	body := FormatReport(report)
	if err := p.client.CreateComment(ctx, pr.Owner, pr.Repo, pr.Number, body); err != nil {
		return fmt.Errorf("failed to comment on %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
	}
	p.logger.InfoContext(ctx, "review published", "task_id", report.Task.ID, "pr", pr.Number)
	return nil
}

// FormatReport renders the comment body: verdict, summary text, statistics
// and one collapsible section per file with findings.
func FormatReport(report *core.Report) string {
	var sb strings.Builder
	s := report.Summary

	fmt.Fprintf(&sb, "### %s Verdict: %s\n\n", verdictIcon(s.Verdict), strings.ToUpper(string(s.Verdict)))
	if s.Partial {
		fmt.Fprintf(&sb, "> [!WARNING]\n> Partial review: %d file(s) could not be reviewed.\n\n", len(s.NotReviewed()))
	}
	sb.WriteString(strings.TrimSpace(s.Text))
	sb.WriteString("\n\n")

	writeStatistics(&sb, s)

	for _, result := range report.Structured {
		if len(result.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "<details>\n<summary><code>%s</code> (%d)</summary>\n\n", result.FilePath, len(result.Issues))
		for _, issue := range result.Issues {
			sb.WriteString(formatIssue(issue))
			sb.WriteString("\n")
		}
		sb.WriteString("</details>\n\n")
	}

	if notReviewed := s.NotReviewed(); len(notReviewed) > 0 {
		sb.WriteString("#### Files not reviewed\n\n")
		for _, f := range notReviewed {
			fmt.Fprintf(&sb, "- `%s`\n", f)
		}
	}

	return truncateBody(sb.String())
}

func writeStatistics(sb *strings.Builder, s *core.Summary) {
	total := 0
	for _, n := range s.IssueCounts {
		total += n
	}
	if total == 0 {
		return
	}
	sb.WriteString("---\n")
	sb.WriteString("#### 📊 Issue Statistics\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("|----------|-------|\n")
	for _, sev := range severityOrder {
		if count := s.IssueCounts[sev]; count > 0 {
			fmt.Fprintf(sb, "| %s %s | %d |\n", severityEmoji(sev), severityLabel(sev), count)
		}
	}
	sb.WriteString("\n")
}

var severityOrder = []core.Severity{
	core.SeverityCritical,
	core.SeverityHigh,
	core.SeverityMedium,
	core.SeverityLow,
	core.SeverityInfo,
}

// formatIssue renders one finding as a header followed by a severity alert.
func formatIssue(issue core.Issue) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "##### %s %s", severityEmoji(issue.Severity), severityLabel(issue.Severity))
	if issue.IssueType != "" {
		fmt.Fprintf(&sb, " | %s", issue.IssueType)
	}
	sb.WriteString("\n\n")

	state := &commentState{}
	alertType := severityAlert(issue.Severity)
	for line := range strings.SplitSeq(issue.Description, "\n") {
		processCommentLine(&sb, line, state, alertType)
	}
	if state.insideAlert {
		sb.WriteString("\n")
	}
	if rec := strings.TrimSpace(issue.Recommendation); rec != "" {
		fmt.Fprintf(&sb, "**Recommendation:** %s\n", rec)
	}
	return sb.String()
}

type commentState struct {
	insideAlert bool
	inCodeBlock bool
}

func processCommentLine(sb *strings.Builder, line string, state *commentState, alertType string) {
	trimmed := strings.TrimSpace(line)

	if !state.insideAlert && !state.inCodeBlock && trimmed == "" {
		return
	}

	// Code fences are never quoted so they keep rendering as code.
	if strings.HasPrefix(trimmed, "```") {
		if !state.inCodeBlock && state.insideAlert {
			state.insideAlert = false
			sb.WriteString("\n")
		}
		state.inCodeBlock = !state.inCodeBlock
		sb.WriteString(line + "\n")
		return
	}
	if state.inCodeBlock {
		sb.WriteString(line + "\n")
		return
	}

	if strings.HasPrefix(trimmed, ">") {
		line = strings.TrimPrefix(strings.TrimPrefix(trimmed, ">"), " ")
	}

	if !state.insideAlert {
		fmt.Fprintf(sb, "> [!%s]\n", alertType)
		state.insideAlert = true
	}
	if trimmed == "" {
		sb.WriteString(">\n")
		return
	}
	fmt.Fprintf(sb, "> %s\n", line)
}

func truncateBody(body string) string {
	if len(body) <= maxCommentBytes {
		return body
	}
	cut := maxCommentBytes - len(truncatedNotice)
	if i := strings.LastIndex(body[:cut], "\n"); i > 0 {
		cut = i
	}
	return body[:cut] + truncatedNotice
}

func verdictIcon(v core.Verdict) string {
	switch v {
	case core.VerdictApprove:
		return "✅"
	case core.VerdictBlock:
		return "🚫"
	case core.VerdictComment:
		return "💬"
	default:
		return "📝"
	}
}

func severityLabel(s core.Severity) string {
	if s == "" {
		return "Info"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

func severityEmoji(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return "🔴"
	case core.SeverityHigh:
		return "🟠"
	case core.SeverityMedium:
		return "🟡"
	case core.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// severityAlert maps a severity to a GitHub alert type.
func severityAlert(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return "CAUTION"
	case core.SeverityHigh:
		return "WARNING"
	case core.SeverityMedium:
		return "IMPORTANT"
	default:
		return "NOTE"
	}
}
