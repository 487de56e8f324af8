package github

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
	"github.com/montarelab/rev-ai/mocks"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testReport() *core.Report {
	summary := &core.Summary{Text: "Two problems in the loop handling.", FilesFailed: []string{"c.go"}, Partial: true}
	structured := []core.StructuredResult{
		{FilePath: "a.go", Issues: []core.Issue{
			{IssueType: "bug", Severity: core.SeverityHigh, Description: "Off by one.\n\n```go\nfor i := 0; i <= n; i++ {}\n```", Recommendation: "Use <."},
			{IssueType: "style", Severity: core.SeverityLow, Description: "Name is unclear."},
		}},
		{FilePath: "b.go", Issues: []core.Issue{}},
	}
	summary.Tally(structured)
	return &core.Report{
		Task:         core.Task{ID: "task-1"},
		SourceBranch: "feature",
		TargetBranch: "main",
		Summary:      summary,
		Structured:   structured,
	}
}

func TestFormatReport(t *testing.T) {
	body := FormatReport(testReport())

	for _, want := range []string{
		"### 🚫 Verdict: BLOCK",
		"> [!WARNING]\n> Partial review: 1 file(s) could not be reviewed.",
		"Two problems in the loop handling.",
		"| 🟠 High | 1 |",
		"| 🟢 Low | 1 |",
		"<summary><code>a.go</code> (2)</summary>",
		"##### 🟠 High | bug",
		"> [!WARNING]\n> Off by one.",
		"```go\nfor i := 0; i <= n; i++ {}\n```",
		"**Recommendation:** Use <.",
		"> [!NOTE]\n> Name is unclear.",
		"- `c.go`",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "<code>b.go</code>")
	assert.NotContains(t, body, "> ```go")
}

func TestFormatReport_Approve(t *testing.T) {
	summary := &core.Summary{Text: core.NoChangesText}
	summary.Tally(nil)
	body := FormatReport(&core.Report{Summary: summary})

	assert.Contains(t, body, "### ✅ Verdict: APPROVE")
	assert.NotContains(t, body, "Issue Statistics")
	assert.NotContains(t, body, "Partial review")
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("line of text\n", maxCommentBytes/10)
	got := truncateBody(long)
	assert.LessOrEqual(t, len(got), maxCommentBytes)
	assert.True(t, strings.HasSuffix(got, truncatedNotice))

	assert.Equal(t, "short", truncateBody("short"))
}

func TestPublisher_Publish(t *testing.T) {
	pr := &gitutil.PullRequest{Owner: "acme", Repo: "api", Number: 42}

	t.Run("comments the formatted report", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().GetPullRequest(gomock.Any(), "acme", "api", 42).
			Return(&github.PullRequest{Head: &github.PullRequestBranch{Ref: github.Ptr("other")}}, nil)
		client.EXPECT().CreateComment(gomock.Any(), "acme", "api", 42, gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, _ int, body string) error {
				assert.Contains(t, body, "Verdict: BLOCK")
				return nil
			})

		require.NoError(t, NewPublisher(client, discard).Publish(context.Background(), pr, testReport()))
	})

	t.Run("pull request lookup fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().GetPullRequest(gomock.Any(), "acme", "api", 42).Return(nil, errors.New("404 Not Found"))

		err := NewPublisher(client, discard).Publish(context.Background(), pr, testReport())
		assert.ErrorContains(t, err, "404 Not Found")
	})

	t.Run("comment fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().GetPullRequest(gomock.Any(), "acme", "api", 42).Return(&github.PullRequest{}, nil)
		client.EXPECT().CreateComment(gomock.Any(), "acme", "api", 42, gomock.Any()).Return(errors.New("403"))

		err := NewPublisher(client, discard).Publish(context.Background(), pr, testReport())
		assert.ErrorContains(t, err, "failed to comment on acme/api#42")
	})

	t.Run("missing summary", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		err := NewPublisher(client, discard).Publish(context.Background(), pr, &core.Report{})
		assert.Error(t, err)
	})
}
