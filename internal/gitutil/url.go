package gitutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var prPathRegex = regexp.MustCompile(`^/([^/]+)/([^/]+)/pull/(\d+)(?:/(?:files|commits|checks))?$`)

// PullRequest identifies a GitHub pull request.
type PullRequest struct {
	Owner  string
	Repo   string
	Number int
}

// ParsePullRequestURL extracts owner, repo and number from a pull request URL
// such as https://github.com/{owner}/{repo}/pull/{number}. Trailing tabs
// (/files, /commits, /checks), query strings and fragments are ignored.
func ParsePullRequestURL(raw string) (*PullRequest, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid pull request URL %q: %w", raw, err)
	}
	if !strings.EqualFold(u.Host, "github.com") && !strings.EqualFold(u.Host, "www.github.com") {
		return nil, fmt.Errorf("invalid pull request URL %q: host must be github.com", raw)
	}

	matches := prPathRegex.FindStringSubmatch(strings.TrimSuffix(u.Path, "/"))
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid pull request URL format: %s", raw)
	}

	number, err := strconv.Atoi(matches[3])
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("invalid PR number '%s'", matches[3])
	}
	return &PullRequest{Owner: matches[1], Repo: matches[2], Number: number}, nil
}
