package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePullRequestURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *PullRequest
		wantErr bool
	}{
		{
			name: "https",
			url:  "https://github.com/montarelab/rev-ai/pull/123",
			want: &PullRequest{Owner: "montarelab", Repo: "rev-ai", Number: 123},
		},
		{
			name: "no scheme",
			url:  "github.com/montarelab/rev-ai/pull/456",
			want: &PullRequest{Owner: "montarelab", Repo: "rev-ai", Number: 456},
		},
		{
			name: "trailing slash",
			url:  "https://github.com/acme/api/pull/7/",
			want: &PullRequest{Owner: "acme", Repo: "api", Number: 7},
		},
		{
			name: "files tab with query",
			url:  "https://github.com/acme/api/pull/8/files?diff=split#r1",
			want: &PullRequest{Owner: "acme", Repo: "api", Number: 8},
		},
		{name: "issue url", url: "https://github.com/acme/api/issues/9", wantErr: true},
		{name: "other host", url: "https://gitlab.com/acme/api/pull/9", wantErr: true},
		{name: "zero number", url: "https://github.com/acme/api/pull/0", wantErr: true},
		{name: "missing number", url: "https://github.com/acme/api/pull/", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePullRequestURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
