package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
)

func fakeRepoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

func TestValidateRequest(t *testing.T) {
	repo := fakeRepoDir(t)

	tests := []struct {
		name    string
		req     *core.ReviewRequest
		wantErr []string
	}{
		{
			name: "valid",
			req:  &core.ReviewRequest{ProjectPath: repo, SourceBranch: "feature/a", TargetBranch: "main"},
		},
		{
			name:    "nil request",
			req:     nil,
			wantErr: []string{"request cannot be nil"},
		},
		{
			name:    "missing project",
			req:     &core.ReviewRequest{ProjectPath: filepath.Join(repo, "nope"), SourceBranch: "a", TargetBranch: "b"},
			wantErr: []string{"does not exist"},
		},
		{
			name:    "bad branches reported together",
			req:     &core.ReviewRequest{ProjectPath: repo, SourceBranch: "", TargetBranch: "ma in"},
			wantErr: []string{"source branch", "target branch"},
		},
		{
			name:    "same branch",
			req:     &core.ReviewRequest{ProjectPath: repo, SourceBranch: "main", TargetBranch: "main"},
			wantErr: []string{"both \"main\""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, gitutil.ErrInvalidInput)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
