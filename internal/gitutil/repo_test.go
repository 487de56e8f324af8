package gitutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/core"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo, wt: wt}
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, filepath.FromSlash(name))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o644))
	_, err := r.wt.Add(name)
	require.NoError(r.t, err)
}

func (r *testRepo) remove(name string) {
	r.t.Helper()
	_, err := r.wt.Remove(name)
	require.NoError(r.t, err)
}

func (r *testRepo) commit(msg string) {
	r.t.Helper()
	_, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
}

func (r *testRepo) checkout(branch string, create bool) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}))
}

func TestManager_ChangedFiles(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.go", "package a\n\nfunc A() int { return 1 }\n")
	r.write("gone.txt", "bye\n")
	r.commit("initial")

	r.checkout("feature", true)
	r.write("a.go", "package a\n\nfunc A() int { return 2 }\n\nfunc B() {}\n")
	r.write("b.py", "print('hi')\n")
	r.write("vendor/lib/x.go", "package lib\n")
	r.write("blob.bin", "\x00\x01\x02\x03")
	r.write("huge.txt", strings.Repeat("x", 2048))
	r.remove("gone.txt")
	r.commit("feature work")

	r.checkout("master", false)
	r.write("later.go", "package a\n")
	r.commit("unrelated change on target")

	m, err := Open(r.dir, nil)
	require.NoError(t, err)

	cfg := core.DefaultRepoConfig()
	cfg.MaxFileBytes = 1024

	files, err := m.ChangedFiles(context.Background(), "feature", "master", cfg)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "a.go", files[0].FilePath)
	assert.Contains(t, files[0].Content, "func B() {}")
	require.NotNil(t, files[0].Changes)
	assert.Contains(t, files[0].Diff(), "+func A() int { return 2 }")
	assert.Contains(t, files[0].Diff(), "-func A() int { return 1 }")

	assert.Equal(t, "b.py", files[1].FilePath)
	assert.Equal(t, "print('hi')\n", files[1].Content)
}

func TestManager_ChangedFiles_NoChanges(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.go", "package a\n")
	r.commit("initial")
	r.checkout("feature", true)

	m, err := Open(r.dir, nil)
	require.NoError(t, err)

	files, err := m.ChangedFiles(context.Background(), "feature", "master", nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestManager_ValidateBranch(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.go", "package a\n")
	r.commit("initial")

	m, err := Open(r.dir, nil)
	require.NoError(t, err)

	assert.NoError(t, m.ValidateBranch(context.Background(), "master"))

	err = m.ValidateBranch(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	err = m.ValidateBranch(context.Background(), "bad name")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = m.ChangedFiles(context.Background(), "nope", "master", nil)
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		{"simple", "main", false},
		{"nested", "feature/login-form", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"space", "my branch", true},
		{"tilde", "main~1", true},
		{"caret", "main^", true},
		{"colon", "a:b", true},
		{"question", "a?", true},
		{"star", "feat*", true},
		{"bracket", "a[1]", true},
		{"backslash", `a\b`, true},
		{"dotdot", "main..dev", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.branch)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateProjectPath(t *testing.T) {
	r := newTestRepo(t)
	plain := t.TempDir()
	file := filepath.Join(plain, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.NoError(t, ValidateProjectPath(r.dir))
	assert.ErrorIs(t, ValidateProjectPath(""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateProjectPath(filepath.Join(plain, "missing")), ErrInvalidInput)
	assert.ErrorIs(t, ValidateProjectPath(file), ErrInvalidInput)
	assert.ErrorIs(t, ValidateProjectPath(plain), ErrInvalidInput)
}

func TestManager_ReadFile(t *testing.T) {
	r := newTestRepo(t)
	r.write("pkg/util.go", "package pkg\n\nconst Limit = 1\n")
	r.commit("initial")
	r.checkout("feature", true)
	r.write("pkg/util.go", "package pkg\n\nconst Limit = 2\n")
	r.write("blob.bin", "\x00\x01\x02")
	r.commit("raise limit")
	r.checkout("master", false)

	m, err := Open(r.dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := m.ReadFile(ctx, "feature", "pkg/util.go")
	require.NoError(t, err)
	assert.Contains(t, got, "const Limit = 2")

	got, err = m.ReadFile(ctx, "master", "pkg/util.go")
	require.NoError(t, err)
	assert.Contains(t, got, "const Limit = 1")

	_, err = m.ReadFile(ctx, "feature", "blob.bin")
	assert.ErrorContains(t, err, "binary")

	_, err = m.ReadFile(ctx, "feature", "missing.go")
	assert.Error(t, err)

	_, err = m.ReadFile(ctx, "nope", "pkg/util.go")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestValidateOutputPath(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"creates parents", filepath.Join(base, "reports", "2026", "review.md"), filepath.Join(base, "reports", "2026", "review.md"), false},
		{"existing parent", filepath.Join(base, "review.md"), filepath.Join(base, "review.md"), false},
		{"cleans dots", filepath.Join(base, "a", "..", "review.md"), filepath.Join(base, "review.md"), false},
		{"empty", "", "", true},
		{"blank", "  ", "", true},
		{"directory", base, "", true},
		{"parent is a file", filepath.Join(blocker, "review.md"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateOutputPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			info, err := os.Stat(filepath.Dir(got))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		})
	}
}

func TestValidateOutputPath_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ValidateOutputPath("~/reviews/out.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "reviews", "out.md"), got)
	assert.DirExists(t, filepath.Join(home, "reviews"))
}
