// Package gitutil wraps the local git repository a review runs against.
package gitutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/montarelab/rev-ai/internal/core"
)

// ErrBranchNotFound is returned when a branch resolves neither locally nor on origin.
var ErrBranchNotFound = errors.New("branch not found")

const (
	fetchMaxRetries = 3
	fetchBaseDelay  = 2 * time.Second
)

// Manager reads branches, diffs and file contents from one repository.
type Manager struct {
	path   string
	repo   *git.Repository
	logger *slog.Logger
}

// Open opens the git repository at path.
func Open(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return &Manager{path: path, repo: repo, logger: logger}, nil
}

// Path returns the repository root.
func (m *Manager) Path() string { return m.path }

// ValidateBranch checks that branch resolves to a commit.
func (m *Manager) ValidateBranch(_ context.Context, branch string) error {
	if err := ValidateBranchName(branch); err != nil {
		return err
	}
	if _, err := m.resolve(branch); err != nil {
		return err
	}
	return nil
}

// ReadFile returns the content of path as committed on branch. path is
// relative to the repository root and uses forward slashes.
func (m *Manager) ReadFile(_ context.Context, branch, path string) (string, error) {
	commit, err := m.resolve(branch)
	if err != nil {
		return "", err
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to load tree of %s: %w", branch, err)
	}
	file, err := tree.File(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s at %s: %w", path, branch, err)
	}
	binary, err := file.IsBinary()
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if binary {
		return "", fmt.Errorf("%s is a binary file", path)
	}
	return file.Contents()
}

func (m *Manager) resolve(branch string) (*object.Commit, error) {
	candidates := []string{
		branch,
		"origin/" + branch,
		"refs/remotes/origin/" + branch,
	}
	for _, rev := range candidates {
		hash, err := m.repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			continue
		}
		commit, err := m.repo.CommitObject(*hash)
		if err != nil {
			return nil, fmt.Errorf("failed to load commit %s for %s: %w", hash, branch, err)
		}
		return commit, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
}

// Fetch updates remote refs from origin, retrying transient failures.
func (m *Manager) Fetch(ctx context.Context) error {
	m.logger.InfoContext(ctx, "fetching latest changes from origin", "path", m.path)

	var err error
	for i := 0; i <= fetchMaxRetries; i++ {
		if i > 0 {
			delay := fetchBaseDelay * time.Duration(1<<(i-1))
			m.logger.WarnContext(ctx, "git fetch failed, retrying",
				"attempt", i,
				"max_retries", fetchMaxRetries,
				"delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		cmd := exec.CommandContext(ctx, "git", "-c", "core.longpaths=true", "fetch", "origin", "--prune")
		cmd.Dir = m.path
		if out, cmdErr := cmd.CombinedOutput(); cmdErr != nil {
			err = fmt.Errorf("git fetch failed: %s: %w", string(out), cmdErr)
			continue
		}

		m.logger.InfoContext(ctx, "fetch complete")
		return nil
	}
	return err
}

// ChangedFiles returns the files the source branch changed relative to its
// merge base with target, equivalent to `git diff target...source`. Deleted,
// binary, excluded and oversized files are left out. Content is read at the
// source revision.
func (m *Manager) ChangedFiles(ctx context.Context, source, target string, repoCfg *core.RepoConfig) ([]core.ChangedFile, error) {
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	sourceCommit, err := m.resolve(source)
	if err != nil {
		return nil, err
	}
	targetCommit, err := m.resolve(target)
	if err != nil {
		return nil, err
	}

	base := targetCommit
	bases, err := targetCommit.MergeBase(sourceCommit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute merge base of %s and %s: %w", target, source, err)
	}
	if len(bases) > 0 {
		base = bases[0]
	}

	baseTree, err := base.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s: %w", base.Hash, err)
	}
	sourceTree, err := sourceCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s: %w", sourceCommit.Hash, err)
	}

	changes, err := baseTree.DiffContext(ctx, sourceTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s...%s: %w", target, source, err)
	}

	var files []core.ChangedFile
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			m.logger.Error("failed to get action for change, skipping", "error", err)
			continue
		}
		if action == merkletrie.Delete {
			continue
		}

		name := change.To.Name
		if repoCfg.Excluded(name) {
			m.logger.Debug("skipping excluded file", "file", name)
			continue
		}

		file, err := sourceTree.File(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s at %s: %w", name, source, err)
		}
		if repoCfg.MaxFileBytes > 0 && file.Size > repoCfg.MaxFileBytes {
			m.logger.Info("skipping oversized file", "file", name, "size", file.Size)
			continue
		}
		binary, err := file.IsBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", name, err)
		}
		if binary {
			m.logger.Debug("skipping binary file", "file", name)
			continue
		}

		content, err := file.Contents()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		changed := core.ChangedFile{FilePath: name, Content: content}
		patch, err := change.PatchContext(ctx)
		if err != nil {
			m.logger.Warn("failed to build patch, reviewing without hunks", "file", name, "error", err)
		} else if text := patch.String(); text != "" {
			changed.Changes = &text
		}
		files = append(files, changed)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })
	m.logger.Info("collected changed files", "source", source, "target", target, "count", len(files))
	return files, nil
}
