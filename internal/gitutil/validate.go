package gitutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidInput marks user supplied values that fail validation.
var ErrInvalidInput = errors.New("invalid input")

const forbiddenBranchChars = " ~^:?*[\\"

// ValidateBranchName checks that name is usable as a git revision.
func ValidateBranchName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: branch name is empty", ErrInvalidInput)
	}
	if i := strings.IndexAny(name, forbiddenBranchChars); i >= 0 {
		return fmt.Errorf("%w: branch name %q contains forbidden character %q", ErrInvalidInput, name, name[i])
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: branch name %q contains '..'", ErrInvalidInput, name)
	}
	return nil
}

// ValidateProjectPath checks that path is an existing directory holding a git repository.
func ValidateProjectPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: project path is empty", ErrInvalidInput)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: project path %s does not exist", ErrInvalidInput, path)
		}
		return fmt.Errorf("failed to stat project path %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: project path %s is not a directory", ErrInvalidInput, path)
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return fmt.Errorf("%w: %s is not a git repository", ErrInvalidInput, path)
	}
	return nil
}

// ValidateOutputPath resolves path to an absolute file path, expanding a
// leading ~, and creates its parent directory so the report can be written
// once the review finishes.
func ValidateOutputPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: output path is empty", ErrInvalidInput)
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path %s: %w", path, err)
	}

	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: output path %s is a directory", ErrInvalidInput, resolved)
	}
	parent := filepath.Dir(resolved)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("%w: cannot create output directory %s: %v", ErrInvalidInput, parent, err)
	}
	return resolved, nil
}
