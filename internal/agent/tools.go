package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/montarelab/rev-ai/internal/dedup"
	"github.com/montarelab/rev-ai/internal/knowledge"
)

const (
	maxToolOutput   = 8 * 1024
	maxSearchCount  = 50
	defaultContext  = 2
	maxContextLines = 10
)

// Tool is an action the reviewer model may request.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, args gjson.Result) (string, error)
}

// Searcher is the knowledge retrieval the agent depends on.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Snippet, error)
}

// Toolset is the set of tools bound to one review invocation.
type Toolset struct {
	tools map[string]Tool
	order []string
}

func newToolset(tools ...Tool) *Toolset {
	ts := &Toolset{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		ts.tools[t.Name()] = t
		ts.order = append(ts.order, t.Name())
	}
	return ts
}

// Lookup returns the tool with name.
func (ts *Toolset) Lookup(name string) (Tool, bool) {
	t, ok := ts.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (ts *Toolset) List() []Tool {
	out := make([]Tool, 0, len(ts.order))
	for _, n := range ts.order {
		out = append(out, ts.tools[n])
	}
	return out
}

// resolvePath joins rel to root and rejects anything escaping root.
func resolvePath(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the project root: %s", rel)
	}
	return filepath.Join(root, clean), nil
}

func truncate(s string) string {
	if len(s) <= maxToolOutput {
		return s
	}
	return s[:maxToolOutput] + "\n... [output truncated]"
}

// revisionReader reads committed file contents.
type revisionReader interface {
	ReadFile(ctx context.Context, branch, path string) (string, error)
}

// readFileTool reads from the source branch when one is bound, so the model
// sees the same revision as the file under review. Without a branch it
// reads the working tree.
type readFileTool struct {
	root   string
	branch string
	repo   revisionReader
}

func (readFileTool) Name() string { return "read_file" }

func (readFileTool) Description() string {
	return `read a file of the project. Args: {"path": "relative/path"}`
}

func (t readFileTool) Run(ctx context.Context, args gjson.Result) (string, error) {
	rel := args.Get("path").String()
	full, err := resolvePath(t.root, rel)
	if err != nil {
		return "", err
	}
	if t.repo != nil && t.branch != "" {
		slashed := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
		content, err := t.repo.ReadFile(ctx, t.branch, slashed)
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", rel, err)
		}
		return truncate(Redact(content)), nil
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", rel, err)
	}
	return truncate(Redact(string(data))), nil
}

type searchCodeTool struct {
	root     string
	lookPath func(string) (string, error)
}

func (searchCodeTool) Name() string { return "search_code" }

func (searchCodeTool) Description() string {
	return `search the project with a regular expression. Args: {"pattern": "regex", "context_lines": 2, "glob": "*.go"}`
}

func (t searchCodeTool) Run(ctx context.Context, args gjson.Result) (string, error) {
	pattern := args.Get("pattern").String()
	if pattern == "" {
		return "", errors.New("pattern is required")
	}
	lines := defaultContext
	if v := args.Get("context_lines"); v.Exists() {
		lines = min(max(int(v.Int()), 0), maxContextLines)
	}
	glob := args.Get("glob").String()

	var cmd *exec.Cmd
	if _, err := t.lookPath("rg"); err == nil {
		cmdArgs := []string{"-n", "-C", strconv.Itoa(lines), "--max-count", strconv.Itoa(maxSearchCount)}
		if glob != "" {
			cmdArgs = append(cmdArgs, "--glob", glob)
		}
		cmdArgs = append(cmdArgs, "-e", pattern, ".")
		cmd = exec.CommandContext(ctx, "rg", cmdArgs...)
	} else {
		cmdArgs := []string{"grep", "-n", "-E", "-C", strconv.Itoa(lines), "--max-count", strconv.Itoa(maxSearchCount), "-e", pattern}
		if glob != "" {
			cmdArgs = append(cmdArgs, "--", glob)
		}
		cmd = exec.CommandContext(ctx, "git", cmdArgs...)
	}
	cmd.Dir = t.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return truncate(Redact(stdout.String())), nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		return "No matches found.", nil
	default:
		return "", fmt.Errorf("search failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
}

type searchKnowledgeTool struct {
	searcher Searcher
	topK     int
}

func (searchKnowledgeTool) Name() string { return "search_knowledge" }

func (searchKnowledgeTool) Description() string {
	return `search the team knowledge base of coding guidelines. Args: {"query": "text"}`
}

func (t searchKnowledgeTool) Run(ctx context.Context, args gjson.Result) (string, error) {
	snippets, err := t.searcher.Search(ctx, args.Get("query").String(), t.topK)
	if err != nil {
		return "", err
	}
	return truncate(knowledge.Format(snippets)), nil
}

type getReviewedFilesTool struct {
	store  dedup.Store
	taskID string
	logger *slog.Logger
}

func (getReviewedFilesTool) Name() string { return "get_reviewed_files" }

func (getReviewedFilesTool) Description() string {
	return "list the files already reviewed in this run. Args: {}"
}

func (t getReviewedFilesTool) Run(ctx context.Context, _ gjson.Result) (string, error) {
	reviewed, err := dedup.ReviewedOrEmpty(ctx, t.store, t.taskID, t.logger)
	if err != nil {
		return "", err
	}
	if len(reviewed) == 0 {
		return "No files reviewed yet.", nil
	}
	paths := make([]string, 0, len(reviewed))
	for p := range reviewed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return strings.Join(paths, "\n"), nil
}

// markFileReviewedTool records the file under review. It refuses any other
// path: marking a sibling would make its reviewer skip it.
type markFileReviewedTool struct {
	store    dedup.Store
	taskID   string
	filePath string
	logger   *slog.Logger
}

func (markFileReviewedTool) Name() string { return "mark_file_reviewed" }

func (t markFileReviewedTool) Description() string {
	return fmt.Sprintf(`record the file under review (%s) as reviewed in this run. Args: {"path": %q}`, t.filePath, t.filePath)
}

func (t markFileReviewedTool) Run(ctx context.Context, args gjson.Result) (string, error) {
	path := args.Get("path").String()
	if path == "" {
		path = t.filePath
	}
	if filepath.ToSlash(filepath.Clean(filepath.FromSlash(path))) != t.filePath {
		return "", fmt.Errorf("only the file under review (%s) can be marked, not %s", t.filePath, path)
	}
	if err := dedup.MarkOrWarn(ctx, t.store, t.taskID, t.filePath, t.logger); err != nil {
		return "", err
	}
	return "Successfully marked file as reviewed.", nil
}
