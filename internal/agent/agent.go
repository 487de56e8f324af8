// Package agent implements the per-file reviewer. The model drives a small
// tool loop through a JSON action protocol and finishes with a list of issues.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/dedup"
	"github.com/montarelab/rev-ai/internal/gitutil"
	"github.com/montarelab/rev-ai/internal/llm"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"

	actionTool  = "tool"
	actionFinal = "final"

	defaultMaxSteps = 8
)

// ErrMalformedOutput reports a model reply that is not a valid action.
var ErrMalformedOutput = errors.New("malformed model output")

// Config tunes an Agent.
type Config struct {
	Provider           llm.ModelProvider
	MaxSteps           int
	KnowledgeTopK      int
	CustomInstructions string
}

// Agent reviews one file per Review call. It is safe for concurrent use;
// each call gets its own transcript and toolset.
type Agent struct {
	gen       llm.Generator
	prompts   *llm.PromptManager
	store     dedup.Store
	knowledge Searcher
	cfg       Config
	logger    *slog.Logger
	lookPath  func(string) (string, error)
}

// New creates an Agent. knowledge may be nil, in which case the
// search_knowledge tool is not offered.
func New(gen llm.Generator, prompts *llm.PromptManager, store dedup.Store, knowledge Searcher, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.Provider == "" {
		cfg.Provider = llm.DefaultProvider
	}
	return &Agent{
		gen:       gen,
		prompts:   prompts,
		store:     store,
		knowledge: knowledge,
		cfg:       cfg,
		logger:    logger,
		lookPath:  exec.LookPath,
	}
}

type toolInfo struct {
	Name        string
	Description string
}

type promptData struct {
	FilePath           string
	Diff               string
	ChangedLines       string
	Content            string
	CustomInstructions string
	Tools              []toolInfo
	Transcript         string
}

func (a *Agent) toolset(in core.ReviewInput) *Toolset {
	reader := readFileTool{root: in.ProjectRoot, branch: in.SourceBranch}
	if in.SourceBranch != "" {
		if repo, err := gitutil.Open(in.ProjectRoot, a.logger); err == nil {
			reader.repo = repo
		} else {
			a.logger.Warn("project is not a git repository, reading files from the working tree", "error", err)
		}
	}
	tools := []Tool{
		reader,
		searchCodeTool{root: in.ProjectRoot, lookPath: a.lookPath},
	}
	if a.knowledge != nil {
		tools = append(tools, searchKnowledgeTool{searcher: a.knowledge, topK: a.cfg.KnowledgeTopK})
	}
	tools = append(tools,
		getReviewedFilesTool{store: a.store, taskID: in.Task.ID, logger: a.logger},
		markFileReviewedTool{store: a.store, taskID: in.Task.ID, filePath: in.File.FilePath, logger: a.logger},
	)
	return newToolset(tools...)
}

// Review implements core.Reviewer. A file already present in the task's
// ledger yields core.ErrAlreadyReviewed without calling the model.
func (a *Agent) Review(ctx context.Context, in core.ReviewInput) (*core.RawMessage, *core.StructuredResult, error) {
	path := in.File.FilePath
	logger := a.logger.With("task_id", in.Task.ID, "file", path)

	reviewed, err := dedup.ReviewedOrEmpty(ctx, a.store, in.Task.ID, logger)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := reviewed[path]; ok {
		return nil, nil, core.ErrAlreadyReviewed
	}

	tools := a.toolset(in)
	data := promptData{
		FilePath:           path,
		Diff:               Redact(in.File.Diff()),
		ChangedLines:       gitutil.FormatRanges(gitutil.ChangedLines(in.File.Diff(), logger)),
		Content:            Redact(in.File.Content),
		CustomInstructions: joinInstructions(a.cfg.CustomInstructions, in.Instructions),
	}
	for _, t := range tools.List() {
		data.Tools = append(data.Tools, toolInfo{Name: t.Name(), Description: t.Description()})
	}

	raw := &core.RawMessage{TaskID: in.Task.ID, FilePath: path}
	for step := 0; step < a.cfg.MaxSteps; step++ {
		data.Transcript = transcript(raw)
		prompt, err := a.prompts.Render(llm.FileReviewPrompt, a.cfg.Provider, data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to render review prompt: %w", err)
		}
		if step == 0 {
			raw.Append(roleUser, prompt)
		}

		reply, err := a.gen.Call(ctx, prompt)
		if err != nil {
			return nil, nil, fmt.Errorf("model call failed for %s: %w", path, err)
		}
		raw.Append(roleAssistant, reply)

		action, err := parseAction(reply)
		if err != nil {
			logger.Warn("reviewer reply is not a valid action", "step", step, "error", err)
			raw.Append(roleUser, "Your last reply was not a single valid JSON action. Reply with exactly one JSON object following the protocol.")
			continue
		}

		switch action.Get("action").String() {
		case actionFinal:
			result := parseIssues(path, action.Get("issues"))
			if err := dedup.MarkOrWarn(ctx, a.store, in.Task.ID, path, logger); err != nil {
				return nil, nil, err
			}
			logger.Debug("file review finished", "steps", step+1, "issues", len(result.Issues))
			return raw, result, nil
		case actionTool:
			name := action.Get("tool").String()
			raw.Append(roleTool, a.runTool(ctx, tools, name, action.Get("args"), logger))
		default:
			raw.Append(roleUser, fmt.Sprintf("Unknown action %q. Use \"tool\" or \"final\".", action.Get("action").String()))
		}
	}

	return nil, nil, fmt.Errorf("%w: no final answer for %s after %d steps", ErrMalformedOutput, path, a.cfg.MaxSteps)
}

// runTool executes a tool call. Tool errors are reported back to the model
// as the tool result rather than failing the review.
func (a *Agent) runTool(ctx context.Context, tools *Toolset, name string, args gjson.Result, logger *slog.Logger) string {
	tool, ok := tools.Lookup(name)
	if !ok {
		return fmt.Sprintf("[%s] error: unknown tool", name)
	}
	out, err := tool.Run(ctx, args)
	if err != nil {
		logger.Debug("tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("[%s] error: %v", name, err)
	}
	return fmt.Sprintf("[%s]\n%s", name, out)
}

func transcript(raw *core.RawMessage) string {
	if len(raw.Entries) <= 1 {
		return ""
	}
	var sb strings.Builder
	for _, e := range raw.Entries[1:] {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", e.Role, e.Content)
	}
	return strings.TrimSpace(sb.String())
}

// parseAction extracts the JSON object from a model reply, tolerating code
// fences and surrounding prose.
func parseAction(reply string) (gjson.Result, error) {
	s := stripCodeFence(reply)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON", ErrMalformedOutput)
	}
	res := gjson.Parse(s)
	if !res.Get("action").Exists() {
		return gjson.Result{}, fmt.Errorf("%w: missing action field", ErrMalformedOutput)
	}
	return res, nil
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	idx := strings.Index(trimmed, "\n")
	if idx < 0 {
		return s
	}
	inner := trimmed[idx+1:]
	if last := strings.LastIndex(inner, "```"); last >= 0 {
		inner = inner[:last]
	}
	return strings.TrimSpace(inner)
}

func parseIssues(path string, issues gjson.Result) *core.StructuredResult {
	result := &core.StructuredResult{FilePath: path, Issues: []core.Issue{}}
	issues.ForEach(func(_, v gjson.Result) bool {
		desc := strings.TrimSpace(v.Get("description").String())
		if desc == "" {
			return true
		}
		filePath := v.Get("file_path").String()
		if filePath == "" {
			filePath = path
		}
		result.Issues = append(result.Issues, core.Issue{
			IssueType:      v.Get("issue_type").String(),
			Severity:       core.NormalizeSeverity(v.Get("severity").String()),
			FilePath:       filePath,
			Description:    desc,
			Recommendation: v.Get("recommendation").String(),
			Reasoning:      v.Get("reasoning").String(),
		})
		return true
	})
	return result
}

func joinInstructions(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
