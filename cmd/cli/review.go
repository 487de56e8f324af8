package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
	"github.com/montarelab/rev-ai/internal/jobs"
	"github.com/montarelab/rev-ai/internal/report"
	"github.com/montarelab/rev-ai/internal/wire"
)

var (
	fetchFlag bool
	prURLFlag string
)

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgWhite)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

var reviewCmd = &cobra.Command{
	Use:   "review <project_path> <source_branch> <target_branch> <output_file>",
	Short: "Review the changes of a source branch against a target branch",
	Long: `Review every file changed on source_branch since it diverged from target_branch.

Each changed file is handed to its own reviewer agent. The findings are merged
into a single summary with a merge verdict and written to output_file as Markdown.

Examples:
  rev-ai review ./my-repo feature/login main review.md
  rev-ai review --provider anthropic --model claude-sonnet-4-5 ./my-repo fix-123 main out/review.md
  rev-ai review --fetch --pr-url https://github.com/owner/repo/pull/42 ./my-repo fix-123 main review.md`,
	Args: cobra.ExactArgs(4),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().BoolVar(&fetchFlag, "fetch", false, "Fetch origin before computing the diff")
	reviewCmd.Flags().StringVar(&prURLFlag, "pr-url", "", "Post the summary as a comment on this GitHub pull request")
	rootCmd.AddCommand(reviewCmd)
}

// stepTimer tracks timing for verbose output
type stepTimer struct {
	stepNum    int
	totalSteps int
	start      time.Time
	verbose    bool
}

func newStepTimer(totalSteps int, verbose bool) *stepTimer {
	return &stepTimer{
		totalSteps: totalSteps,
		verbose:    verbose,
	}
}

func (t *stepTimer) step(name string) {
	t.stepNum++
	t.start = time.Now()
	if t.verbose {
		titleColor.Printf("\n🔧 Step %d/%d: %s...\n", t.stepNum, t.totalSteps, name)
	} else {
		fmt.Printf("%s...\n", name)
	}
}

func (t *stepTimer) done(details ...string) {
	if t.verbose {
		elapsed := time.Since(t.start).Round(time.Millisecond)
		successColor.Printf("   ✓ Done (%s)\n", elapsed)
		for _, d := range details {
			dimColor.Printf("   └── %s\n", d)
		}
	}
}

func (t *stepTimer) info(format string, args ...any) {
	if t.verbose {
		dimColor.Printf("   ├── "+format+"\n", args...)
	}
}

// fileProgress prints one line per finished file review.
type fileProgress struct {
	mu      sync.Mutex
	verbose bool
}

func (p *fileProgress) OnEvent(ev core.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case core.EventFileStarted:
		if p.verbose {
			dimColor.Printf("   ├── reviewing %s\n", ev.FilePath)
		}
	case core.EventFileCompleted:
		successColor.Printf("   ✓ %s", ev.FilePath)
		dimColor.Printf(" (%s)\n", ev.Duration.Round(time.Millisecond))
	case core.EventFileSkipped:
		dimColor.Printf("   - %s (already reviewed)\n", ev.FilePath)
	case core.EventFileFailed:
		errorColor.Printf("   ✗ %s: %v\n", ev.FilePath, ev.Err)
	case core.EventAggregating:
		dimColor.Println("   ├── aggregating findings")
	case core.EventDone:
		// nothing to print; the summary follows
	}
}

func runReview(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := &core.ReviewRequest{
		ProjectPath:  args[0],
		SourceBranch: args[1],
		TargetBranch: args[2],
	}
	outputFile := args[3]

	if err := jobs.ValidateRequest(req); err != nil {
		return core.NewStageError(core.StageValidation, err)
	}
	outputFile, err := gitutil.ValidateOutputPath(outputFile)
	if err != nil {
		return core.NewStageError(core.StageValidation, err)
	}

	var pr *gitutil.PullRequest
	if prURLFlag != "" {
		pr, err = gitutil.ParsePullRequestURL(prURLFlag)
		if err != nil {
			return core.NewStageError(core.StageValidation,
				fmt.Errorf("invalid PR URL: %w\n\nExpected format: https://github.com/owner/repo/pull/123", err))
		}
	}

	totalSteps := 3
	if pr != nil {
		totalSteps++
	}
	timer := newStepTimer(totalSteps, verbose)
	overallStart := time.Now()

	titleColor.Println("🚀 rev-ai - Branch Review")
	dimColor.Printf("   %s: %s → %s\n\n", req.ProjectPath, req.SourceBranch, req.TargetBranch)

	timer.step("Initializing application")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if fetchFlag {
		cfg.Review.Fetch = true
	}
	appInstance, cleanup, err := wire.InitializeApp(ctx, cfg, &fileProgress{verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer cleanup()
	timer.info("Provider: %s", cfg.AI.LLMProvider)
	timer.info("Model: %s", cfg.AI.GeneratorModel)
	timer.done()

	timer.step("Reviewing changed files")
	rep, err := appInstance.Job.Execute(ctx, req)
	if err != nil {
		if stage := core.StageOf(err); stage != "" {
			errorColor.Printf("\n✗ Review failed at the %s stage\n", stage)
		}
		return err
	}
	timer.info("Task: %s", rep.Task.ID)
	timer.done(fmt.Sprintf("%d files reviewed, %d failed", len(rep.Structured), len(rep.FailedFiles())))

	timer.step("Writing report")
	meta := report.Meta{
		Model:     cfg.AI.GeneratorModel,
		Provider:  cfg.AI.LLMProvider,
		Generated: time.Now(),
	}
	if err := report.WriteMarkdown(outputFile, rep, meta); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	timer.done(outputFile)

	if pr != nil {
		timer.step("Publishing pull request comment")
		publisher, err := appInstance.Publisher(ctx)
		if err != nil {
			return fmt.Errorf("failed to create publisher: %w\n\nTip: Set REVAI_GITHUB_TOKEN or GITHUB_TOKEN", err)
		}
		if err := publisher.Publish(ctx, pr, rep); err != nil {
			return fmt.Errorf("failed to publish review: %w", err)
		}
		timer.info("%s/%s#%d", pr.Owner, pr.Repo, pr.Number)
		timer.done()
	}

	if verbose {
		dimColor.Printf("\n⏱️  Total time: %s\n", time.Since(overallStart).Round(time.Millisecond))
	}

	printSummary(rep)
	successColor.Printf("\n📄 Report written to %s\n", outputFile)
	return nil
}

func printSummary(rep *core.Report) {
	if rep.Summary == nil {
		return
	}
	separator := strings.Repeat("═", 60)
	thinSeparator := strings.Repeat("─", 60)
	s := rep.Summary

	fmt.Println()
	titleColor.Println(separator)
	titleColor.Println("📋 REVIEW SUMMARY")
	titleColor.Println(separator)
	fmt.Println()

	printVerdictBadge(s.Verdict)
	if s.HighestSeverity != "" {
		dimColor.Printf(" highest severity: %s", s.HighestSeverity)
	}
	fmt.Println()
	if s.Partial {
		warnColor.Printf("⚠️  Partial review: %d file(s) could not be reviewed\n", len(s.NotReviewed()))
	}
	if s.Truncated {
		warnColor.Println("⚠️  Low-severity findings were dropped to fit the summary model input")
	}
	fmt.Println()
	fmt.Println(renderMarkdown(s.Text))

	if len(s.IssueCounts) == 0 {
		successColor.Println("✅ No issues found!")
		return
	}

	warnColor.Println(thinSeparator)
	warnColor.Println("💡 FINDINGS")
	warnColor.Println(thinSeparator)
	severities := make([]core.Severity, 0, len(s.IssueCounts))
	for sev := range s.IssueCounts {
		severities = append(severities, sev)
	}
	sort.Slice(severities, func(i, j int) bool {
		return core.SeverityRank(severities[i]) > core.SeverityRank(severities[j])
	})
	for _, sev := range severities {
		printSeverityBadge(sev)
		infoColor.Printf(" %d\n", s.IssueCounts[sev])
	}
	for _, path := range s.NotReviewed() {
		boldColor.Printf("   ✗ %s", path)
		dimColor.Println(" (not reviewed)")
	}
}

func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func printVerdictBadge(v core.Verdict) {
	label := " " + strings.ToUpper(string(v)) + " "
	switch v {
	case core.VerdictBlock:
		color.New(color.BgRed, color.FgWhite, color.Bold).Print(label)
	case core.VerdictComment:
		color.New(color.BgYellow, color.FgBlack).Print(label)
	default:
		color.New(color.BgGreen, color.FgWhite).Print(label)
	}
}

func printSeverityBadge(severity core.Severity) {
	label := fmt.Sprintf(" %-8s ", severity)
	switch severity {
	case core.SeverityCritical:
		color.New(color.BgRed, color.FgWhite, color.Bold).Print(label)
	case core.SeverityHigh:
		color.New(color.BgHiRed, color.FgWhite).Print(label)
	case core.SeverityMedium:
		color.New(color.BgYellow, color.FgBlack).Print(label)
	case core.SeverityLow:
		color.New(color.BgGreen, color.FgWhite).Print(label)
	default:
		color.New(color.BgWhite, color.FgBlack).Print(label)
	}
}
