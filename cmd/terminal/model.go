package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/montarelab/rev-ai/internal/app"
	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/report"
	"github.com/montarelab/rev-ai/internal/storage"
)

const asciiLogo = `
╭──────────────────────────────────────────────────────╮
│   ██████╗ ███████╗██╗   ██╗      █████╗ ██╗          │
│   ██╔══██╗██╔════╝██║   ██║     ██╔══██╗██║          │
│   ██████╔╝█████╗  ██║   ██║████╗███████║██║          │
│   ██╔══██╗██╔══╝  ╚██╗ ██╔╝╚═══╝██╔══██║██║          │
│   ██║  ██║███████╗ ╚████╔╝      ██║  ██║██║          │
│   ╚═╝  ╚═╝╚══════╝  ╚═══╝       ╚═╝  ╚═╝╚═╝          │
│            multi-agent branch review                 │
╰──────────────────────────────────────────────────────╯
`

const maxFileRows = 10

// reviewRun tracks the live state of the review in flight.
type reviewRun struct {
	taskID  string
	files   []string
	status  map[string]core.FileStatus
	elapsed map[string]time.Duration
	started time.Time
	stage   string
	cancel  context.CancelFunc
}

func newReviewRun(req *core.ReviewRequest, cancel context.CancelFunc) *reviewRun {
	run := &reviewRun{
		taskID:  req.Task.ID,
		status:  make(map[string]core.FileStatus, len(req.Files)),
		elapsed: make(map[string]time.Duration, len(req.Files)),
		started: time.Now(),
		stage:   "reviewing",
		cancel:  cancel,
	}
	for _, f := range req.Files {
		run.files = append(run.files, f.FilePath)
	}
	return run
}

func (r *reviewRun) finished() int {
	n := 0
	for _, st := range r.status {
		if st == core.FileCompleted || st == core.FileFailed || st == core.FileSkipped {
			n++
		}
	}
	return n
}

func (r *reviewRun) percent() float64 {
	if len(r.files) == 0 {
		return 1
	}
	return float64(r.finished()) / float64(len(r.files))
}

func (r *reviewRun) apply(ev core.ProgressEvent) {
	switch ev.Kind {
	case core.EventFileStarted:
		r.status[ev.FilePath] = core.FileInProgress
	case core.EventFileCompleted:
		r.status[ev.FilePath] = core.FileCompleted
		r.elapsed[ev.FilePath] = ev.Duration
	case core.EventFileFailed:
		r.status[ev.FilePath] = core.FileFailed
		r.elapsed[ev.FilePath] = ev.Duration
	case core.EventFileSkipped:
		r.status[ev.FilePath] = core.FileSkipped
	case core.EventAggregating:
		r.stage = "aggregating"
	case core.EventDone:
		r.stage = "done"
	}
}

type model struct {
	styles styles
	cfg    *config.Config
	sink   *programSink
	app    *app.App

	cleanup func()

	// UI Components
	viewport  viewport.Model
	textarea  textarea.Model
	spinner   spinner.Model
	progress  progress.Model
	isLoading bool
	width     int

	history []string
	review  *reviewRun
}

func initialModel(theme ThemeName, cfg *config.Config, sink *programSink) *model {
	styles := GetTheme(theme)
	ta := textarea.New()
	ta.Placeholder = "/review <path> <source> <target> [output.md]"
	ta.Focus()
	ta.Prompt = styles.prompt.Render("► ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.prompt
	pr := progress.New(progress.WithDefaultGradient())

	return &model{
		styles:    styles,
		cfg:       cfg,
		sink:      sink,
		textarea:  ta,
		spinner:   sp,
		progress:  pr,
		isLoading: true,
		history:   []string{styles.ascii.Render(asciiLogo), "", "⚙ Starting reviewer agents..."},
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(initializeAppCmd(m.cfg, m.sink), m.spinner.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.review != nil {
				m.review.cancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m, m.processCommand(input)
		}

	case appInitializedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.appendHistory("", m.styles.error.Render("Initialization failed: "+msg.err.Error()))
			return m, nil
		}
		m.app = msg.app
		m.cleanup = msg.cleanup
		m.appendHistory("", m.styles.success.Render("✓ READY"), "Type /help for commands.")
		return m, nil

	case reviewPreparedMsg:
		if m.review == nil || (msg.req != nil && msg.req.Task.ID != m.review.taskID) {
			return m, nil
		}
		if msg.err != nil {
			m.isLoading = false
			m.review.cancel()
			m.review = nil
			m.appendHistory(m.styles.error.Render("⚠ "+msg.err.Error()))
			return m, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.review.cancel()
		m.review = newReviewRun(msg.req, cancel)
		m.appendHistory(m.styles.command.Render(fmt.Sprintf("→ %d changed files, task %s", len(msg.req.Files), msg.req.Task.ID)))
		return m, tea.Batch(m.spinner.Tick, runReviewCmd(ctx, m.app, msg.req, msg.output))

	case progressMsg:
		if m.review != nil && (m.review.taskID == "" || m.review.taskID == msg.TaskID) {
			m.review.apply(core.ProgressEvent(msg))
		}
		return m, tea.Batch(tiCmd, vpCmd, spCmd)

	case reviewCompleteMsg:
		m.isLoading = false
		elapsed := time.Duration(0)
		if m.review != nil {
			elapsed = time.Since(m.review.started).Round(time.Millisecond)
			m.review.cancel()
			m.review = nil
		}
		if msg.err != nil && msg.report == nil {
			stage := core.StageOf(msg.err)
			if stage == "" {
				stage = "unknown"
			}
			m.appendHistory("", m.styles.error.Render(fmt.Sprintf("✗ Review failed (%s stage): %v", stage, msg.err)))
			return m, nil
		}
		m.appendHistory("", m.renderReport(msg.report))
		if msg.err != nil {
			m.appendHistory(m.styles.error.Render("⚠ " + msg.err.Error()))
		} else if msg.output != "" {
			m.appendHistory(m.styles.success.Render("📄 Report written to " + msg.output))
		}
		m.appendHistory(m.styles.inactive.Render(fmt.Sprintf("finished in %s", elapsed)))
		return m, nil

	case runsLoadedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.appendHistory(m.styles.error.Render("Could not load runs: " + msg.err.Error()))
			return m, nil
		}
		m.appendHistory(m.renderRuns(msg.runs))
		return m, nil

	case runLoadedMsg:
		m.isLoading = false
		if msg.err != nil {
			if errors.Is(msg.err, storage.ErrRunNotFound) {
				m.appendHistory(m.styles.error.Render("No run with that task id."))
			} else {
				m.appendHistory(m.styles.error.Render("Could not load run: " + msg.err.Error()))
			}
			return m, nil
		}
		m.appendHistory("", m.renderReport(msg.report))
		return m, nil

	case errorMsg:
		m.isLoading = false
		m.appendHistory("", m.styles.error.Render("⚠ "+msg.err.Error()))
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 10 - m.panelHeight()
		m.textarea.SetWidth(msg.Width - 10)
		m.progress.Width = min(msg.Width-20, 60)
		m.viewport.SetContent(strings.Join(m.history, "\n"))
	}

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m *model) appendHistory(lines ...string) {
	m.history = append(m.history, lines...)
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

func (m *model) panelHeight() int {
	if m.review == nil {
		return 0
	}
	return maxFileRows + 3
}

func (m *model) View() string {
	if m.app == nil && m.isLoading {
		return fmt.Sprintf("\n  %s Starting rev-ai...\n\n", m.spinner.View())
	}

	statusParts := []string{
		fmt.Sprintf("🤖 %s (%s)", m.cfg.AI.GeneratorModel, m.cfg.AI.LLMProvider),
	}
	if m.cfg.Knowledge.Enabled {
		statusParts = append(statusParts, fmt.Sprintf("📚 %s", m.cfg.Knowledge.Collection))
	}
	if m.review != nil {
		statusParts = append(statusParts, "TASK: "+shortID(m.review.taskID))
	}
	status := m.styles.inactive.Render(strings.Join(statusParts, " │ "))

	var loadingIndicator string
	if m.isLoading {
		loadingIndicator = " " + m.spinner.View() + " " + m.styles.success.Render("WORKING...")
	}

	sections := []string{m.styles.viewport.Render(m.viewport.View())}
	if m.review != nil {
		sections = append(sections, "", m.renderPanel())
	}
	sections = append(sections,
		m.styles.footer.Render(
			lipgloss.JoinHorizontal(lipgloss.Left,
				m.textarea.View(),
				loadingIndicator,
			),
		),
		status,
	)
	return m.styles.app.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// renderPanel shows the progress bar and the files that are running or
// most recently finished.
func (m *model) renderPanel() string {
	r := m.review
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %d/%d files  %s\n",
		m.spinner.View(),
		m.progress.ViewAs(r.percent()),
		r.finished(), len(r.files),
		m.styles.inactive.Render(r.stage))

	// running files first, then pending, then finished
	paths := append([]string(nil), r.files...)
	sort.SliceStable(paths, func(i, j int) bool {
		return statusOrder(r.status[paths[i]]) < statusOrder(r.status[paths[j]])
	})
	rows := make([]string, 0, len(paths))
	for _, path := range paths {
		row := fmt.Sprintf("  %s %s", m.styles.fileStatus(r.status[path]), path)
		if d, ok := r.elapsed[path]; ok {
			row += m.styles.inactive.Render(fmt.Sprintf(" (%s)", d.Round(time.Millisecond)))
		}
		rows = append(rows, row)
	}
	if len(rows) > maxFileRows {
		hidden := len(rows) - maxFileRows
		rows = append(rows[:maxFileRows], m.styles.inactive.Render(fmt.Sprintf("  … %d more", hidden)))
	}
	b.WriteString(strings.Join(rows, "\n"))
	return b.String()
}

func (m *model) renderReport(rep *core.Report) string {
	var b strings.Builder
	if rep.Summary != nil {
		b.WriteString(m.styles.verdict(rep.Summary.Verdict))
		if rep.Summary.HighestSeverity != "" {
			b.WriteString(m.styles.inactive.Render(" highest severity: " + string(rep.Summary.HighestSeverity)))
		}
		if rep.Summary.Partial {
			b.WriteString(" " + m.styles.warning.Render(fmt.Sprintf("partial: %d file(s) not reviewed", len(rep.Summary.NotReviewed()))))
		}
		b.WriteString("\n")
	}

	md := report.Markdown(rep, report.Meta{
		Model:     m.cfg.AI.GeneratorModel,
		Provider:  m.cfg.AI.LLMProvider,
		Generated: rep.FinishedAt,
	})
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width-2))
	if err != nil {
		b.WriteString(md)
		return b.String()
	}
	out, err := renderer.Render(md)
	if err != nil {
		b.WriteString(md)
		return b.String()
	}
	b.WriteString(out)
	return b.String()
}

func (m *model) renderRuns(runs []storage.RunSummary) string {
	if len(runs) == 0 {
		return m.styles.inactive.Render("No review runs recorded yet. Use /review to start one.")
	}
	var b strings.Builder
	b.WriteString(m.styles.success.Render("RECENT RUNS:"))
	for _, run := range runs {
		line := fmt.Sprintf("\n  %s  %s  %s → %s  %s",
			m.styles.prompt.Render(run.TaskID),
			m.styles.verdict(run.Verdict),
			run.SourceBranch, run.TargetBranch,
			m.styles.inactive.Render(run.FinishedAt.Format(time.RFC822)))
		if run.Partial {
			line += m.styles.warning.Render(" partial")
		}
		b.WriteString(line)
	}
	b.WriteString("\n\n" + m.styles.inactive.Render("Use '/show [task_id]' to open a run."))
	return b.String()
}

func (m *model) processCommand(input string) tea.Cmd {
	m.appendHistory(m.styles.prompt.Render("► ") + input)

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	command := parts[0]
	args := parts[1:]

	if m.app == nil && command != "/exit" && command != "/quit" && command != "/help" && command != "/h" {
		m.appendHistory(m.styles.error.Render("The application failed to start. Fix the configuration and restart."))
		return nil
	}

	switch command {
	case "/review", "/r":
		if len(args) < 3 || len(args) > 4 {
			m.appendHistory(m.styles.error.Render("USAGE: /review [project_path] [source_branch] [target_branch] [output_file]"))
			return nil
		}
		if m.review != nil {
			m.appendHistory(m.styles.error.Render("A review is already running. Use /cancel to stop it."))
			return nil
		}
		req := &core.ReviewRequest{
			Task:         core.NewTask(),
			ProjectPath:  args[0],
			SourceBranch: args[1],
			TargetBranch: args[2],
		}
		output := ""
		if len(args) == 4 {
			output = args[3]
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.review = &reviewRun{taskID: req.Task.ID, status: map[string]core.FileStatus{}, stage: "preparing", started: time.Now(), cancel: cancel}
		m.isLoading = true
		m.appendHistory(m.styles.command.Render(fmt.Sprintf("→ Collecting changes of %s against %s...", req.SourceBranch, req.TargetBranch)))
		return tea.Batch(m.spinner.Tick, prepareReviewCmd(ctx, m.app, req, output))

	case "/cancel":
		if m.review == nil {
			m.appendHistory(m.styles.inactive.Render("No review is running."))
			return nil
		}
		m.review.cancel()
		if m.review.stage == "preparing" {
			m.review = nil
			m.isLoading = false
		}
		m.appendHistory(m.styles.command.Render("→ Cancelling review..."))
		return nil

	case "/runs", "/ls":
		m.isLoading = true
		return tea.Batch(m.spinner.Tick, loadRunsCmd(m.app))

	case "/show":
		if len(args) != 1 {
			m.appendHistory(m.styles.error.Render("USAGE: /show [task_id]"))
			return nil
		}
		m.isLoading = true
		return tea.Batch(m.spinner.Tick, loadRunCmd(m.app, args[0]))

	case "/help", "/h":
		helpText := m.styles.success.Render("AVAILABLE COMMANDS:") + `

  /review [path] [source] [target] [output]   Review source against target.
  /cancel                                     Cancel the running review.
  /runs, /ls                                  List recent review runs.
  /show [task_id]                             Show the report of a run.
  /help                                       Show this help message.
  /exit, /quit                                Exit rev-ai.`
		m.appendHistory("", helpText)
		return nil

	case "/exit", "/quit":
		if m.review != nil {
			m.review.cancel()
		}
		return tea.Quit

	default:
		m.appendHistory(m.styles.error.Render(fmt.Sprintf("UNKNOWN COMMAND: %s", command)), m.styles.inactive.Render("Type /help for assistance."))
		return nil
	}
}

func statusOrder(st core.FileStatus) int {
	switch st {
	case core.FileInProgress:
		return 0
	case "":
		return 1
	default:
		return 2
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
