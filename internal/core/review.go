package core

import (
	"time"

	"github.com/google/uuid"
)

// Task identifies one end-to-end review run.
type Task struct {
	ID        string    `json:"task_id"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask returns a task with fresh task and thread identifiers.
func NewTask() Task {
	return Task{
		ID:        uuid.NewString(),
		ThreadID:  uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

// ChangedFile is a single file touched by the diff under review.
// Changes is nil when no hunk text is available for the file.
type ChangedFile struct {
	FilePath string  `json:"file_path"`
	Content  string  `json:"content"`
	Changes  *string `json:"changes,omitempty"`
}

// Diff returns the hunk text or an empty string.
func (f ChangedFile) Diff() string {
	if f.Changes == nil {
		return ""
	}
	return *f.Changes
}

// ReviewRequest is the input of one review run.
type ReviewRequest struct {
	Task         Task          `json:"task"`
	ProjectPath  string        `json:"project_path"`
	SourceBranch string        `json:"source_branch"`
	TargetBranch string        `json:"target_branch"`
	Files        []ChangedFile `json:"changed_files"`
	// Instructions are repository specific reviewer instructions.
	Instructions string `json:"instructions,omitempty"`
}

// ReviewInput is what a single reviewer invocation receives.
// SourceBranch, when set, is the revision project files are read at.
type ReviewInput struct {
	Task         Task
	File         ChangedFile
	ProjectRoot  string
	SourceBranch string
	Instructions string
}

// ReviewedFileRecord is one entry of the dedup ledger.
type ReviewedFileRecord struct {
	TaskID   string `db:"task_id" json:"task_id"`
	FilePath string `db:"file_path" json:"file_path"`
}

// TranscriptEntry is a single turn of a reviewer conversation.
type TranscriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RawMessage is the full transcript produced by one reviewer invocation.
type RawMessage struct {
	TaskID   string            `json:"task_id"`
	FilePath string            `json:"file_path"`
	Entries  []TranscriptEntry `json:"entries"`
}

// Append adds a turn to the transcript.
func (m *RawMessage) Append(role, content string) {
	m.Entries = append(m.Entries, TranscriptEntry{Role: role, Content: content})
}

// FileStatus is the lifecycle state of one file review.
type FileStatus string

const (
	FileInProgress FileStatus = "in_progress"
	FileCompleted  FileStatus = "completed"
	FileFailed     FileStatus = "failed"
	FileSkipped    FileStatus = "skipped"
)

// FileOutcome records how the review of one file terminated.
type FileOutcome struct {
	FilePath string        `json:"file_path"`
	Status   FileStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

// Report bundles everything a finished run produced.
type Report struct {
	Task         Task               `json:"task"`
	ProjectPath  string             `json:"project_path"`
	SourceBranch string             `json:"source_branch"`
	TargetBranch string             `json:"target_branch"`
	Summary      *Summary           `json:"summary"`
	Structured   []StructuredResult `json:"structured"`
	Raw          []RawMessage       `json:"raw,omitempty"`
	Outcomes     []FileOutcome      `json:"outcomes"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
}

// FailedFiles returns the paths whose review failed.
func (r *Report) FailedFiles() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if o.Status == FileFailed {
			failed = append(failed, o.FilePath)
		}
	}
	return failed
}
