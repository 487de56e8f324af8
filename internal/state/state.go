// Package state keeps short-lived task progress and results in memory for the
// job runner, the HTTP API and the terminal UI.
package state

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/montarelab/rev-ai/internal/core"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusRunning     Status = "running"
	StatusAggregating Status = "aggregating"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// TaskState is a snapshot of one task.
type TaskState struct {
	TaskID    string                     `json:"task_id"`
	Status    Status                     `json:"status"`
	Error     string                     `json:"error,omitempty"`
	Files     map[string]core.FileStatus `json:"files"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Manager stores task states for stateTTL and reports for resultTTL.
type Manager struct {
	mu      sync.Mutex
	states  *cache.Cache
	results *cache.Cache
}

// NewManager creates a Manager. Non-positive TTLs never expire.
func NewManager(stateTTL, resultTTL time.Duration) *Manager {
	return &Manager{
		states:  newCache(stateTTL),
		results: newCache(resultTTL),
	}
}

func newCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return cache.New(cache.NoExpiration, 0)
	}
	return cache.New(ttl, ttl/2)
}

// must hold mu
func (m *Manager) load(taskID string) *TaskState {
	if v, ok := m.states.Get(taskID); ok {
		return v.(*TaskState)
	}
	return &TaskState{TaskID: taskID, Files: map[string]core.FileStatus{}}
}

// must hold mu
func (m *Manager) store(st *TaskState) {
	st.UpdatedAt = time.Now()
	m.states.Set(st.TaskID, st, cache.DefaultExpiration)
}

// SetStatus records the task status. errMsg is kept for failed tasks.
func (m *Manager) SetStatus(taskID string, status Status, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.load(taskID)
	st.Status = status
	st.Error = errMsg
	m.store(st)
}

// SetFileStatus records the status of one file.
func (m *Manager) SetFileStatus(taskID, filePath string, status core.FileStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.load(taskID)
	st.Files[filePath] = status
	m.store(st)
}

// State returns a copy of the task state.
func (m *Manager) State(taskID string) (TaskState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.states.Get(taskID)
	if !ok {
		return TaskState{}, false
	}
	st := *v.(*TaskState)
	st.Files = maps.Clone(st.Files)
	return st, true
}

// Status returns the task status.
func (m *Manager) Status(taskID string) (Status, bool) {
	st, ok := m.State(taskID)
	return st.Status, ok
}

// FileStatus returns a copy of the per-file statuses.
func (m *Manager) FileStatus(taskID string) map[string]core.FileStatus {
	st, _ := m.State(taskID)
	if st.Files == nil {
		return map[string]core.FileStatus{}
	}
	return st.Files
}

// SetResult keeps the finished report.
func (m *Manager) SetResult(report *core.Report) {
	m.results.Set(report.Task.ID, report, cache.DefaultExpiration)
}

// Result returns the finished report.
func (m *Manager) Result(taskID string) (*core.Report, bool) {
	v, ok := m.results.Get(taskID)
	if !ok {
		return nil, false
	}
	return v.(*core.Report), true
}

// SaveRun stores report as the result and marks the task completed.
func (m *Manager) SaveRun(_ context.Context, report *core.Report) error {
	m.SetResult(report)
	m.SetStatus(report.Task.ID, StatusCompleted, "")
	return nil
}

// OnEvent tracks progress events from the runner and orchestrator.
func (m *Manager) OnEvent(ev core.ProgressEvent) {
	switch ev.Kind {
	case core.EventFileStarted:
		m.SetFileStatus(ev.TaskID, ev.FilePath, core.FileInProgress)
	case core.EventFileCompleted:
		m.SetFileStatus(ev.TaskID, ev.FilePath, core.FileCompleted)
	case core.EventFileFailed:
		m.SetFileStatus(ev.TaskID, ev.FilePath, core.FileFailed)
	case core.EventFileSkipped:
		m.SetFileStatus(ev.TaskID, ev.FilePath, core.FileSkipped)
	case core.EventAggregating:
		m.SetStatus(ev.TaskID, StatusAggregating, "")
	case core.EventDone:
		if ev.Err != nil {
			m.SetStatus(ev.TaskID, StatusFailed, ev.Err.Error())
		}
	}
}
