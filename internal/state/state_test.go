package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/core"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(time.Hour, time.Hour)

	_, ok := m.Status("t1")
	assert.False(t, ok)

	m.SetStatus("t1", StatusQueued, "")
	m.SetStatus("t1", StatusRunning, "")
	m.OnEvent(core.ProgressEvent{TaskID: "t1", FilePath: "a.go", Kind: core.EventFileStarted})
	m.OnEvent(core.ProgressEvent{TaskID: "t1", FilePath: "b.go", Kind: core.EventFileStarted})
	m.OnEvent(core.ProgressEvent{TaskID: "t1", FilePath: "a.go", Kind: core.EventFileCompleted})
	m.OnEvent(core.ProgressEvent{TaskID: "t1", FilePath: "b.go", Kind: core.EventFileFailed})

	assert.Equal(t, map[string]core.FileStatus{"a.go": core.FileCompleted, "b.go": core.FileFailed}, m.FileStatus("t1"))

	m.OnEvent(core.ProgressEvent{TaskID: "t1", Kind: core.EventAggregating})
	status, ok := m.Status("t1")
	require.True(t, ok)
	assert.Equal(t, StatusAggregating, status)

	report := &core.Report{Task: core.Task{ID: "t1"}}
	require.NoError(t, m.SaveRun(context.Background(), report))

	got, ok := m.Result("t1")
	require.True(t, ok)
	assert.Same(t, report, got)
	status, _ = m.Status("t1")
	assert.Equal(t, StatusCompleted, status)
}

func TestManager_FailedDone(t *testing.T) {
	m := NewManager(time.Hour, time.Hour)
	m.OnEvent(core.ProgressEvent{TaskID: "t1", Kind: core.EventDone, Err: errors.New("model down")})

	st, ok := m.State("t1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "model down", st.Error)
}

func TestManager_StateIsACopy(t *testing.T) {
	m := NewManager(time.Hour, time.Hour)
	m.SetFileStatus("t1", "a.go", core.FileInProgress)

	files := m.FileStatus("t1")
	files["b.go"] = core.FileCompleted
	assert.Len(t, m.FileStatus("t1"), 1)
	assert.Empty(t, m.FileStatus("unknown"))
}

func TestManager_ConcurrentFileEvents(t *testing.T) {
	m := NewManager(time.Hour, time.Hour)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.OnEvent(core.ProgressEvent{TaskID: "t1", FilePath: fmt.Sprintf("f%d.go", i), Kind: core.EventFileCompleted})
		}()
	}
	wg.Wait()
	assert.Len(t, m.FileStatus("t1"), 50)
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(20*time.Millisecond, 20*time.Millisecond)
	m.SetStatus("t1", StatusRunning, "")
	m.SetResult(&core.Report{Task: core.Task{ID: "t1"}})

	assert.Eventually(t, func() bool {
		_, stateOK := m.Status("t1")
		_, resultOK := m.Result("t1")
		return !stateOK && !resultOK
	}, time.Second, 10*time.Millisecond)
}
