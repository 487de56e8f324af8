// Package handler provides the HTTP handlers of the rev-ai API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/jobs"
	"github.com/montarelab/rev-ai/internal/state"
	"github.com/montarelab/rev-ai/internal/storage"
)

const maxListLimit = 100

// CreateReviewRequest is the body of POST /api/v1/reviews.
type CreateReviewRequest struct {
	ProjectPath  string `json:"project_path"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
}

// ReviewStatusResponse is returned by GET /api/v1/reviews/{taskID}.
type ReviewStatusResponse struct {
	TaskID string                     `json:"task_id"`
	Status state.Status               `json:"status"`
	Error  string                     `json:"error,omitempty"`
	Files  map[string]core.FileStatus `json:"files,omitempty"`
	Report *core.Report               `json:"report,omitempty"`
}

// ReviewHandler serves the review endpoints.
type ReviewHandler struct {
	dispatcher core.JobDispatcher
	state      *state.Manager
	runs       storage.Store
	logger     *slog.Logger
}

// NewReviewHandler creates a ReviewHandler. runs may be nil when run
// history is disabled.
func NewReviewHandler(dispatcher core.JobDispatcher, st *state.Manager, runs storage.Store, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{dispatcher: dispatcher, state: st, runs: runs, logger: logger}
}

// Create validates the request and queues a review job.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := &core.ReviewRequest{
		Task:         core.NewTask(),
		ProjectPath:  body.ProjectPath,
		SourceBranch: body.SourceBranch,
		TargetBranch: body.TargetBranch,
	}
	if err := jobs.ValidateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.state.SetStatus(req.Task.ID, state.StatusQueued, "")
	if err := h.dispatcher.Dispatch(r.Context(), req); err != nil {
		h.state.SetStatus(req.Task.ID, state.StatusFailed, err.Error())
		h.logger.Error("failed to dispatch review job", "task_id", req.Task.ID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	h.logger.Info("review job dispatched", "task_id", req.Task.ID, "project", req.ProjectPath)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": req.Task.ID,
		"status":  string(state.StatusQueued),
	})
}

// Get returns the live state of a task, or the stored run once the state expired.
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	if st, ok := h.state.State(taskID); ok {
		resp := ReviewStatusResponse{TaskID: taskID, Status: st.Status, Error: st.Error, Files: st.Files}
		if st.Status == state.StatusCompleted {
			resp.Report, _ = h.state.Result(taskID)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if h.runs != nil {
		report, err := h.runs.GetRun(r.Context(), taskID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, ReviewStatusResponse{TaskID: taskID, Status: state.StatusCompleted, Report: report})
			return
		case !errors.Is(err, storage.ErrRunNotFound):
			h.logger.Error("failed to load review run", "task_id", taskID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load review")
			return
		}
	}
	writeError(w, http.StatusNotFound, "review not found")
}

// List returns recently finished runs. ?limit= caps the result (default 20).
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, []storage.RunSummary{})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list review runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
