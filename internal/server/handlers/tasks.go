package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/petrelhq/petrel/internal/errors"
	"github.com/petrelhq/petrel/pkg/phase"
	"github.com/petrelhq/petrel/pkg/statedoc"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

// TaskLister reads registered tasks.
type TaskLister interface {
	List() ([]taskregistry.TaskRecord, error)
}

// TasksHandler serves the task registry and progress read surface.
type TasksHandler struct {
	tasks   TaskLister
	backend statedoc.Backend
}

func NewTasksHandler(tasks TaskLister, backend statedoc.Backend) *TasksHandler {
	return &TasksHandler{tasks: tasks, backend: backend}
}

// ListTasks returns all registered tasks, newest first.
func (h *TasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	records, err := h.tasks.List()
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Tasks []taskregistry.TaskRecord `json:"tasks"`
	}{Tasks: records})
}

// JobProgressResponse is the payload for one job's persisted progress.
type JobProgressResponse struct {
	JobID    string           `json:"job_id"`
	Index    string           `json:"index"`
	Progress []phase.Progress `json:"progress"`
}

// GetJobProgress returns the persisted progress snapshot for a job, or 404
// when no progress document exists.
func (h *TasksHandler) GetJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		apperrors.WriteError(w, apperrors.CodeInvalidArgument, "job id is required", "", nil)
		return
	}

	hit, err := h.backend.SearchStateDoc(r.Context(), phase.DocID(jobID))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if hit == nil {
		apperrors.WriteError(w, apperrors.CodeNotFound, "no progress recorded for job "+jobID, "", nil)
		return
	}

	doc, err := phase.ParseStoredProgress(hit.Body)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(JobProgressResponse{
		JobID:    jobID,
		Index:    hit.Index,
		Progress: doc.Progress,
	})
}
