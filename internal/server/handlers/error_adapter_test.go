package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/petrelhq/petrel/internal/errors"
	"github.com/petrelhq/petrel/pkg/statedoc"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

type failingTaskLister struct {
	err error
}

func (f failingTaskLister) List() ([]taskregistry.TaskRecord, error) {
	return nil, f.err
}

type failingBackend struct {
	err error
}

func (f failingBackend) SearchStateDoc(ctx context.Context, docID string) (*statedoc.Hit, error) {
	return nil, f.err
}

func (f failingBackend) IndexStateDoc(ctx context.Context, target, docID string, body []byte) error {
	return f.err
}

func TestResponderSeesTaskListFailure(t *testing.T) {
	original := httpErrorResponder
	defer func() { httpErrorResponder = original }()

	listErr := errors.New("tasks root unreadable")
	var captured error
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		captured = err
		w.WriteHeader(http.StatusBadGateway)
	})

	h := NewTasksHandler(failingTaskLister{err: listErr}, failingBackend{})

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	h.ListTasks(rec, req)

	assert.Equal(t, listErr, captured)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDefaultResponderWritesErrorEnvelope(t *testing.T) {
	original := httpErrorResponder
	defer func() { httpErrorResponder = original }()

	ResetHTTPErrorResponder()

	h := NewTasksHandler(failingTaskLister{}, failingBackend{err: errors.New("state store offline")})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/churn/progress", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", "churn")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	h.GetJobProgress(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Message, "state store offline")
}

func TestSetHTTPErrorResponderNilResets(t *testing.T) {
	original := httpErrorResponder
	defer func() { httpErrorResponder = original }()

	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusTeapot)
	})
	SetHTTPErrorResponder(nil)

	h := NewTasksHandler(failingTaskLister{err: errors.New("boom")}, failingBackend{})
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	h.ListTasks(rec, req)

	// Back on the default responder, which writes the standard envelope.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResetHTTPErrorResponder(t *testing.T) {
	original := httpErrorResponder
	defer func() { httpErrorResponder = original }()

	customCalled := false
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		customCalled = true
	})
	ResetHTTPErrorResponder()

	h := NewTasksHandler(failingTaskLister{err: errors.New("boom")}, failingBackend{})
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	h.ListTasks(rec, req)

	assert.False(t, customCalled)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
