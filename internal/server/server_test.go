package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/petrelhq/petrel/internal/errors"
	"github.com/petrelhq/petrel/internal/server/handlers"
	"github.com/petrelhq/petrel/pkg/statedoc"
	"github.com/petrelhq/petrel/pkg/taskregistry"
)

type stubTaskLister struct {
	records []taskregistry.TaskRecord
}

func (s stubTaskLister) List() ([]taskregistry.TaskRecord, error) {
	return s.records, nil
}

type stubBackend struct {
	hit *statedoc.Hit
}

func (s stubBackend) SearchStateDoc(ctx context.Context, docID string) (*statedoc.Hit, error) {
	return s.hit, nil
}

func (s stubBackend) IndexStateDoc(ctx context.Context, target, docID string, body []byte) error {
	return nil
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_TaskRoutesRequireRegistration(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListTasks(t *testing.T) {
	srv := New("127.0.0.1", 0)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	srv.RegisterTasks(stubTaskLister{records: []taskregistry.TaskRecord{
		{TaskID: "analytics-churn-abc", JobID: "churn", AllocationID: 2, State: "analyzing", CreatedAt: now, UpdatedAt: now},
	}}, stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []taskregistry.TaskRecord `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "churn", body.Tasks[0].JobID)
	assert.Equal(t, int64(2), body.Tasks[0].AllocationID)
}

func TestServer_JobProgress(t *testing.T) {
	srv := New("127.0.0.1", 0)
	srv.RegisterTasks(stubTaskLister{}, stubBackend{hit: &statedoc.Hit{
		Index: "state-000001",
		ID:    "analytics-churn-progress",
		Body:  []byte(`{"progress":[{"name":"reindexing","percent":70}]}`),
	}})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/churn/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.JobProgressResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "churn", body.JobID)
	assert.Equal(t, "state-000001", body.Index)
	require.Len(t, body.Progress, 1)
	assert.Equal(t, 70, body.Progress[0].Percent)
}

func TestServer_JobProgressNotFound(t *testing.T) {
	srv := New("127.0.0.1", 0)
	srv.RegisterTasks(stubTaskLister{}, stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/ghost/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServer_HealthRouteRegistered(t *testing.T) {
	srv := NewWithVersion("127.0.0.1", 0, "test")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
