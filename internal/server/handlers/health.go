// Package handlers implements the serve surface's HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/petrelhq/petrel/internal/errors"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the healthy-path payload.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthManager aggregates named dependency checkers.
type HealthManager struct {
	version string

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// checkTimeout bounds each dependency check.
const checkTimeout = 5 * time.Second

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker adds a named dependency check. Later registrations with
// the same name replace earlier ones.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

// HealthHandler reports 200 when every dependency answers (status healthy,
// or degraded when checks time out) and 503 with failing checks in the
// error details otherwise.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := m.runChecks(ctx)
	status := m.determineOverallStatus(checks)

	if status == "unhealthy" {
		failures := map[string]interface{}{"checks": toDetails(checks)}
		apperrors.WriteError(w, apperrors.CodeServiceUnavailable,
			"one or more health checks failed", "", failures)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  status,
		Version: m.version,
		Checks:  checks,
	})
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	checks := make(map[string]string, len(names))
	for _, name := range names {
		err := checkers[name].CheckHealth(ctx)
		switch {
		case err == nil:
			checks[name] = "healthy"
		case errors.Is(err, context.DeadlineExceeded):
			checks[name] = "timeout"
		default:
			checks[name] = "unhealthy"
		}
	}
	return checks
}

// determineOverallStatus folds per-check statuses into one. Timeouts mean
// degraded, not down: the dependency may recover without intervention.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := "healthy"
	for _, s := range checks {
		switch s {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			status = "degraded"
		}
	}
	return status
}

func toDetails(checks map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(checks))
	for name, s := range checks {
		out[name] = s
	}
	return out
}
