package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/httpx"
)

// ReadyCheck probes one dependency for readiness.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandlers serves the /healthz and /readyz endpoints.
type HealthHandlers struct {
	startedAt time.Time
	now       func() time.Time
	checks    []ReadyCheck
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithReadyChecks registers dependency probes run on /readyz.
func WithReadyChecks(checks ...ReadyCheck) HealthOption {
	return func(h *HealthHandlers) {
		h.checks = append(h.checks, checks...)
	}
}

// WithHealthClock overrides the clock, for tests.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.now = now
	}
}

// NewHealthHandlers constructs the health endpoints.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.now().UTC()
	return h
}

// Healthz reports liveness only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz runs the registered dependency probes and reports per-check state.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			results[check.Name] = err.Error()
			healthy = false
			continue
		}
		results[check.Name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	httpx.WriteJSON(ctx, w, status, map[string]any{
		"status": state,
		"checks": results,
	})
}
