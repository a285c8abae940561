package api

import (
	"net/http"

	"github.com/okian/classboard/internal/domain/types"
	"github.com/okian/classboard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthProvider reports service liveness.
type HealthProvider interface {
	Health() types.Health
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	provider HealthProvider
	metrics  http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(provider HealthProvider) *HealthHandler {
	return &HealthHandler{
		provider: provider,
		metrics:  promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /api/health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Health())
}

// HandleMetrics handles GET /healthz with the Prometheus exposition format.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
