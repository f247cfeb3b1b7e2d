package handlers

import (
	"context"
	"net/http"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// HealthReporter reports database and host health.
type HealthReporter interface {
	Health(ctx context.Context) models.SystemHealth
}

// DashboardHandler serves the admin dashboard.
type DashboardHandler struct {
	service services.DashboardServiceProvider
	health  HealthReporter
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(service services.DashboardServiceProvider, health HealthReporter) *DashboardHandler {
	return &DashboardHandler{service: service, health: health}
}

// Stats returns the organization's headline counts.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	stats, err := h.service.GetStats(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve dashboard stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health returns 503 when the database is unreachable.
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.health.Health(r.Context())
	status := http.StatusOK
	if health.Database != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
