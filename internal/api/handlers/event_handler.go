package handlers

import (
	"net/http"

	"github.com/isdelr/skill-loop-be/internal/services"
)

// EventHandler handles HTTP requests related to the organization's activity feed.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit > 200 {
		limit = 200
	}
	events, err := h.service.GetRecentEvents(claims.OrganizationID, limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
