package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	service services.NotificationServiceProvider
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service services.NotificationServiceProvider) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns notifications newest first; ?unread=true limits to unread ones.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	notifications, err := h.service.ListNotifications(claims.UserID, queryBool(r, "unread"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkRead(claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.service.MarkAllRead(claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to mark notifications read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
