package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// List handles listing users with optional department, role, jobRoleId and managerId filters.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	users, err := h.service.ListUsers(claims.OrganizationID, models.UserFilter{
		Department: q.Get("department"),
		Role:       models.Role(q.Get("role")),
		JobRoleID:  q.Get("jobRoleId"),
		ManagerID:  q.Get("managerId"),
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Team lists the caller's direct reports.
func (h *UserHandler) Team(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	users, err := h.service.ListUsers(claims.OrganizationID, models.UserFilter{ManagerID: claims.UserID})
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve team")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUserByID(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Create handles adding a user to the caller's organization.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.UserInput
	if !decodeJSON(w, r, &input) {
		return
	}
	user, err := h.service.CreateUser(claims.OrganizationID, claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Update handles updating a user's profile and role assignments.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.UserInput
	if !decodeJSON(w, r, &input) {
		return
	}
	user, err := h.service.UpdateUser(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete handles removing a user and their history.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
