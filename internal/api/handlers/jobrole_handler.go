package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// JobRoleHandler handles job roles and their competency frameworks.
type JobRoleHandler struct {
	service services.JobRoleServiceProvider
}

// NewJobRoleHandler creates a new JobRoleHandler.
func NewJobRoleHandler(service services.JobRoleServiceProvider) *JobRoleHandler {
	return &JobRoleHandler{service: service}
}

func (h *JobRoleHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	roles, err := h.service.ListJobRoles(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve job roles")
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (h *JobRoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetJobRole(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve job role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *JobRoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.JobRoleInput
	if !decodeJSON(w, r, &input) {
		return
	}
	role, err := h.service.CreateJobRole(claims.OrganizationID, claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create job role")
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *JobRoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.JobRoleInput
	if !decodeJSON(w, r, &input) {
		return
	}
	role, err := h.service.UpdateJobRole(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update job role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *JobRoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteJobRole(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete job role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceCompetencies swaps the role's whole competency set.
func (h *JobRoleHandler) ReplaceCompetencies(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Competencies []services.CompetencyInput `json:"competencies"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	role, err := h.service.ReplaceCompetencies(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), payload.Competencies)
	if err != nil {
		writeServiceError(w, r, err, "Failed to replace competencies")
		return
	}
	writeJSON(w, http.StatusOK, role)
}
