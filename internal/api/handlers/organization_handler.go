package handlers

import (
	"net/http"

	"github.com/isdelr/skill-loop-be/internal/services"
)

// OrganizationHandler handles tenant sign-up and system configuration.
type OrganizationHandler struct {
	service services.OrganizationServiceProvider
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(service services.OrganizationServiceProvider) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// Create registers an organization and its first admin.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.OrganizationInput
	if !decodeJSON(w, r, &input) {
		return
	}
	org, admin, err := h.service.CreateOrganization(input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create organization")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"organization": org, "admin": admin})
}

// Current returns the caller's organization.
func (h *OrganizationHandler) Current(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	org, err := h.service.GetOrganization(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve organization")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// GetConfig returns the organization's system configuration.
func (h *OrganizationHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	cfg, err := h.service.GetConfig(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig changes configuration values. Values must be JSON integers.
func (h *OrganizationHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var values map[string]int
	if !decodeJSON(w, r, &values) {
		return
	}
	cfg, err := h.service.UpdateConfig(claims.OrganizationID, claims.UserID, values)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
