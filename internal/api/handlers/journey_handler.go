package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// JourneyHandler handles journey templates and employee progress.
type JourneyHandler struct {
	service services.JourneyServiceProvider
	users   services.UserServiceProvider
}

// NewJourneyHandler creates a new JourneyHandler.
func NewJourneyHandler(service services.JourneyServiceProvider, users services.UserServiceProvider) *JourneyHandler {
	return &JourneyHandler{service: service, users: users}
}

// employee resolves {id} or the caller, scoped to the manager's team.
func (h *JourneyHandler) employee(w http.ResponseWriter, r *http.Request) (*auth.Claims, string, bool) {
	claims, ok := caller(w, r)
	if !ok {
		return nil, "", false
	}
	userID := chi.URLParam(r, "id")
	if userID == "" {
		userID = claims.UserID
	}
	if err := ensureReport(h.users, claims, userID); err != nil {
		writeServiceError(w, r, err, "Failed to resolve user")
		return nil, "", false
	}
	return claims, userID, true
}

func (h *JourneyHandler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	journeys, err := h.service.ListJourneys(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve journeys")
		return
	}
	writeJSON(w, http.StatusOK, journeys)
}

func (h *JourneyHandler) GetJourney(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	journey, err := h.service.GetJourney(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve journey")
		return
	}
	writeJSON(w, http.StatusOK, journey)
}

// UpdatePhase edits a phase template.
func (h *JourneyHandler) UpdatePhase(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.PhaseInput
	if !decodeJSON(w, r, &input) {
		return
	}
	phase, err := h.service.UpdatePhase(claims.OrganizationID, claims.UserID, chi.URLParam(r, "phaseId"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update phase")
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// Start enrolls the employee in the journey for their employee type.
func (h *JourneyHandler) Start(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.employee(w, r)
	if !ok {
		return
	}
	ej, err := h.service.StartJourney(claims.OrganizationID, claims.UserID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to start journey")
		return
	}
	writeJSON(w, http.StatusCreated, ej)
}

// CompletePhase completes the current phase and unlocks the next.
func (h *JourneyHandler) CompletePhase(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.employee(w, r)
	if !ok {
		return
	}
	ej, err := h.service.CompletePhase(claims.OrganizationID, claims.UserID, userID, chi.URLParam(r, "phaseId"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to complete phase")
		return
	}
	writeJSON(w, http.StatusOK, ej)
}

func (h *JourneyHandler) Progress(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.employee(w, r)
	if !ok {
		return
	}
	ej, err := h.service.GetProgress(claims.OrganizationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve journey progress")
		return
	}
	writeJSON(w, http.StatusOK, ej)
}

// ListEmployees lists journeys in progress. Managers only see their team.
func (h *JourneyHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	managerID := ""
	if claims.Role == models.RoleManager {
		managerID = claims.UserID
	}
	journeys, err := h.service.ListEmployeeJourneys(claims.OrganizationID, managerID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve employee journeys")
		return
	}
	writeJSON(w, http.StatusOK, journeys)
}
