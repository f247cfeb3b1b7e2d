package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/export"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/jonboulle/clockwork"
)

// TrainingHandler handles trainings, assignments and calendar exports.
type TrainingHandler struct {
	service services.TrainingServiceProvider
	users   services.UserServiceProvider
	clock   clockwork.Clock
}

// NewTrainingHandler creates a new TrainingHandler.
func NewTrainingHandler(service services.TrainingServiceProvider, users services.UserServiceProvider, clock clockwork.Clock) *TrainingHandler {
	return &TrainingHandler{service: service, users: users, clock: clock}
}

// List lists trainings, optionally filtered by ?skillId=.
func (h *TrainingHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	trainings, err := h.service.ListTrainings(claims.OrganizationID, r.URL.Query().Get("skillId"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve trainings")
		return
	}
	writeJSON(w, http.StatusOK, trainings)
}

func (h *TrainingHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	training, err := h.service.GetTraining(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve training")
		return
	}
	writeJSON(w, http.StatusOK, training)
}

func (h *TrainingHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.TrainingInput
	if !decodeJSON(w, r, &input) {
		return
	}
	training, err := h.service.CreateTraining(claims.OrganizationID, claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create training")
		return
	}
	writeJSON(w, http.StatusCreated, training)
}

func (h *TrainingHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.TrainingInput
	if !decodeJSON(w, r, &input) {
		return
	}
	training, err := h.service.UpdateTraining(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update training")
		return
	}
	writeJSON(w, http.StatusOK, training)
}

func (h *TrainingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTraining(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete training")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Assign assigns the training to users. Users who already have it are skipped.
func (h *TrainingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.AssignInput
	if !decodeJSON(w, r, &input) {
		return
	}
	created, err := h.service.AssignTraining(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to assign training")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// AssignFromGaps assigns every training that targets one of the user's gaps.
func (h *TrainingHandler) AssignFromGaps(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "id")
	if err := ensureReport(h.users, claims, userID); err != nil {
		writeServiceError(w, r, err, "Failed to resolve user")
		return
	}
	created, err := h.service.AssignFromGaps(claims.OrganizationID, claims.UserID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to assign trainings from gaps")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListAssignments lists assignments filtered by ?trainingId=, ?userId= and ?status=.
func (h *TrainingHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	assignments, err := h.service.ListAssignments(claims.OrganizationID, models.AssignmentFilter{
		TrainingID: q.Get("trainingId"),
		UserID:     q.Get("userId"),
		Status:     models.AssignmentStatus(q.Get("status")),
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve assignments")
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *TrainingHandler) MyAssignments(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	assignments, err := h.service.ListMyAssignments(claims.OrganizationID, claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve assignments")
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// StartAssignment marks the caller's assignment as started.
func (h *TrainingHandler) StartAssignment(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	a, err := h.service.StartAssignment(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to start assignment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// TrainingCalendar exports one offline training as an .ics file.
func (h *TrainingHandler) TrainingCalendar(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	training, err := h.service.GetTraining(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve training")
		return
	}
	if training.Mode != models.TrainingOffline {
		writeError(w, http.StatusBadRequest, "only offline trainings have a calendar entry")
		return
	}
	writeICS(w, "training-"+training.ID+".ics", export.TrainingsICS(training.Title, []models.Training{training}, h.clock.Now()))
}

// MyCalendar exports the caller's assigned offline trainings.
func (h *TrainingHandler) MyCalendar(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	trainings, err := h.service.ListMyOfflineTrainings(claims.OrganizationID, claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve trainings")
		return
	}
	writeICS(w, "my-trainings.ics", export.TrainingsICS("My trainings", trainings, h.clock.Now()))
}

func writeICS(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
