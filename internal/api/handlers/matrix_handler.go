package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/export"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// MatrixHandler handles skill matrices, gap reports and the training needs analysis.
type MatrixHandler struct {
	service services.SkillMatrixServiceProvider
	users   services.UserServiceProvider
	clock   clockwork.Clock
}

// NewMatrixHandler creates a new MatrixHandler.
func NewMatrixHandler(service services.SkillMatrixServiceProvider, users services.UserServiceProvider, clock clockwork.Clock) *MatrixHandler {
	return &MatrixHandler{service: service, users: users, clock: clock}
}

// targetUser resolves {id} or falls back to the caller for /me routes, enforcing team scope.
func (h *MatrixHandler) targetUser(w http.ResponseWriter, r *http.Request) (*auth.Claims, string, bool) {
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

// GetMatrix returns the user's skill matrix rows with gaps.
func (h *MatrixHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	entries, err := h.service.GetMatrix(claims.OrganizationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve skill matrix")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GapReport returns the user's gap summary.
func (h *MatrixHandler) GapReport(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	report, err := h.service.EmployeeGapReport(claims.OrganizationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to build gap report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Assess records current levels for the user.
func (h *MatrixHandler) Assess(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Entries []services.MatrixEntryInput `json:"entries"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	entries, err := h.service.AssessEmployee(claims.OrganizationID, claims.UserID, userID, payload.Entries)
	if err != nil {
		writeServiceError(w, r, err, "Failed to record assessment")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SyncFromRole copies the job role's required levels into the user's matrix.
func (h *MatrixHandler) SyncFromRole(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	n, err := h.service.SyncFromRole(claims.OrganizationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to sync from job role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": n})
}

// MatrixCSV downloads the user's matrix as CSV.
func (h *MatrixHandler) MatrixCSV(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	entries, err := h.service.GetMatrix(claims.OrganizationID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve skill matrix")
		return
	}
	var buf bytes.Buffer
	if err := export.MatrixCSV(&buf, entries); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to render matrix CSV")
		writeError(w, http.StatusInternalServerError, "Failed to render CSV")
		return
	}
	writeCSV(w, fmt.Sprintf("skill-matrix-%s.csv", userID), buf.Bytes())
}

func (h *MatrixHandler) tna(w http.ResponseWriter, r *http.Request) (models.TNAReport, bool) {
	claims, ok := caller(w, r)
	if !ok {
		return models.TNAReport{}, false
	}
	q := r.URL.Query()
	report, err := h.service.TrainingNeedsAnalysis(claims.OrganizationID, models.TNAFilter{
		Department: q.Get("department"),
		JobRoleID:  q.Get("jobRoleId"),
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to build training needs analysis")
		return models.TNAReport{}, false
	}
	return report, true
}

// TrainingNeeds returns the training needs analysis, filtered by ?department= and ?jobRoleId=.
func (h *MatrixHandler) TrainingNeeds(w http.ResponseWriter, r *http.Request) {
	report, ok := h.tna(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// TrainingNeedsCSV downloads the per-skill rows of the analysis.
func (h *MatrixHandler) TrainingNeedsCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.tna(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.TNASkillsCSV(&buf, report); err != nil {
		log.Error().Err(err).Msg("Failed to render TNA CSV")
		writeError(w, http.StatusInternalServerError, "Failed to render CSV")
		return
	}
	writeCSV(w, "training-needs-"+h.clock.Now().UTC().Format("2006-01-02")+".csv", buf.Bytes())
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
