package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/rs/zerolog/log"
)

// ProofHandler handles completion proof upload, review and download.
type ProofHandler struct {
	service     services.ProofServiceProvider
	trainings   services.TrainingServiceProvider
	maxUploadMB int64
}

// NewProofHandler creates a new ProofHandler.
func NewProofHandler(service services.ProofServiceProvider, trainings services.TrainingServiceProvider, maxUploadMB int64) *ProofHandler {
	return &ProofHandler{service: service, trainings: trainings, maxUploadMB: maxUploadMB}
}

// Upload accepts a multipart "file" field for one of the caller's assignments.
func (h *ProofHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	limit := h.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", h.maxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	proof, err := h.service.UploadProof(r.Context(), claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), services.ProofUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to upload proof")
		return
	}
	writeJSON(w, http.StatusCreated, proof)
}

// List lists proofs for review, filtered by ?status=.
func (h *ProofHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	proofs, err := h.service.ListProofs(claims.OrganizationID, models.ProofStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve proofs")
		return
	}
	writeJSON(w, http.StatusOK, proofs)
}

// ListForAssignment lists an assignment's proofs. Employees only see their own assignments.
func (h *ProofHandler) ListForAssignment(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	assignmentID := chi.URLParam(r, "id")
	a, err := h.trainings.GetAssignment(claims.OrganizationID, assignmentID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve assignment")
		return
	}
	if a.UserID != claims.UserID && !isStaff(claims.Role) {
		writeError(w, http.StatusForbidden, "not your assignment")
		return
	}
	proofs, err := h.service.ListAssignmentProofs(claims.OrganizationID, assignmentID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve proofs")
		return
	}
	writeJSON(w, http.StatusOK, proofs)
}

type reviewPayload struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// Review approves or rejects a pending proof.
func (h *ProofHandler) Review(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var payload reviewPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	proof, err := h.service.ReviewProof(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), payload.Approve, payload.Note)
	if err != nil {
		writeServiceError(w, r, err, "Failed to review proof")
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

// authorize loads the proof and checks the caller may read it.
func (h *ProofHandler) authorize(w http.ResponseWriter, r *http.Request, claims *auth.Claims) bool {
	proof, err := h.service.GetProof(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve proof")
		return false
	}
	if proof.UserID != claims.UserID && !isStaff(claims.Role) {
		writeError(w, http.StatusForbidden, "not your proof")
		return false
	}
	return true
}

// DownloadURL returns where the file can be fetched: a presigned link or the streaming route.
func (h *ProofHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok || !h.authorize(w, r, claims) {
		return
	}
	url, err := h.service.DownloadURL(r.Context(), claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to build download link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// File streams the stored proof.
func (h *ProofHandler) File(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok || !h.authorize(w, r, claims) {
		return
	}
	body, proof, err := h.service.OpenProof(r.Context(), claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to open proof")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", proof.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(proof.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", proof.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("proof_id", proof.ID).Msg("Proof download interrupted")
	}
}
