package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// AssessmentHandler handles assessments, attempts and grading.
type AssessmentHandler struct {
	service services.AssessmentServiceProvider
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(service services.AssessmentServiceProvider) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

// ListPublished lists assessments employees can take.
func (h *AssessmentHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// ListAll lists every assessment including drafts.
func (h *AssessmentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *AssessmentHandler) list(w http.ResponseWriter, r *http.Request, publishedOnly bool) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	assessments, err := h.service.ListAssessments(claims.OrganizationID, publishedOnly)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve assessments")
		return
	}
	writeJSON(w, http.StatusOK, assessments)
}

// GetForCandidate returns a published assessment without its answer key.
func (h *AssessmentHandler) GetForCandidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetAssessment(claims.OrganizationID, chi.URLParam(r, "id"), false)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve assessment")
		return
	}
	if !a.IsPublished {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Get returns an assessment with its answer key.
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetAssessment(claims.OrganizationID, chi.URLParam(r, "id"), true)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssessmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.AssessmentInput
	if !decodeJSON(w, r, &input) {
		return
	}
	a, err := h.service.CreateAssessment(claims.OrganizationID, claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create assessment")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AssessmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.AssessmentInput
	if !decodeJSON(w, r, &input) {
		return
	}
	a, err := h.service.UpdateAssessment(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssessmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAssessment(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete assessment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AssessmentHandler) Publish(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	a, err := h.service.PublishAssessment(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to publish assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssessmentHandler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.QuestionInput
	if !decodeJSON(w, r, &input) {
		return
	}
	q, err := h.service.AddQuestion(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to add question")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *AssessmentHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.QuestionInput
	if !decodeJSON(w, r, &input) {
		return
	}
	q, err := h.service.UpdateQuestion(claims.OrganizationID, claims.UserID, chi.URLParam(r, "questionId"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update question")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *AssessmentHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteQuestion(claims.OrganizationID, claims.UserID, chi.URLParam(r, "questionId")); err != nil {
		writeServiceError(w, r, err, "Failed to delete question")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftPayload struct {
	Count int                   `json:"count"`
	Types []models.QuestionType `json:"types"`
}

// Draft asks the AI drafter for questions and appends the valid ones.
func (h *AssessmentHandler) Draft(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var payload draftPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	questions, err := h.service.DraftQuestions(r.Context(), claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), payload.Count, payload.Types)
	if err != nil {
		writeServiceError(w, r, err, "Failed to draft questions")
		return
	}
	writeJSON(w, http.StatusCreated, questions)
}

// StartAttempt starts or resumes the caller's attempt.
func (h *AssessmentHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	attempt, err := h.service.StartAttempt(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to start attempt")
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// SubmitAttempt grades the caller's answers.
func (h *AssessmentHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Answers []models.SubmittedAnswer `json:"answers"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	attempt, err := h.service.SubmitAttempt(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), payload.Answers)
	if err != nil {
		writeServiceError(w, r, err, "Failed to submit attempt")
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// GetAttempt returns an attempt to its owner or to staff.
func (h *AssessmentHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	attempt, err := h.service.GetAttempt(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve attempt")
		return
	}
	if attempt.UserID != claims.UserID && !isStaff(claims.Role) {
		writeError(w, http.StatusForbidden, "not your attempt")
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *AssessmentHandler) MyAttempts(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	attempts, err := h.service.ListMyAttempts(claims.OrganizationID, claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve attempts")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// PendingGrading lists submitted attempts waiting on descriptive grading.
func (h *AssessmentHandler) PendingGrading(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	pending, err := h.service.PendingGrading(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve pending grading")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

type gradePayload struct {
	Points   int    `json:"points"`
	Feedback string `json:"feedback"`
}

// GradeAnswer scores one descriptive answer.
func (h *AssessmentHandler) GradeAnswer(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var payload gradePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	attempt, err := h.service.GradeAnswer(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "questionId"), payload.Points, payload.Feedback)
	if err != nil {
		writeServiceError(w, r, err, "Failed to grade answer")
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}
