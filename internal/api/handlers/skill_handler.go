package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/services"
)

// SkillHandler handles the skill catalog.
type SkillHandler struct {
	service services.SkillServiceProvider
}

// NewSkillHandler creates a new SkillHandler.
func NewSkillHandler(service services.SkillServiceProvider) *SkillHandler {
	return &SkillHandler{service: service}
}

func (h *SkillHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	categories, err := h.service.ListCategories(claims.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *SkillHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.CategoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	category, err := h.service.CreateCategory(claims.OrganizationID, claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *SkillHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.CategoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	category, err := h.service.UpdateCategory(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update category")
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *SkillHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSkills lists skills, optionally filtered by ?categoryId=.
func (h *SkillHandler) ListSkills(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	skills, err := h.service.ListSkills(claims.OrganizationID, r.URL.Query().Get("categoryId"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve skills")
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (h *SkillHandler) GetSkill(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	skill, err := h.service.GetSkillByID(claims.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve skill")
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (h *SkillHandler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.SkillInput
	if !decodeJSON(w, r, &input) {
		return
	}
	skill, err := h.service.CreateSkill(claims.OrganizationID, claims.UserID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create skill")
		return
	}
	writeJSON(w, http.StatusCreated, skill)
}

func (h *SkillHandler) UpdateSkill(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.SkillInput
	if !decodeJSON(w, r, &input) {
		return
	}
	skill, err := h.service.UpdateSkill(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update skill")
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (h *SkillHandler) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSkill(claims.OrganizationID, claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete skill")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
