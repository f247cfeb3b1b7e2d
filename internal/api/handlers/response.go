package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/rs/zerolog/log"
)

// maxJSONBody caps request bodies for JSON endpoints.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service error kinds onto HTTP statuses. Unknown errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// decodeJSON reads a JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// caller returns the authenticated claims. Routes using it sit behind auth.Middleware.
func caller(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		writeError(w, http.StatusUnauthorized, "Missing auth token")
		return nil, false
	}
	return claims, true
}

func isStaff(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleTrainer || role == models.RoleManager
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// ensureReport limits managers to their direct reports. Admins and trainers may act on anyone in the org.
func ensureReport(users services.UserServiceProvider, claims *auth.Claims, userID string) error {
	if claims.Role != models.RoleManager || claims.UserID == userID {
		return nil
	}
	user, err := users.GetUserByID(claims.OrganizationID, userID)
	if err != nil {
		return err
	}
	if user.ManagerID == nil || *user.ManagerID != claims.UserID {
		return fmt.Errorf("%w: %s is not on your team", services.ErrForbidden, user.Name)
	}
	return nil
}
