package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/isdelr/skill-loop-be/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// OverdueRunner runs the overdue sweep on demand.
type OverdueRunner interface {
	RunOverdue() (monitoring.OverdueResult, error)
}

// CronHandler lets an external scheduler trigger jobs with a shared secret.
type CronHandler struct {
	runner OverdueRunner
	secret string
}

// NewCronHandler creates a new CronHandler. An empty secret disables the endpoint.
func NewCronHandler(runner OverdueRunner, secret string) *CronHandler {
	return &CronHandler{runner: runner, secret: secret}
}

func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	given := r.Header.Get("X-Cron-Secret")
	if given == "" {
		given = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) == 1
}

// Overdue marks overdue journey phases and training assignments.
func (h *CronHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid cron secret")
		return
	}
	result, err := h.runner.RunOverdue()
	if err != nil {
		log.Error().Err(err).Interface("result", result).Msg("Overdue sweep failed")
		writeError(w, http.StatusInternalServerError, "overdue sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
