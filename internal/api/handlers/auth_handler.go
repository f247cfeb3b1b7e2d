package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles passwordless login.
type AuthHandler struct {
	service  services.AuthServiceProvider
	users    services.UserServiceProvider
	tokenTTL time.Duration
	secure   bool
	clock    clockwork.Clock
}

// NewAuthHandler creates a new AuthHandler. secure sets the Secure flag on the session cookie.
func NewAuthHandler(service services.AuthServiceProvider, users services.UserServiceProvider, tokenTTL time.Duration, secure bool, clock clockwork.Clock) *AuthHandler {
	return &AuthHandler{service: service, users: users, tokenTTL: tokenTTL, secure: secure, clock: clock}
}

type otpRequestPayload struct {
	Email string `json:"email"`
}

type otpVerifyPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RequestOTP sends a login code. It answers 202 whether or not the email is known.
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var payload otpRequestPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.RequestOTP(r.Context(), payload.Email); err != nil {
		writeServiceError(w, r, err, "Failed to send login code")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "If the address is registered, a login code is on its way"})
}

// VerifyOTP exchanges a code for a session token and sets the session cookie.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload otpVerifyPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	token, user, err := h.service.VerifyOTP(payload.Email, payload.Code)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed login code verification")
		writeServiceError(w, r, err, "Failed to verify login code")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  h.clock.Now().Add(h.tokenTTL),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	w.WriteHeader(http.StatusNoContent)
}

// GetMe retrieves the currently authenticated user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(claims.OrganizationID, claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
