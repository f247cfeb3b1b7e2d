package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(role models.Role) models.User {
	return models.User{ID: "user-1", OrganizationID: "org-1", Email: "a@example.com", Role: role}
}

func TestGenerateAndValidateJWT(t *testing.T) {
	clock := clockwork.NewFakeClock()
	issuer := NewTokenIssuer("0123456789abcdef", time.Hour, clock)

	token, err := issuer.GenerateJWT(testUser(models.RoleTrainer))
	require.NoError(t, err)

	claims, err := issuer.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, models.RoleTrainer, claims.Role)

	clock.Advance(2 * time.Hour)
	_, err = issuer.ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateJWTRejectsForeignSecret(t *testing.T) {
	clock := clockwork.NewFakeClock()
	token, err := NewTokenIssuer("0123456789abcdef", time.Hour, clock).GenerateJWT(testUser(models.RoleAdmin))
	require.NoError(t, err)

	_, err = NewTokenIssuer("another-secret-value", time.Hour, clock).ValidateJWT(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	clock := clockwork.NewFakeClock()
	issuer := NewTokenIssuer("0123456789abcdef", time.Hour, clock)
	token, err := issuer.GenerateJWT(testUser(models.RoleEmployee))
	require.NoError(t, err)

	handler := issuer.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.UserID))
	}))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		path string
		role models.Role
		want bool
	}{
		{"/api/v1/admin/users", models.RoleAdmin, true},
		{"/api/v1/admin/users", models.RoleManager, false},
		{"/api/v1/admin", models.RoleTrainer, false},
		{"/api/v1/administrators", models.RoleEmployee, true},
		{"/api/v1/trainer/assessments", models.RoleTrainer, true},
		{"/api/v1/trainer/assessments", models.RoleAdmin, true},
		{"/api/v1/trainer/assessments", models.RoleManager, false},
		{"/api/v1/manager/tna", models.RoleManager, true},
		{"/api/v1/manager/tna", models.RoleEmployee, false},
		{"/api/v1/me/assignments", models.RoleEmployee, true},
	}
	for _, tt := range tests {
		t.Run(tt.path+"_"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(DefaultRules, tt.path, tt.role))
		})
	}
}

func TestPrefixGuard(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	guard := PrefixGuard(DefaultRules)(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/events", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u", Role: models.RoleEmployee}))
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/events", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u", Role: models.RoleAdmin}))
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
