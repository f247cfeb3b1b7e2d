package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/monitoring"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("skill s1: %w", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("name taken: %w", services.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: points must be positive", services.ErrInvalid), http.StatusBadRequest},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "Failed")
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}

	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("near \"SELEC\": syntax error"), "Failed to load")
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "Failed to load", body["error"], "internal details are not leaked")
}

func TestRequestOTP(t *testing.T) {
	svc := &mockAuth{}
	h := NewAuthHandler(svc, &mockUsers{}, 0, false, clockwork.NewFakeClockAt(testNow))

	rec := httptest.NewRecorder()
	h.RequestOTP(rec, newRequest(http.MethodPost, "/api/v1/auth/otp/request", jsonBody(map[string]string{}), nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("RequestOTP", "eve@acme.test").Return(nil).Once()
	rec = httptest.NewRecorder()
	h.RequestOTP(rec, newRequest(http.MethodPost, "/api/v1/auth/otp/request", jsonBody(map[string]string{"email": "eve@acme.test"}), nil, nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	svc.AssertExpectations(t)
}

func TestVerifyOTPSetsSessionCookie(t *testing.T) {
	svc := &mockAuth{}
	h := NewAuthHandler(svc, &mockUsers{}, 0, true, clockwork.NewFakeClockAt(testNow))
	user := models.User{ID: "u1", Email: "eve@acme.test", Role: models.RoleEmployee}

	svc.On("VerifyOTP", "eve@acme.test", "123456").Return("signed-token", user, nil).Once()
	rec := httptest.NewRecorder()
	h.VerifyOTP(rec, newRequest(http.MethodPost, "/api/v1/auth/otp/verify", jsonBody(map[string]string{"email": "eve@acme.test", "code": "123456"}), nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Equal(t, "signed-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "signed-token", body.Token)
	assert.Equal(t, "u1", body.User.ID)

	svc.On("VerifyOTP", "eve@acme.test", "000000").Return("", models.User{}, fmt.Errorf("%w: invalid code", services.ErrUnauthorized)).Once()
	rec = httptest.NewRecorder()
	h.VerifyOTP(rec, newRequest(http.MethodPost, "/api/v1/auth/otp/verify", jsonBody(map[string]string{"email": "eve@acme.test", "code": "000000"}), nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogoutClearsCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuth{}, &mockUsers{}, 0, false, clockwork.NewFakeClock())
	rec := httptest.NewRecorder()
	h.Logout(rec, newRequest(http.MethodPost, "/api/v1/auth/logout", nil, nil, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestEnsureReport(t *testing.T) {
	users := &mockUsers{}
	manager := staff("m1", models.RoleManager)
	mid := "m1"
	other := "m2"
	users.On("GetUserByID", "org-1", "eve").Return(models.User{ID: "eve", Name: "Eve", ManagerID: &mid}, nil)
	users.On("GetUserByID", "org-1", "bob").Return(models.User{ID: "bob", Name: "Bob", ManagerID: &other}, nil)
	users.On("GetUserByID", "org-1", "ann").Return(models.User{ID: "ann", Name: "Ann"}, nil)

	assert.NoError(t, ensureReport(users, manager, "eve"))
	assert.NoError(t, ensureReport(users, manager, "m1"), "managers may act on themselves")
	assert.ErrorIs(t, ensureReport(users, manager, "bob"), services.ErrForbidden)
	assert.ErrorIs(t, ensureReport(users, manager, "ann"), services.ErrForbidden)

	assert.NoError(t, ensureReport(users, staff("a1", models.RoleAdmin), "bob"))
	users.AssertNumberOfCalls(t, "GetUserByID", 3)
}

func TestGetAttemptOwnership(t *testing.T) {
	svc := &mockAssessments{}
	h := NewAssessmentHandler(svc)
	svc.On("GetAttempt", "org-1", "at1").Return(models.Attempt{ID: "at1", UserID: "eve"}, nil)

	tests := []struct {
		name   string
		claims *auth.Claims
		want   int
	}{
		{"owner", employee("eve"), http.StatusOK},
		{"other employee", employee("bob"), http.StatusForbidden},
		{"trainer", staff("t1", models.RoleTrainer), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetAttempt(rec, newRequest(http.MethodGet, "/api/v1/attempts/at1", nil, tt.claims, map[string]string{"id": "at1"}))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubmitAttemptDecodesAnswers(t *testing.T) {
	svc := &mockAssessments{}
	h := NewAssessmentHandler(svc)
	answers := []models.SubmittedAnswer{{QuestionID: "q1", Answer: "Paris"}, {QuestionID: "q2", Answer: "true"}}
	svc.On("SubmitAttempt", "org-1", "eve", "at1", answers).Return(models.Attempt{ID: "at1", Status: models.AttemptGraded, Passed: true}, nil).Once()

	rec := httptest.NewRecorder()
	h.SubmitAttempt(rec, newRequest(http.MethodPost, "/api/v1/attempts/at1/submit", jsonBody(map[string]any{"answers": answers}), employee("eve"), map[string]string{"id": "at1"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Attempt
	decodeBody(t, rec, &got)
	assert.True(t, got.Passed)
	svc.AssertExpectations(t)
}

func TestGetForCandidateHidesDrafts(t *testing.T) {
	svc := &mockAssessments{}
	h := NewAssessmentHandler(svc)
	svc.On("GetAssessment", "org-1", "draft", false).Return(models.Assessment{ID: "draft"}, nil)
	svc.On("GetAssessment", "org-1", "live", false).Return(models.Assessment{ID: "live", IsPublished: true}, nil)

	rec := httptest.NewRecorder()
	h.GetForCandidate(rec, newRequest(http.MethodGet, "/api/v1/assessments/draft", nil, employee("eve"), map[string]string{"id": "draft"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.GetForCandidate(rec, newRequest(http.MethodGet, "/api/v1/assessments/live", nil, employee("eve"), map[string]string{"id": "live"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func multipartFile(t *testing.T, field, name, contentType string, data []byte) *bytesBody {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &bytesBody{data: buf.Bytes(), contentType: mw.FormDataContentType()}
}

func TestUploadProof(t *testing.T) {
	svc := &mockProofs{}
	h := NewProofHandler(svc, nil, 5)
	data := []byte("%PDF-1.7 certificate")

	svc.On("UploadProof", "org-1", "eve", "as1", mock.MatchedBy(func(f services.ProofUpload) bool {
		return f.FileName == "certificate.pdf" && f.ContentType == "application/pdf" && f.Size == int64(len(data))
	})).Return(models.Proof{ID: "p1", Status: models.ProofPending}, nil).Once()

	rec := httptest.NewRecorder()
	body := multipartFile(t, "file", "certificate.pdf", "application/pdf", data)
	h.Upload(rec, newRequest(http.MethodPost, "/api/v1/me/assignments/as1/proofs", body, employee("eve"), map[string]string{"id": "as1"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)

	rec = httptest.NewRecorder()
	body = multipartFile(t, "attachment", "certificate.pdf", "application/pdf", data)
	h.Upload(rec, newRequest(http.MethodPost, "/api/v1/me/assignments/as1/proofs", body, employee("eve"), map[string]string{"id": "as1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the file field is required")
}

func TestListEmployeeJourneysScopesManagers(t *testing.T) {
	svc := &mockJourneys{}
	h := NewJourneyHandler(svc, &mockUsers{})
	svc.On("ListEmployeeJourneys", "org-1", "m1").Return([]models.EmployeeJourney{{UserID: "eve"}}, nil).Once()
	svc.On("ListEmployeeJourneys", "org-1", "").Return([]models.EmployeeJourney{{UserID: "eve"}, {UserID: "bob"}}, nil).Once()

	rec := httptest.NewRecorder()
	h.ListEmployees(rec, newRequest(http.MethodGet, "/api/v1/manager/journeys", nil, staff("m1", models.RoleManager), nil))
	var journeys []models.EmployeeJourney
	decodeBody(t, rec, &journeys)
	assert.Len(t, journeys, 1)

	rec = httptest.NewRecorder()
	h.ListEmployees(rec, newRequest(http.MethodGet, "/api/v1/manager/journeys", nil, staff("a1", models.RoleAdmin), nil))
	decodeBody(t, rec, &journeys)
	assert.Len(t, journeys, 2)
	svc.AssertExpectations(t)
}

func TestCronOverdue(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunOverdue").Return(monitoring.OverdueResult{PhasesMarked: 2, AssignmentsMarked: 1}, nil)

	tests := []struct {
		name   string
		secret string
		header string
		value  string
		want   int
	}{
		{"disabled without a secret", "", "X-Cron-Secret", "", http.StatusUnauthorized},
		{"wrong secret", "s3cret", "X-Cron-Secret", "guess", http.StatusUnauthorized},
		{"secret header", "s3cret", "X-Cron-Secret", "s3cret", http.StatusOK},
		{"bearer token", "s3cret", "Authorization", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCronHandler(runner, tt.secret)
			req := newRequest(http.MethodPost, "/api/v1/cron/overdue", nil, nil, nil)
			if tt.value != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.Overdue(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				var result monitoring.OverdueResult
				decodeBody(t, rec, &result)
				assert.Equal(t, 2, result.PhasesMarked)
			}
		})
	}
	runner.AssertNumberOfCalls(t, "RunOverdue", 2)
}

func TestCronOverdueFailure(t *testing.T) {
	runner := &mockRunner{}
	runner.On("RunOverdue").Return(monitoring.OverdueResult{AssignmentsMarked: 1}, errors.New("database is locked"))
	h := NewCronHandler(runner, "s3cret")
	req := newRequest(http.MethodPost, "/api/v1/cron/overdue", nil, nil, nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	rec := httptest.NewRecorder()
	h.Overdue(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	h := NewDashboardHandler(nil, fixedHealth{Database: "ok", CPUPercent: 3})
	rec := httptest.NewRecorder()
	h.Health(rec, newRequest(http.MethodGet, "/api/v1/admin/system/health", nil, staff("a1", models.RoleAdmin), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewDashboardHandler(nil, fixedHealth{Database: "unreachable"})
	rec = httptest.NewRecorder()
	h.Health(rec, newRequest(http.MethodGet, "/api/v1/admin/system/health", nil, staff("a1", models.RoleAdmin), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCallerRequiresClaims(t *testing.T) {
	h := NewNotificationHandler(nil)
	rec := httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, "/api/v1/me/notifications", nil, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
