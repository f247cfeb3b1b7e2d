package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/monitoring"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/stretchr/testify/mock"
)

// Each mock embeds its provider interface; calling a method that is not overridden panics.

type mockAuth struct {
	services.AuthServiceProvider
	mock.Mock
}

func (m *mockAuth) RequestOTP(ctx context.Context, email string) error {
	return m.Called(email).Error(0)
}

func (m *mockAuth) VerifyOTP(email, code string) (string, models.User, error) {
	args := m.Called(email, code)
	return args.String(0), args.Get(1).(models.User), args.Error(2)
}

type mockUsers struct {
	services.UserServiceProvider
	mock.Mock
}

func (m *mockUsers) GetUserByID(orgID, id string) (models.User, error) {
	args := m.Called(orgID, id)
	return args.Get(0).(models.User), args.Error(1)
}

type mockAssessments struct {
	services.AssessmentServiceProvider
	mock.Mock
}

func (m *mockAssessments) GetAttempt(orgID, attemptID string) (models.Attempt, error) {
	args := m.Called(orgID, attemptID)
	return args.Get(0).(models.Attempt), args.Error(1)
}

func (m *mockAssessments) SubmitAttempt(orgID, userID, attemptID string, answers []models.SubmittedAnswer) (models.Attempt, error) {
	args := m.Called(orgID, userID, attemptID, answers)
	return args.Get(0).(models.Attempt), args.Error(1)
}

func (m *mockAssessments) GetAssessment(orgID, id string, withAnswers bool) (models.Assessment, error) {
	args := m.Called(orgID, id, withAnswers)
	return args.Get(0).(models.Assessment), args.Error(1)
}

type mockProofs struct {
	services.ProofServiceProvider
	mock.Mock
}

func (m *mockProofs) UploadProof(ctx context.Context, orgID, userID, assignmentID string, file services.ProofUpload) (models.Proof, error) {
	args := m.Called(orgID, userID, assignmentID, file)
	return args.Get(0).(models.Proof), args.Error(1)
}

type mockJourneys struct {
	services.JourneyServiceProvider
	mock.Mock
}

func (m *mockJourneys) ListEmployeeJourneys(orgID, managerID string) ([]models.EmployeeJourney, error) {
	args := m.Called(orgID, managerID)
	journeys, _ := args.Get(0).([]models.EmployeeJourney)
	return journeys, args.Error(1)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunOverdue() (monitoring.OverdueResult, error) {
	args := m.Called()
	return args.Get(0).(monitoring.OverdueResult), args.Error(1)
}

type fixedHealth models.SystemHealth

func (h fixedHealth) Health(context.Context) models.SystemHealth { return models.SystemHealth(h) }

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// newRequest builds a request carrying claims and chi URL params.
func newRequest(method, target string, body *bytesBody, claims *auth.Claims, params map[string]string) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body.reader())
		req.Header.Set("Content-Type", body.contentType)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if claims != nil {
		ctx = auth.WithClaims(ctx, claims)
	}
	return req.WithContext(ctx)
}

func employee(id string) *auth.Claims {
	return &auth.Claims{UserID: id, OrganizationID: "org-1", Role: models.RoleEmployee}
}

func staff(id string, role models.Role) *auth.Claims {
	return &auth.Claims{UserID: id, OrganizationID: "org-1", Role: role}
}

type bytesBody struct {
	data        []byte
	contentType string
}

func (b *bytesBody) reader() io.Reader { return bytes.NewReader(b.data) }

func jsonBody(v any) *bytesBody {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &bytesBody{data: data, contentType: "application/json"}
}
