package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/skill-loop-be/internal/database"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

// recordingNotifier captures websocket pushes.
type recordingNotifier struct {
	mu     sync.Mutex
	pushes map[string][][]byte
}

func (n *recordingNotifier) PushToUser(userID string, message []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pushes == nil {
		n.pushes = map[string][][]byte{}
	}
	n.pushes[userID] = append(n.pushes[userID], message)
}

func (n *recordingNotifier) count(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pushes[userID])
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendLoginCode(ctx context.Context, to, name, code, magicLink string) error {
	args := m.Called(ctx, to, name, code, magicLink)
	return args.Error(0)
}

type mockDrafter struct {
	mock.Mock
}

func (m *mockDrafter) DraftQuestions(ctx context.Context, req models.QuestionDraftRequest) ([]models.Question, error) {
	args := m.Called(ctx, req)
	questions, _ := args.Get(0).([]models.Question)
	return questions, args.Error(1)
}

// memoryStorage keeps proof files in a map.
type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: map[string][]byte{}}
}

func (m *memoryStorage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) Presign(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

// fixture wires real services over a temporary database with one organization.
type fixture struct {
	db            *sql.DB
	clock         *clockwork.FakeClock
	notifier      *recordingNotifier
	events        *EventService
	notifications *NotificationService
	orgs          *OrganizationService
	matrix        *SkillMatrixService
	users         *UserService
	skills        *SkillService
	roles         *JobRoleService
	trainings     *TrainingService
	journeys      *JourneyService
	org           models.Organization
	admin         models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       newTestDB(t),
		clock:    clockwork.NewFakeClockAt(testEpoch),
		notifier: &recordingNotifier{},
	}
	f.events = NewEventService(f.db, f.clock)
	f.notifications = NewNotificationService(f.db, f.notifier, f.clock)
	f.orgs = NewOrganizationService(f.db, f.events, f.clock)
	f.matrix = NewSkillMatrixService(f.db, f.events, f.clock)
	f.users = NewUserService(f.db, f.events, f.matrix, f.clock)
	f.skills = NewSkillService(f.db, f.events, f.clock)
	f.roles = NewJobRoleService(f.db, f.events, f.clock)
	f.trainings = NewTrainingService(f.db, f.events, f.notifications, f.clock)
	f.journeys = NewJourneyService(f.db, f.events, f.notifications, f.clock)

	var err error
	f.org, f.admin, err = f.orgs.CreateOrganization(OrganizationInput{
		Name:       "Acme",
		Slug:       "acme",
		AdminEmail: "admin@acme.test",
		AdminName:  "Ada Admin",
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) addUser(t *testing.T, email string, role models.Role, jobRoleID, managerID *string) models.User {
	t.Helper()
	u, err := f.users.CreateUser(f.org.ID, f.admin.ID, UserInput{
		Email:        email,
		Name:         email,
		Role:         role,
		Department:   "Engineering",
		JobRoleID:    jobRoleID,
		EmployeeType: models.EmployeeNew,
		ManagerID:    managerID,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) addSkill(t *testing.T, name string) models.Skill {
	t.Helper()
	categories, err := f.skills.ListCategories(f.org.ID)
	require.NoError(t, err)
	var categoryID string
	if len(categories) == 0 {
		c, err := f.skills.CreateCategory(f.org.ID, f.admin.ID, CategoryInput{Name: "Technical"})
		require.NoError(t, err)
		categoryID = c.ID
	} else {
		categoryID = categories[0].ID
	}
	sk, err := f.skills.CreateSkill(f.org.ID, f.admin.ID, SkillInput{CategoryID: categoryID, Name: name})
	require.NoError(t, err)
	return sk
}

func levelPtr(l models.SkillLevel) *models.SkillLevel {
	return &l
}

func strPtr(s string) *string {
	return &s
}
