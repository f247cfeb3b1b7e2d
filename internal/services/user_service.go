package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// UserInput is the payload for creating or updating an employee.
type UserInput struct {
	Email        string              `json:"email" validate:"required,email"`
	Name         string              `json:"name" validate:"required,max=120"`
	Role         models.Role         `json:"role" validate:"required,oneof=ADMIN MANAGER TRAINER EMPLOYEE"`
	Department   string              `json:"department" validate:"max=120"`
	JobRoleID    *string             `json:"jobRoleId"`
	EmployeeType models.EmployeeType `json:"employeeType" validate:"required,oneof=NEW EXISTING"`
	ManagerID    *string             `json:"managerId"`
	IsActive     *bool               `json:"isActive"`
}

// RoleSyncer copies a job role's competencies into an employee's skill matrix.
type RoleSyncer interface {
	SyncFromRole(orgID, userID string) (int, error)
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(orgID, id string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
	ListUsers(orgID string, filter models.UserFilter) ([]models.User, error)
	CreateUser(orgID, actorID string, input UserInput) (models.User, error)
	UpdateUser(orgID, actorID, id string, input UserInput) (models.User, error)
	DeleteUser(orgID, actorID, id string) error
}

// UserService provides business logic for user management.
type UserService struct {
	db           *sql.DB
	eventService EventServiceProvider
	roleSyncer   RoleSyncer
	clock        clockwork.Clock
}

// NewUserService creates a new UserService. roleSyncer may be nil.
func NewUserService(db *sql.DB, eventService EventServiceProvider, roleSyncer RoleSyncer, clock clockwork.Clock) *UserService {
	return &UserService{db: db, eventService: eventService, roleSyncer: roleSyncer, clock: clock}
}

const userColumns = "id, organization_id, email, name, role, department, job_role_id, employee_type, manager_id, is_active, created_at"

func scanUser(row scanner) (models.User, error) {
	var user models.User
	var jobRoleID, managerID sql.NullString
	err := row.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.Name, &user.Role, &user.Department,
		&jobRoleID, &user.EmployeeType, &managerID, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.JobRoleID = nullString(jobRoleID)
	user.ManagerID = nullString(managerID)
	return user, nil
}

// GetUserByID retrieves a single user of the organization.
func (s *UserService) GetUserByID(orgID, id string) (models.User, error) {
	user, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ? AND organization_id = ?", id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	return user, err
}

// GetUserByEmail retrieves a user across organizations. Emails are globally unique.
func (s *UserService) GetUserByEmail(email string) (models.User, error) {
	user, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	return user, err
}

// ListUsers lists the organization's users, optionally filtered.
func (s *UserService) ListUsers(orgID string, filter models.UserFilter) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE organization_id = ?"
	args := []any{orgID}
	if filter.Department != "" {
		query += " AND department = ?"
		args = append(args, filter.Department)
	}
	if filter.Role != "" {
		query += " AND role = ?"
		args = append(args, filter.Role)
	}
	if filter.JobRoleID != "" {
		query += " AND job_role_id = ?"
		args = append(args, filter.JobRoleID)
	}
	if filter.ManagerID != "" {
		query += " AND manager_id = ?"
		args = append(args, filter.ManagerID)
	}
	query += " ORDER BY name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUser adds an employee to the organization.
func (s *UserService) CreateUser(orgID, actorID string, input UserInput) (models.User, error) {
	if err := s.checkInput(orgID, "", input); err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Email:          normalizeEmail(input.Email),
		Name:           strings.TrimSpace(input.Name),
		Role:           input.Role,
		Department:     strings.TrimSpace(input.Department),
		JobRoleID:      emptyToNil(input.JobRoleID),
		EmployeeType:   input.EmployeeType,
		ManagerID:      emptyToNil(input.ManagerID),
		IsActive:       input.IsActive == nil || *input.IsActive,
		CreatedAt:      s.clock.Now().UTC(),
	}

	_, err := s.db.Exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.OrganizationID, user.Email, user.Name, user.Role, user.Department,
		user.JobRoleID, user.EmployeeType, user.ManagerID, user.IsActive, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("email %s already registered: %w", user.Email, ErrConflict)
		}
		return models.User{}, err
	}

	if user.JobRoleID != nil {
		s.syncRole(orgID, user.ID)
	}
	s.eventService.CreateEvent(orgID, "user.create", "info", fmt.Sprintf("User '%s' added as %s.", user.Name, user.Role), &actorID)
	return user, nil
}

// UpdateUser replaces a user's profile. A changed job role re-syncs desired levels.
func (s *UserService) UpdateUser(orgID, actorID, id string, input UserInput) (models.User, error) {
	existing, err := s.GetUserByID(orgID, id)
	if err != nil {
		return models.User{}, err
	}
	if err := s.checkInput(orgID, id, input); err != nil {
		return models.User{}, err
	}

	isActive := existing.IsActive
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	jobRoleID := emptyToNil(input.JobRoleID)

	_, err = s.db.Exec(`UPDATE users SET email = ?, name = ?, role = ?, department = ?, job_role_id = ?, employee_type = ?, manager_id = ?, is_active = ?
		WHERE id = ? AND organization_id = ?`,
		normalizeEmail(input.Email), strings.TrimSpace(input.Name), input.Role, strings.TrimSpace(input.Department),
		jobRoleID, input.EmployeeType, emptyToNil(input.ManagerID), isActive, id, orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("email %s already registered: %w", input.Email, ErrConflict)
		}
		return models.User{}, err
	}

	if jobRoleID != nil && (existing.JobRoleID == nil || *existing.JobRoleID != *jobRoleID) {
		s.syncRole(orgID, id)
	}
	s.eventService.CreateEvent(orgID, "user.update", "info", fmt.Sprintf("User '%s' updated.", input.Name), &actorID)
	return s.GetUserByID(orgID, id)
}

// DeleteUser removes a user and everything that belongs to them.
func (s *UserService) DeleteUser(orgID, actorID, id string) error {
	if id == actorID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalid)
	}
	user, err := s.GetUserByID(orgID, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM users WHERE id = ? AND organization_id = ?", id, orgID); err != nil {
		return err
	}
	s.eventService.CreateEvent(orgID, "user.delete", "warn", fmt.Sprintf("User '%s' was deleted.", user.Name), &actorID)
	return nil
}

// checkInput validates the payload and that referenced rows belong to the organization.
func (s *UserService) checkInput(orgID, selfID string, input UserInput) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if id := emptyToNil(input.JobRoleID); id != nil {
		if err := s.ensureInOrg("job_roles", orgID, *id); err != nil {
			return fmt.Errorf("job role: %w", err)
		}
	}
	if id := emptyToNil(input.ManagerID); id != nil {
		if *id == selfID {
			return fmt.Errorf("%w: a user cannot manage themselves", ErrInvalid)
		}
		if err := s.ensureInOrg("users", orgID, *id); err != nil {
			return fmt.Errorf("manager: %w", err)
		}
	}
	return nil
}

func (s *UserService) ensureInOrg(table, orgID, id string) error {
	return ensureInOrg(s.db, table, orgID, id)
}

func (s *UserService) syncRole(orgID, userID string) {
	if s.roleSyncer == nil {
		return
	}
	if n, err := s.roleSyncer.SyncFromRole(orgID, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to sync skill matrix from job role")
	} else {
		log.Debug().Str("user_id", userID).Int("competencies", n).Msg("Synced skill matrix from job role")
	}
}

// ensureInOrg reports ErrNotFound unless table has a row with id in the organization.
// table is always a literal from this package.
func ensureInOrg(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, orgID, id string) error {
	var n int
	if err := q.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE id = ? AND organization_id = ?", id, orgID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}
