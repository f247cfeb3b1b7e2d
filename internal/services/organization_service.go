package services

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// OrganizationInput is the payload for onboarding a new tenant.
type OrganizationInput struct {
	Name       string `json:"name" validate:"required,max=120"`
	Slug       string `json:"slug" validate:"required,min=2,max=64"`
	AdminEmail string `json:"adminEmail" validate:"required,email"`
	AdminName  string `json:"adminName" validate:"required,max=120"`
}

// OrganizationServiceProvider defines the interface for tenant and system-config services.
type OrganizationServiceProvider interface {
	CreateOrganization(input OrganizationInput) (models.Organization, models.User, error)
	GetOrganization(id string) (models.Organization, error)
	GetConfig(orgID string) (models.SystemConfig, error)
	UpdateConfig(orgID string, actorID string, values map[string]int) (models.SystemConfig, error)
}

// OrganizationService provides business logic for tenants.
type OrganizationService struct {
	db           *sql.DB
	eventService EventServiceProvider
	clock        clockwork.Clock
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(db *sql.DB, eventService EventServiceProvider, clock clockwork.Clock) *OrganizationService {
	return &OrganizationService{db: db, eventService: eventService, clock: clock}
}

// CreateOrganization creates the tenant, its first admin, default config and default journeys in one transaction.
func (s *OrganizationService) CreateOrganization(input OrganizationInput) (models.Organization, models.User, error) {
	if err := validateInput(input); err != nil {
		return models.Organization{}, models.User{}, err
	}
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(input.Slug) {
		return models.Organization{}, models.User{}, fmt.Errorf("%w: slug must be lowercase letters, digits and dashes", ErrInvalid)
	}

	now := s.clock.Now().UTC()
	org := models.Organization{ID: uuid.New().String(), Name: strings.TrimSpace(input.Name), Slug: input.Slug, CreatedAt: now}
	admin := models.User{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		Email:          normalizeEmail(input.AdminEmail),
		Name:           strings.TrimSpace(input.AdminName),
		Role:           models.RoleAdmin,
		EmployeeType:   models.EmployeeExisting,
		IsActive:       true,
		CreatedAt:      now,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.Organization{}, models.User{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO organizations (id, name, slug, created_at) VALUES (?, ?, ?, ?)", org.ID, org.Name, org.Slug, org.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.Organization{}, models.User{}, fmt.Errorf("organization slug %q already taken: %w", org.Slug, ErrConflict)
		}
		return models.Organization{}, models.User{}, err
	}

	_, err = tx.Exec(`INSERT INTO users (id, organization_id, email, name, role, department, employee_type, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, '', ?, 1, ?)`,
		admin.ID, admin.OrganizationID, admin.Email, admin.Name, admin.Role, admin.EmployeeType, admin.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Organization{}, models.User{}, fmt.Errorf("email %s already registered: %w", admin.Email, ErrConflict)
		}
		return models.Organization{}, models.User{}, err
	}

	for key, value := range models.DefaultSystemConfig {
		if _, err := tx.Exec("INSERT INTO system_config (organization_id, key, value) VALUES (?, ?, ?)", org.ID, key, strconv.Itoa(value)); err != nil {
			return models.Organization{}, models.User{}, err
		}
	}

	if err := seedDefaultJourneys(tx, org.ID); err != nil {
		return models.Organization{}, models.User{}, fmt.Errorf("failed to seed journeys: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Organization{}, models.User{}, err
	}

	s.eventService.CreateEvent(org.ID, "organization.create", "info", fmt.Sprintf("Organization '%s' created.", org.Name), &admin.ID)
	return org, admin, nil
}

// GetOrganization retrieves an organization by ID.
func (s *OrganizationService) GetOrganization(id string) (models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRow("SELECT id, name, slug, created_at FROM organizations WHERE id = ?", id).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	return org, err
}

// GetConfig returns the organization's config merged over the defaults.
func (s *OrganizationService) GetConfig(orgID string) (models.SystemConfig, error) {
	return loadSystemConfig(s.db, orgID)
}

// UpdateConfig overwrites the given keys. Unknown keys and out-of-range values are rejected.
func (s *OrganizationService) UpdateConfig(orgID string, actorID string, values map[string]int) (models.SystemConfig, error) {
	for key, value := range values {
		if _, known := models.DefaultSystemConfig[key]; !known {
			return nil, fmt.Errorf("%w: unknown config key %q", ErrInvalid, key)
		}
		if err := checkConfigValue(key, value); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for key, value := range values {
		_, err := tx.Exec(`INSERT INTO system_config (organization_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT (organization_id, key) DO UPDATE SET value = excluded.value`, orgID, key, strconv.Itoa(value))
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.eventService.CreateEvent(orgID, "config.update", "info", fmt.Sprintf("System configuration updated (%d keys).", len(values)), &actorID)
	return loadSystemConfig(s.db, orgID)
}

func checkConfigValue(key string, value int) error {
	switch key {
	case models.ConfigPassingScore, models.ConfigCriticalGapPercent:
		if value < 1 || value > 100 {
			return fmt.Errorf("%w: %s must be between 1 and 100", ErrInvalid, key)
		}
	default:
		if value < 1 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
		}
	}
	return nil
}

// loadSystemConfig is shared by every service that needs an org tunable.
func loadSystemConfig(db *sql.DB, orgID string) (models.SystemConfig, error) {
	cfg := models.SystemConfig{}
	for key, value := range models.DefaultSystemConfig {
		cfg[key] = value
	}

	rows, err := db.Query("SELECT key, value FROM system_config WHERE organization_id = ?", orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if n, err := strconv.Atoi(value); err == nil {
			cfg[key] = n
		}
	}
	return cfg, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
