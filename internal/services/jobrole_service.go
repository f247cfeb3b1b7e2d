package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
)

// JobRoleInput is the payload for a job role.
type JobRoleInput struct {
	Title       string `json:"title" validate:"required,max=120"`
	Department  string `json:"department" validate:"max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// CompetencyInput is one required skill of a job role.
type CompetencyInput struct {
	SkillID       string            `json:"skillId" validate:"required"`
	RequiredLevel models.SkillLevel `json:"requiredLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
}

// JobRoleServiceProvider defines the interface for job roles and their competency frameworks.
type JobRoleServiceProvider interface {
	ListJobRoles(orgID string) ([]models.JobRole, error)
	GetJobRole(orgID, id string) (models.JobRole, error)
	CreateJobRole(orgID, actorID string, input JobRoleInput) (models.JobRole, error)
	UpdateJobRole(orgID, actorID, id string, input JobRoleInput) (models.JobRole, error)
	DeleteJobRole(orgID, actorID, id string) error
	ReplaceCompetencies(orgID, actorID, roleID string, competencies []CompetencyInput) (models.JobRole, error)
}

// JobRoleService provides business logic for job roles.
type JobRoleService struct {
	db           *sql.DB
	eventService EventServiceProvider
	clock        clockwork.Clock
}

// NewJobRoleService creates a new JobRoleService.
func NewJobRoleService(db *sql.DB, eventService EventServiceProvider, clock clockwork.Clock) *JobRoleService {
	return &JobRoleService{db: db, eventService: eventService, clock: clock}
}

// ListJobRoles returns the organization's roles without competencies.
func (s *JobRoleService) ListJobRoles(orgID string) ([]models.JobRole, error) {
	rows, err := s.db.Query("SELECT id, organization_id, title, department, description, created_at FROM job_roles WHERE organization_id = ? ORDER BY title", orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []models.JobRole{}
	for rows.Next() {
		var r models.JobRole
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.Title, &r.Department, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// GetJobRole returns a role with its competencies.
func (s *JobRoleService) GetJobRole(orgID, id string) (models.JobRole, error) {
	var r models.JobRole
	err := s.db.QueryRow("SELECT id, organization_id, title, department, description, created_at FROM job_roles WHERE id = ? AND organization_id = ?", id, orgID).
		Scan(&r.ID, &r.OrganizationID, &r.Title, &r.Department, &r.Description, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.JobRole{}, fmt.Errorf("job role %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.JobRole{}, err
	}

	r.Competencies, err = loadCompetencies(s.db, id)
	if err != nil {
		return models.JobRole{}, err
	}
	return r, nil
}

func loadCompetencies(db *sql.DB, roleID string) ([]models.Competency, error) {
	rows, err := db.Query(`SELECT rc.id, rc.job_role_id, rc.skill_id, sk.name, rc.required_level
		FROM role_competencies rc JOIN skills sk ON sk.id = rc.skill_id
		WHERE rc.job_role_id = ? ORDER BY sk.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	competencies := []models.Competency{}
	for rows.Next() {
		var c models.Competency
		if err := rows.Scan(&c.ID, &c.JobRoleID, &c.SkillID, &c.SkillName, &c.RequiredLevel); err != nil {
			return nil, err
		}
		competencies = append(competencies, c)
	}
	return competencies, rows.Err()
}

// CreateJobRole adds a role. Titles are unique per organization.
func (s *JobRoleService) CreateJobRole(orgID, actorID string, input JobRoleInput) (models.JobRole, error) {
	if err := validateInput(input); err != nil {
		return models.JobRole{}, err
	}
	r := models.JobRole{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Title:          strings.TrimSpace(input.Title),
		Department:     strings.TrimSpace(input.Department),
		Description:    input.Description,
		Competencies:   []models.Competency{},
		CreatedAt:      s.clock.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO job_roles (id, organization_id, title, department, description, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, r.OrganizationID, r.Title, r.Department, r.Description, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.JobRole{}, fmt.Errorf("job role %q already exists: %w", r.Title, ErrConflict)
		}
		return models.JobRole{}, err
	}
	s.eventService.CreateEvent(orgID, "jobrole.create", "info", fmt.Sprintf("Job role '%s' created.", r.Title), &actorID)
	return r, nil
}

// UpdateJobRole edits a role's descriptive fields.
func (s *JobRoleService) UpdateJobRole(orgID, actorID, id string, input JobRoleInput) (models.JobRole, error) {
	if err := validateInput(input); err != nil {
		return models.JobRole{}, err
	}
	res, err := s.db.Exec("UPDATE job_roles SET title = ?, department = ?, description = ? WHERE id = ? AND organization_id = ?",
		strings.TrimSpace(input.Title), strings.TrimSpace(input.Department), input.Description, id, orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.JobRole{}, fmt.Errorf("job role %q already exists: %w", input.Title, ErrConflict)
		}
		return models.JobRole{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.JobRole{}, fmt.Errorf("job role %s: %w", id, ErrNotFound)
	}
	s.eventService.CreateEvent(orgID, "jobrole.update", "info", fmt.Sprintf("Job role '%s' updated.", input.Title), &actorID)
	return s.GetJobRole(orgID, id)
}

// DeleteJobRole removes a role. Users holding it keep their matrix but lose the role link.
func (s *JobRoleService) DeleteJobRole(orgID, actorID, id string) error {
	r, err := s.GetJobRole(orgID, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM job_roles WHERE id = ? AND organization_id = ?", id, orgID); err != nil {
		return err
	}
	s.eventService.CreateEvent(orgID, "jobrole.delete", "warn", fmt.Sprintf("Job role '%s' was deleted.", r.Title), &actorID)
	return nil
}

// ReplaceCompetencies swaps the role's competency framework atomically.
// Duplicate skills and skills outside the organization are rejected before any write.
func (s *JobRoleService) ReplaceCompetencies(orgID, actorID, roleID string, competencies []CompetencyInput) (models.JobRole, error) {
	if err := ensureInOrg(s.db, "job_roles", orgID, roleID); err != nil {
		return models.JobRole{}, err
	}

	seen := make(map[string]bool, len(competencies))
	for _, c := range competencies {
		if err := validateInput(c); err != nil {
			return models.JobRole{}, err
		}
		if seen[c.SkillID] {
			return models.JobRole{}, fmt.Errorf("%w: skill %s listed more than once", ErrInvalid, c.SkillID)
		}
		seen[c.SkillID] = true
		if err := ensureInOrg(s.db, "skills", orgID, c.SkillID); err != nil {
			return models.JobRole{}, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.JobRole{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM role_competencies WHERE job_role_id = ?", roleID); err != nil {
		return models.JobRole{}, err
	}
	for _, c := range competencies {
		if _, err := tx.Exec("INSERT INTO role_competencies (id, job_role_id, skill_id, required_level) VALUES (?, ?, ?, ?)",
			uuid.New().String(), roleID, c.SkillID, c.RequiredLevel); err != nil {
			return models.JobRole{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.JobRole{}, err
	}

	s.eventService.CreateEvent(orgID, "jobrole.competencies", "info", fmt.Sprintf("Competency framework replaced (%d skills).", len(competencies)), &actorID)
	return s.GetJobRole(orgID, roleID)
}
