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

// CategoryInput is the payload for a skill category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// SkillInput is the payload for a skill.
type SkillInput struct {
	CategoryID  string `json:"categoryId" validate:"required"`
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// SkillServiceProvider defines the interface for the skill catalog.
type SkillServiceProvider interface {
	ListCategories(orgID string) ([]models.SkillCategory, error)
	CreateCategory(orgID, actorID string, input CategoryInput) (models.SkillCategory, error)
	UpdateCategory(orgID, actorID, id string, input CategoryInput) (models.SkillCategory, error)
	DeleteCategory(orgID, actorID, id string) error
	ListSkills(orgID, categoryID string) ([]models.Skill, error)
	GetSkillByID(orgID, id string) (models.Skill, error)
	CreateSkill(orgID, actorID string, input SkillInput) (models.Skill, error)
	UpdateSkill(orgID, actorID, id string, input SkillInput) (models.Skill, error)
	DeleteSkill(orgID, actorID, id string) error
}

// SkillService provides business logic for skill categories and skills.
type SkillService struct {
	db           *sql.DB
	eventService EventServiceProvider
	clock        clockwork.Clock
}

// NewSkillService creates a new SkillService.
func NewSkillService(db *sql.DB, eventService EventServiceProvider, clock clockwork.Clock) *SkillService {
	return &SkillService{db: db, eventService: eventService, clock: clock}
}

// ListCategories returns all categories with their skill counts.
func (s *SkillService) ListCategories(orgID string) ([]models.SkillCategory, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.organization_id, c.name, c.description, c.created_at, COUNT(sk.id)
		FROM skill_categories c LEFT JOIN skills sk ON sk.category_id = c.id
		WHERE c.organization_id = ?
		GROUP BY c.id ORDER BY c.name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.SkillCategory{}
	for rows.Next() {
		var c models.SkillCategory
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt, &c.SkillCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *SkillService) getCategory(orgID, id string) (models.SkillCategory, error) {
	var c models.SkillCategory
	err := s.db.QueryRow(`
		SELECT c.id, c.organization_id, c.name, c.description, c.created_at,
		       (SELECT COUNT(*) FROM skills WHERE category_id = c.id)
		FROM skill_categories c WHERE c.id = ? AND c.organization_id = ?`, id, orgID).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt, &c.SkillCount)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SkillCategory{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, err
}

// CreateCategory adds a category. Names are unique per organization.
func (s *SkillService) CreateCategory(orgID, actorID string, input CategoryInput) (models.SkillCategory, error) {
	if err := validateInput(input); err != nil {
		return models.SkillCategory{}, err
	}
	c := models.SkillCategory{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		CreatedAt:      s.clock.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO skill_categories (id, organization_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.OrganizationID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.SkillCategory{}, fmt.Errorf("category %q already exists: %w", c.Name, ErrConflict)
		}
		return models.SkillCategory{}, err
	}
	s.eventService.CreateEvent(orgID, "category.create", "info", fmt.Sprintf("Skill category '%s' created.", c.Name), &actorID)
	return c, nil
}

// UpdateCategory renames or re-describes a category.
func (s *SkillService) UpdateCategory(orgID, actorID, id string, input CategoryInput) (models.SkillCategory, error) {
	if err := validateInput(input); err != nil {
		return models.SkillCategory{}, err
	}
	res, err := s.db.Exec("UPDATE skill_categories SET name = ?, description = ? WHERE id = ? AND organization_id = ?",
		strings.TrimSpace(input.Name), input.Description, id, orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.SkillCategory{}, fmt.Errorf("category %q already exists: %w", input.Name, ErrConflict)
		}
		return models.SkillCategory{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.SkillCategory{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	s.eventService.CreateEvent(orgID, "category.update", "info", fmt.Sprintf("Skill category '%s' updated.", input.Name), &actorID)
	return s.getCategory(orgID, id)
}

// DeleteCategory removes an empty category.
func (s *SkillService) DeleteCategory(orgID, actorID, id string) error {
	c, err := s.getCategory(orgID, id)
	if err != nil {
		return err
	}
	if c.SkillCount > 0 {
		return fmt.Errorf("category '%s' still has %d skills: %w", c.Name, c.SkillCount, ErrConflict)
	}
	if _, err := s.db.Exec("DELETE FROM skill_categories WHERE id = ? AND organization_id = ?", id, orgID); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("category '%s' is still referenced: %w", c.Name, ErrConflict)
		}
		return err
	}
	s.eventService.CreateEvent(orgID, "category.delete", "warn", fmt.Sprintf("Skill category '%s' was deleted.", c.Name), &actorID)
	return nil
}

const skillSelect = `SELECT sk.id, sk.organization_id, sk.category_id, c.name, sk.name, sk.description, sk.created_at
	FROM skills sk JOIN skill_categories c ON c.id = sk.category_id`

func scanSkill(row scanner) (models.Skill, error) {
	var sk models.Skill
	err := row.Scan(&sk.ID, &sk.OrganizationID, &sk.CategoryID, &sk.CategoryName, &sk.Name, &sk.Description, &sk.CreatedAt)
	return sk, err
}

// ListSkills lists skills, optionally within one category.
func (s *SkillService) ListSkills(orgID, categoryID string) ([]models.Skill, error) {
	query := skillSelect + " WHERE sk.organization_id = ?"
	args := []any{orgID}
	if categoryID != "" {
		query += " AND sk.category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY c.name, sk.name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []models.Skill{}
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

// GetSkillByID retrieves a single skill.
func (s *SkillService) GetSkillByID(orgID, id string) (models.Skill, error) {
	sk, err := scanSkill(s.db.QueryRow(skillSelect+" WHERE sk.id = ? AND sk.organization_id = ?", id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Skill{}, fmt.Errorf("skill %s: %w", id, ErrNotFound)
	}
	return sk, err
}

// CreateSkill adds a skill to a category of the same organization.
func (s *SkillService) CreateSkill(orgID, actorID string, input SkillInput) (models.Skill, error) {
	if err := validateInput(input); err != nil {
		return models.Skill{}, err
	}
	if err := ensureInOrg(s.db, "skill_categories", orgID, input.CategoryID); err != nil {
		return models.Skill{}, err
	}

	id := uuid.New().String()
	_, err := s.db.Exec("INSERT INTO skills (id, organization_id, category_id, name, description, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, orgID, input.CategoryID, strings.TrimSpace(input.Name), input.Description, s.clock.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.Skill{}, fmt.Errorf("skill %q already exists: %w", input.Name, ErrConflict)
		}
		return models.Skill{}, err
	}
	s.eventService.CreateEvent(orgID, "skill.create", "info", fmt.Sprintf("Skill '%s' created.", input.Name), &actorID)
	return s.GetSkillByID(orgID, id)
}

// UpdateSkill edits a skill, possibly moving it to another category.
func (s *SkillService) UpdateSkill(orgID, actorID, id string, input SkillInput) (models.Skill, error) {
	if err := validateInput(input); err != nil {
		return models.Skill{}, err
	}
	if err := ensureInOrg(s.db, "skill_categories", orgID, input.CategoryID); err != nil {
		return models.Skill{}, err
	}
	res, err := s.db.Exec("UPDATE skills SET category_id = ?, name = ?, description = ? WHERE id = ? AND organization_id = ?",
		input.CategoryID, strings.TrimSpace(input.Name), input.Description, id, orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Skill{}, fmt.Errorf("skill %q already exists: %w", input.Name, ErrConflict)
		}
		return models.Skill{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Skill{}, fmt.Errorf("skill %s: %w", id, ErrNotFound)
	}
	s.eventService.CreateEvent(orgID, "skill.update", "info", fmt.Sprintf("Skill '%s' updated.", input.Name), &actorID)
	return s.GetSkillByID(orgID, id)
}

// DeleteSkill removes a skill along with its competencies and matrix rows.
func (s *SkillService) DeleteSkill(orgID, actorID, id string) error {
	sk, err := s.GetSkillByID(orgID, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM skills WHERE id = ? AND organization_id = ?", id, orgID); err != nil {
		return err
	}
	s.eventService.CreateEvent(orgID, "skill.delete", "warn", fmt.Sprintf("Skill '%s' was deleted.", sk.Name), &actorID)
	return nil
}
