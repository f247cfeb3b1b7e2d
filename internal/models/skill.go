package models

import "time"

// SkillCategory groups skills.
type SkillCategory struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	SkillCount     int       `json:"skillCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Skill is a catalog entry employees can be assessed against.
type Skill struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	CategoryID     string    `json:"categoryId"`
	CategoryName   string    `json:"categoryName,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
}

// JobRole is a position with a competency framework.
type JobRole struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organizationId"`
	Title          string       `json:"title"`
	Department     string       `json:"department"`
	Description    string       `json:"description"`
	Competencies   []Competency `json:"competencies,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Competency is a required skill-and-level pairing attached to a job role.
type Competency struct {
	ID            string     `json:"id"`
	JobRoleID     string     `json:"jobRoleId"`
	SkillID       string     `json:"skillId"`
	SkillName     string     `json:"skillName,omitempty"`
	RequiredLevel SkillLevel `json:"requiredLevel"`
}
