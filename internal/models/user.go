package models

import "time"

// Role controls which route prefixes a user may reach.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleTrainer  Role = "TRAINER"
	RoleEmployee Role = "EMPLOYEE"
)

// EmployeeType selects the onboarding journey.
type EmployeeType string

const (
	EmployeeNew      EmployeeType = "NEW"
	EmployeeExisting EmployeeType = "EXISTING"
)

// User represents an employee account in an organization.
type User struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organizationId"`
	Email          string       `json:"email"`
	Name           string       `json:"name"`
	Role           Role         `json:"role"`
	Department     string       `json:"department"`
	JobRoleID      *string      `json:"jobRoleId"`
	EmployeeType   EmployeeType `json:"employeeType"`
	ManagerID      *string      `json:"managerId"`
	IsActive       bool         `json:"isActive"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// UserFilter narrows ListUsers. Empty fields match everything.
type UserFilter struct {
	Department string
	Role       Role
	JobRoleID  string
	ManagerID  string
}

// OTPRecord is a one-time login code. Only the bcrypt hash of the code is stored.
type OTPRecord struct {
	ID         string
	Email      string
	CodeHash   string
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
