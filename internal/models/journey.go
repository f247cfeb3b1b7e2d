package models

import "time"

// Journey is the phase template for one employee type.
type Journey struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	EmployeeType   EmployeeType   `json:"employeeType"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Phases         []JourneyPhase `json:"phases"`
}

// JourneyPhase is one step of a journey. Positions start at 1.
type JourneyPhase struct {
	ID           string  `json:"id"`
	JourneyID    string  `json:"journeyId"`
	Position     int     `json:"position"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	DurationDays int     `json:"durationDays"`
	TrainingID   *string `json:"trainingId"`
	AssessmentID *string `json:"assessmentId"`
}

// JourneyStatus is the state of an employee's journey.
type JourneyStatus string

const (
	JourneyActive    JourneyStatus = "ACTIVE"
	JourneyCompleted JourneyStatus = "COMPLETED"
)

// PhaseStatus is the state of one phase for one employee.
type PhaseStatus string

const (
	PhaseLocked     PhaseStatus = "LOCKED"
	PhaseInProgress PhaseStatus = "IN_PROGRESS"
	PhaseCompleted  PhaseStatus = "COMPLETED"
	PhaseOverdue    PhaseStatus = "OVERDUE"
)

// EmployeeJourney is a journey instance for one employee.
type EmployeeJourney struct {
	ID              string          `json:"id"`
	JourneyID       string          `json:"journeyId"`
	JourneyName     string          `json:"journeyName"`
	UserID          string          `json:"userId"`
	UserName        string          `json:"userName,omitempty"`
	Status          JourneyStatus   `json:"status"`
	StartedAt       time.Time       `json:"startedAt"`
	CompletedAt     *time.Time      `json:"completedAt"`
	Phases          []PhaseProgress `json:"phases,omitempty"`
	PercentComplete float64         `json:"percentComplete"`
}

// PhaseProgress is one employee's state in one phase.
type PhaseProgress struct {
	ID          string      `json:"id"`
	PhaseID     string      `json:"phaseId"`
	Position    int         `json:"position"`
	Title       string      `json:"title"`
	Status      PhaseStatus `json:"status"`
	StartedAt   *time.Time  `json:"startedAt"`
	DueDate     *time.Time  `json:"dueDate"`
	CompletedAt *time.Time  `json:"completedAt"`
}

// OverduePhase identifies a phase the overdue sweep flipped.
type OverduePhase struct {
	ProgressID     string    `json:"progressId"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	ManagerID      *string   `json:"managerId"`
	PhaseTitle     string    `json:"phaseTitle"`
	DueDate        time.Time `json:"dueDate"`
}
