package models

import "time"

// TrainingMode is ONLINE (has a URL) or OFFLINE (has a location and schedule).
type TrainingMode string

const (
	TrainingOnline  TrainingMode = "ONLINE"
	TrainingOffline TrainingMode = "OFFLINE"
)

// Training is a course that closes a gap in one skill.
type Training struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organizationId"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Mode           TrainingMode `json:"mode"`
	SkillID        *string      `json:"skillId"`
	TargetLevel    SkillLevel   `json:"targetLevel"`
	URL            string       `json:"url"`
	Location       string       `json:"location"`
	StartsAt       *time.Time   `json:"startsAt"`
	EndsAt         *time.Time   `json:"endsAt"`
	DurationHours  float64      `json:"durationHours"`
	CreatedBy      *string      `json:"createdBy"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// AssignmentStatus tracks training progress for one employee.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentOverdue    AssignmentStatus = "OVERDUE"
)

// Assignment links a training to an employee.
type Assignment struct {
	ID            string           `json:"id"`
	TrainingID    string           `json:"trainingId"`
	TrainingTitle string           `json:"trainingTitle"`
	TrainingMode  TrainingMode     `json:"trainingMode"`
	UserID        string           `json:"userId"`
	UserName      string           `json:"userName"`
	AssignedBy    *string          `json:"assignedBy"`
	Status        AssignmentStatus `json:"status"`
	DueDate       *time.Time       `json:"dueDate"`
	AssignedAt    time.Time        `json:"assignedAt"`
	StartedAt     *time.Time       `json:"startedAt"`
	CompletedAt   *time.Time       `json:"completedAt"`
}

// AssignmentFilter narrows ListAssignments. Empty fields match everything.
type AssignmentFilter struct {
	TrainingID string
	UserID     string
	Status     AssignmentStatus
}

// ProofStatus is the review state of an uploaded proof.
type ProofStatus string

const (
	ProofPending  ProofStatus = "PENDING"
	ProofApproved ProofStatus = "APPROVED"
	ProofRejected ProofStatus = "REJECTED"
)

// Proof is an uploaded completion certificate for an assignment.
type Proof struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignmentId"`
	UserID       string      `json:"userId"`
	FileKey      string      `json:"-"`
	FileName     string      `json:"fileName"`
	ContentType  string      `json:"contentType"`
	Size         int64       `json:"size"`
	Status       ProofStatus `json:"status"`
	ReviewerID   *string     `json:"reviewerId"`
	ReviewNote   string      `json:"reviewNote"`
	UploadedAt   time.Time   `json:"uploadedAt"`
	ReviewedAt   *time.Time  `json:"reviewedAt"`
}
