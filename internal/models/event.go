package models

import "time"

// Event represents a loggable action in an organization.
type Event struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Type           string    `json:"type"`  // e.g., "skill.create", "journey.phase.overdue"
	Level          string    `json:"level"` // e.g., "info", "warn", "error"
	Message        string    `json:"message"`
	ActorID        *string   `json:"actorId,omitempty"` // Nil for system jobs
	CreatedAt      time.Time `json:"createdAt"`
}

// Notification is a per-user message, also pushed over the websocket.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	Employees          int     `json:"employees"`
	Skills             int     `json:"skills"`
	Trainings          int     `json:"trainings"`
	OpenAssignments    int     `json:"openAssignments"`
	OverdueAssignments int     `json:"overdueAssignments"`
	PendingProofs      int     `json:"pendingProofs"`
	PendingGrading     int     `json:"pendingGrading"`
	ActiveJourneys     int     `json:"activeJourneys"`
	AverageGap         float64 `json:"averageGap"`
}

// SystemHealth is reported by the admin health endpoint.
type SystemHealth struct {
	Database      string  `json:"database"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	DiskPercent   float64 `json:"diskPercent"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
}
