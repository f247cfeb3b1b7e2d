package services

import (
	"database/sql"

	"github.com/isdelr/skill-loop-be/internal/models"
)

// DashboardServiceProvider defines the interface for the admin overview.
type DashboardServiceProvider interface {
	GetStats(orgID string) (models.DashboardStats, error)
}

// DashboardService aggregates counts across modules.
type DashboardService struct {
	db *sql.DB
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(db *sql.DB) *DashboardService {
	return &DashboardService{db: db}
}

// GetStats returns the organization's headline numbers.
func (s *DashboardService) GetStats(orgID string) (models.DashboardStats, error) {
	var stats models.DashboardStats
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.Employees, "SELECT COUNT(*) FROM users WHERE organization_id = ? AND is_active = 1", nil},
		{&stats.Skills, "SELECT COUNT(*) FROM skills WHERE organization_id = ?", nil},
		{&stats.Trainings, "SELECT COUNT(*) FROM trainings WHERE organization_id = ?", nil},
		{&stats.OpenAssignments, "SELECT COUNT(*) FROM training_assignments WHERE organization_id = ? AND status IN (?, ?)",
			[]any{models.AssignmentAssigned, models.AssignmentInProgress}},
		{&stats.OverdueAssignments, "SELECT COUNT(*) FROM training_assignments WHERE organization_id = ? AND status = ?",
			[]any{models.AssignmentOverdue}},
		{&stats.PendingProofs, "SELECT COUNT(*) FROM proofs WHERE organization_id = ? AND status = ?",
			[]any{models.ProofPending}},
		{&stats.PendingGrading, `SELECT COUNT(*) FROM assessment_attempts at JOIN assessments a ON a.id = at.assessment_id
			WHERE a.organization_id = ? AND at.status = ?`, []any{models.AttemptSubmitted}},
		{&stats.ActiveJourneys, "SELECT COUNT(*) FROM employee_journeys WHERE organization_id = ? AND status = ?",
			[]any{models.JourneyActive}},
	}

	for _, c := range counts {
		args := append([]any{orgID}, c.args...)
		if err := s.db.QueryRow(c.query, args...).Scan(c.dest); err != nil {
			return models.DashboardStats{}, err
		}
	}

	avg, err := orgAverageGap(s.db, orgID)
	if err != nil {
		return models.DashboardStats{}, err
	}
	stats.AverageGap = avg
	return stats, nil
}
