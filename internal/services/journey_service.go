package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
)

type phaseSeed struct {
	title       string
	description string
	days        int
}

var defaultJourneys = []struct {
	employeeType models.EmployeeType
	name         string
	description  string
	phases       []phaseSeed
}{
	{
		employeeType: models.EmployeeNew,
		name:         "New Employee Onboarding",
		description:  "Structured ramp-up for new hires.",
		phases: []phaseSeed{
			{"Orientation", "Company introduction, tools and policies.", 5},
			{"Role Immersion", "Shadowing and first tasks in the role.", 10},
			{"Baseline Assessment", "Measure starting proficiency against the role.", 7},
			{"Core Training", "Complete the trainings that close the baseline gaps.", 30},
			{"Review", "Manager review of progress and next goals.", 7},
		},
	},
	{
		employeeType: models.EmployeeExisting,
		name:         "Existing Employee Development",
		description:  "Gap-driven development for current staff.",
		phases: []phaseSeed{
			{"Skill Assessment", "Assess current proficiency across the role's skills.", 7},
			{"Gap Review", "Review gaps with the manager and agree on a plan.", 5},
			{"Targeted Training", "Complete the trainings assigned from the gap review.", 30},
			{"Reassessment", "Re-assess to confirm the gaps are closed.", 14},
		},
	},
}

// seedDefaultJourneys writes the two journey templates for a new organization.
func seedDefaultJourneys(tx *sql.Tx, orgID string) error {
	for _, j := range defaultJourneys {
		journeyID := uuid.New().String()
		if _, err := tx.Exec("INSERT INTO journeys (id, organization_id, employee_type, name, description) VALUES (?, ?, ?, ?, ?)",
			journeyID, orgID, j.employeeType, j.name, j.description); err != nil {
			return err
		}
		for i, p := range j.phases {
			if _, err := tx.Exec("INSERT INTO journey_phases (id, journey_id, position, title, description, duration_days) VALUES (?, ?, ?, ?, ?, ?)",
				uuid.New().String(), journeyID, i+1, p.title, p.description, p.days); err != nil {
				return err
			}
		}
	}
	return nil
}

// PhaseInput edits a journey phase template.
type PhaseInput struct {
	Title        string  `json:"title" validate:"required,max=120"`
	Description  string  `json:"description" validate:"max=2000"`
	DurationDays int     `json:"durationDays" validate:"min=1,max=365"`
	TrainingID   *string `json:"trainingId"`
	AssessmentID *string `json:"assessmentId"`
}

// JourneyServiceProvider defines the interface for the journey engine.
type JourneyServiceProvider interface {
	ListJourneys(orgID string) ([]models.Journey, error)
	GetJourney(orgID, id string) (models.Journey, error)
	UpdatePhase(orgID, actorID, phaseID string, input PhaseInput) (models.JourneyPhase, error)
	StartJourney(orgID, actorID, userID string) (models.EmployeeJourney, error)
	CompletePhase(orgID, actorID, userID, phaseID string) (models.EmployeeJourney, error)
	GetProgress(orgID, userID string) (models.EmployeeJourney, error)
	ListEmployeeJourneys(orgID, managerID string) ([]models.EmployeeJourney, error)
	MarkOverdue(now time.Time) ([]models.OverduePhase, error)
}

// JourneyService walks employees through their phased journeys.
type JourneyService struct {
	db            *sql.DB
	eventService  EventServiceProvider
	notifications NotificationServiceProvider
	clock         clockwork.Clock
}

// NewJourneyService creates a new JourneyService.
func NewJourneyService(db *sql.DB, eventService EventServiceProvider, notifications NotificationServiceProvider, clock clockwork.Clock) *JourneyService {
	return &JourneyService{db: db, eventService: eventService, notifications: notifications, clock: clock}
}

// ListJourneys returns the organization's templates with phases.
func (s *JourneyService) ListJourneys(orgID string) ([]models.Journey, error) {
	rows, err := s.db.Query("SELECT id, organization_id, employee_type, name, description FROM journeys WHERE organization_id = ? ORDER BY employee_type", orgID)
	if err != nil {
		return nil, err
	}
	journeys := []models.Journey{}
	for rows.Next() {
		var j models.Journey
		if err := rows.Scan(&j.ID, &j.OrganizationID, &j.EmployeeType, &j.Name, &j.Description); err != nil {
			rows.Close()
			return nil, err
		}
		journeys = append(journeys, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range journeys {
		if journeys[i].Phases, err = s.loadPhases(journeys[i].ID); err != nil {
			return nil, err
		}
	}
	return journeys, nil
}

// GetJourney returns one template with phases.
func (s *JourneyService) GetJourney(orgID, id string) (models.Journey, error) {
	var j models.Journey
	err := s.db.QueryRow("SELECT id, organization_id, employee_type, name, description FROM journeys WHERE id = ? AND organization_id = ?", id, orgID).
		Scan(&j.ID, &j.OrganizationID, &j.EmployeeType, &j.Name, &j.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Journey{}, fmt.Errorf("journey %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Journey{}, err
	}
	j.Phases, err = s.loadPhases(j.ID)
	return j, err
}

const phaseColumns = "id, journey_id, position, title, description, duration_days, training_id, assessment_id"

func scanPhase(row scanner) (models.JourneyPhase, error) {
	var p models.JourneyPhase
	var trainingID, assessmentID sql.NullString
	if err := row.Scan(&p.ID, &p.JourneyID, &p.Position, &p.Title, &p.Description, &p.DurationDays, &trainingID, &assessmentID); err != nil {
		return models.JourneyPhase{}, err
	}
	p.TrainingID = nullString(trainingID)
	p.AssessmentID = nullString(assessmentID)
	return p, nil
}

func (s *JourneyService) loadPhases(journeyID string) ([]models.JourneyPhase, error) {
	rows, err := s.db.Query("SELECT "+phaseColumns+" FROM journey_phases WHERE journey_id = ? ORDER BY position", journeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phases := []models.JourneyPhase{}
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// UpdatePhase edits a template phase and its optional training or assessment link.
func (s *JourneyService) UpdatePhase(orgID, actorID, phaseID string, input PhaseInput) (models.JourneyPhase, error) {
	if err := validateInput(input); err != nil {
		return models.JourneyPhase{}, err
	}
	trainingID := emptyToNil(input.TrainingID)
	assessmentID := emptyToNil(input.AssessmentID)
	if trainingID != nil {
		if err := ensureInOrg(s.db, "trainings", orgID, *trainingID); err != nil {
			return models.JourneyPhase{}, err
		}
	}
	if assessmentID != nil {
		if err := ensureInOrg(s.db, "assessments", orgID, *assessmentID); err != nil {
			return models.JourneyPhase{}, err
		}
	}

	res, err := s.db.Exec(`UPDATE journey_phases SET title = ?, description = ?, duration_days = ?, training_id = ?, assessment_id = ?
		WHERE id = ? AND journey_id IN (SELECT id FROM journeys WHERE organization_id = ?)`,
		input.Title, input.Description, input.DurationDays, trainingID, assessmentID, phaseID, orgID)
	if err != nil {
		return models.JourneyPhase{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.JourneyPhase{}, fmt.Errorf("phase %s: %w", phaseID, ErrNotFound)
	}

	s.eventService.CreateEvent(orgID, "journey.phase.update", "info", fmt.Sprintf("Journey phase '%s' updated.", input.Title), &actorID)
	return scanPhase(s.db.QueryRow("SELECT "+phaseColumns+" FROM journey_phases WHERE id = ?", phaseID))
}

// StartJourney enrolls a user in the template for their employee type.
func (s *JourneyService) StartJourney(orgID, actorID, userID string) (models.EmployeeJourney, error) {
	var employeeType models.EmployeeType
	var userName string
	err := s.db.QueryRow("SELECT name, employee_type FROM users WHERE id = ? AND organization_id = ?", userID, orgID).Scan(&userName, &employeeType)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EmployeeJourney{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return models.EmployeeJourney{}, err
	}

	var journeyID, journeyName string
	err = s.db.QueryRow("SELECT id, name FROM journeys WHERE organization_id = ? AND employee_type = ?", orgID, employeeType).Scan(&journeyID, &journeyName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EmployeeJourney{}, fmt.Errorf("journey for %s employees: %w", employeeType, ErrNotFound)
	}
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	phases, err := s.loadPhases(journeyID)
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	if len(phases) == 0 {
		return models.EmployeeJourney{}, fmt.Errorf("%w: journey '%s' has no phases", ErrInvalid, journeyName)
	}

	now := s.clock.Now().UTC()
	ejID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO employee_journeys (id, organization_id, journey_id, user_id, status, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		ejID, orgID, journeyID, userID, models.JourneyActive, now)
	if err != nil {
		if isUniqueViolation(err) {
			return models.EmployeeJourney{}, fmt.Errorf("user %s already has a journey: %w", userID, ErrConflict)
		}
		return models.EmployeeJourney{}, err
	}

	for i, p := range phases {
		if i == 0 {
			due := now.AddDate(0, 0, p.DurationDays)
			_, err = tx.Exec("INSERT INTO phase_progress (id, employee_journey_id, phase_id, status, started_at, due_date) VALUES (?, ?, ?, ?, ?, ?)",
				uuid.New().String(), ejID, p.ID, models.PhaseInProgress, now, due)
		} else {
			_, err = tx.Exec("INSERT INTO phase_progress (id, employee_journey_id, phase_id, status) VALUES (?, ?, ?, ?)",
				uuid.New().String(), ejID, p.ID, models.PhaseLocked)
		}
		if err != nil {
			return models.EmployeeJourney{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.EmployeeJourney{}, err
	}

	s.eventService.CreateEvent(orgID, "journey.start", "info", fmt.Sprintf("%s started journey '%s'.", userName, journeyName), &actorID)
	s.notify(orgID, userID, "journey.start", fmt.Sprintf("Your journey '%s' has started. First phase: %s.", journeyName, phases[0].Title))
	return s.GetProgress(orgID, userID)
}

// CompletePhase completes the user's current phase and unlocks the next one.
func (s *JourneyService) CompletePhase(orgID, actorID, userID, phaseID string) (models.EmployeeJourney, error) {
	ej, err := s.GetProgress(orgID, userID)
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	if ej.Status != models.JourneyActive {
		return models.EmployeeJourney{}, fmt.Errorf("journey is already completed: %w", ErrConflict)
	}

	idx := -1
	for i, p := range ej.Phases {
		if p.PhaseID == phaseID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.EmployeeJourney{}, fmt.Errorf("phase %s: %w", phaseID, ErrNotFound)
	}
	current := ej.Phases[idx]
	if current.Status != models.PhaseInProgress && current.Status != models.PhaseOverdue {
		return models.EmployeeJourney{}, fmt.Errorf("phase '%s' is %s, only the current phase can be completed: %w", current.Title, current.Status, ErrConflict)
	}

	now := s.clock.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE phase_progress SET status = ?, completed_at = ? WHERE id = ?", models.PhaseCompleted, now, current.ID); err != nil {
		return models.EmployeeJourney{}, err
	}

	var message string
	if idx+1 < len(ej.Phases) {
		next := ej.Phases[idx+1]
		var days int
		if err := tx.QueryRow("SELECT duration_days FROM journey_phases WHERE id = ?", next.PhaseID).Scan(&days); err != nil {
			return models.EmployeeJourney{}, err
		}
		if _, err := tx.Exec("UPDATE phase_progress SET status = ?, started_at = ?, due_date = ? WHERE id = ?",
			models.PhaseInProgress, now, now.AddDate(0, 0, days), next.ID); err != nil {
			return models.EmployeeJourney{}, err
		}
		message = fmt.Sprintf("Phase '%s' completed. Next up: %s.", current.Title, next.Title)
	} else {
		if _, err := tx.Exec("UPDATE employee_journeys SET status = ?, completed_at = ? WHERE id = ?", models.JourneyCompleted, now, ej.ID); err != nil {
			return models.EmployeeJourney{}, err
		}
		message = fmt.Sprintf("Journey '%s' completed.", ej.JourneyName)
	}
	if err := tx.Commit(); err != nil {
		return models.EmployeeJourney{}, err
	}

	s.eventService.CreateEvent(orgID, "journey.phase.complete", "info", fmt.Sprintf("Phase '%s' completed for user %s.", current.Title, userID), &actorID)
	s.notify(orgID, userID, "journey.phase.complete", message)
	return s.GetProgress(orgID, userID)
}

// GetProgress returns the user's journey with per-phase status.
func (s *JourneyService) GetProgress(orgID, userID string) (models.EmployeeJourney, error) {
	var ej models.EmployeeJourney
	var completedAt sql.NullTime
	err := s.db.QueryRow(`SELECT ej.id, ej.journey_id, j.name, ej.user_id, u.name, ej.status, ej.started_at, ej.completed_at
		FROM employee_journeys ej
		JOIN journeys j ON j.id = ej.journey_id
		JOIN users u ON u.id = ej.user_id
		WHERE ej.user_id = ? AND ej.organization_id = ?`, userID, orgID).
		Scan(&ej.ID, &ej.JourneyID, &ej.JourneyName, &ej.UserID, &ej.UserName, &ej.Status, &ej.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EmployeeJourney{}, fmt.Errorf("journey for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	ej.CompletedAt = timePtr(completedAt)

	rows, err := s.db.Query(`SELECT pp.id, pp.phase_id, jp.position, jp.title, pp.status, pp.started_at, pp.due_date, pp.completed_at
		FROM phase_progress pp JOIN journey_phases jp ON jp.id = pp.phase_id
		WHERE pp.employee_journey_id = ? ORDER BY jp.position`, ej.ID)
	if err != nil {
		return models.EmployeeJourney{}, err
	}
	defer rows.Close()

	ej.Phases = []models.PhaseProgress{}
	completed := 0
	for rows.Next() {
		var p models.PhaseProgress
		var startedAt, dueDate, doneAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.PhaseID, &p.Position, &p.Title, &p.Status, &startedAt, &dueDate, &doneAt); err != nil {
			return models.EmployeeJourney{}, err
		}
		p.StartedAt = timePtr(startedAt)
		p.DueDate = timePtr(dueDate)
		p.CompletedAt = timePtr(doneAt)
		if p.Status == models.PhaseCompleted {
			completed++
		}
		ej.Phases = append(ej.Phases, p)
	}
	if err := rows.Err(); err != nil {
		return models.EmployeeJourney{}, err
	}
	ej.PercentComplete = percentComplete(completed, len(ej.Phases))
	return ej, nil
}

func percentComplete(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

// ListEmployeeJourneys lists journeys in the organization, or only a manager's reports.
func (s *JourneyService) ListEmployeeJourneys(orgID, managerID string) ([]models.EmployeeJourney, error) {
	query := `SELECT ej.id, ej.journey_id, j.name, ej.user_id, u.name, ej.status, ej.started_at, ej.completed_at,
			(SELECT COUNT(*) FROM phase_progress WHERE employee_journey_id = ej.id AND status = 'COMPLETED'),
			(SELECT COUNT(*) FROM phase_progress WHERE employee_journey_id = ej.id)
		FROM employee_journeys ej
		JOIN journeys j ON j.id = ej.journey_id
		JOIN users u ON u.id = ej.user_id
		WHERE ej.organization_id = ?`
	args := []any{orgID}
	if managerID != "" {
		query += " AND u.manager_id = ?"
		args = append(args, managerID)
	}
	query += " ORDER BY u.name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	journeys := []models.EmployeeJourney{}
	for rows.Next() {
		var ej models.EmployeeJourney
		var completedAt sql.NullTime
		var done, total int
		if err := rows.Scan(&ej.ID, &ej.JourneyID, &ej.JourneyName, &ej.UserID, &ej.UserName, &ej.Status, &ej.StartedAt, &completedAt, &done, &total); err != nil {
			return nil, err
		}
		ej.CompletedAt = timePtr(completedAt)
		ej.PercentComplete = percentComplete(done, total)
		journeys = append(journeys, ej)
	}
	return journeys, rows.Err()
}

// MarkOverdue flips every in-progress phase whose due date is before now to OVERDUE and
// notifies the employee and their manager. It runs across all organizations.
func (s *JourneyService) MarkOverdue(now time.Time) ([]models.OverduePhase, error) {
	rows, err := s.db.Query(`SELECT pp.id, ej.organization_id, ej.user_id, u.manager_id, jp.title, pp.due_date
		FROM phase_progress pp
		JOIN employee_journeys ej ON ej.id = pp.employee_journey_id
		JOIN journey_phases jp ON jp.id = pp.phase_id
		JOIN users u ON u.id = ej.user_id
		WHERE pp.status = ? AND pp.due_date IS NOT NULL`, models.PhaseInProgress)
	if err != nil {
		return nil, err
	}
	var overdue []models.OverduePhase
	for rows.Next() {
		var o models.OverduePhase
		var managerID sql.NullString
		if err := rows.Scan(&o.ProgressID, &o.OrganizationID, &o.UserID, &managerID, &o.PhaseTitle, &o.DueDate); err != nil {
			rows.Close()
			return nil, err
		}
		if o.DueDate.Before(now) {
			o.ManagerID = nullString(managerID)
			overdue = append(overdue, o)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	marked := make([]models.OverduePhase, 0, len(overdue))
	for _, o := range overdue {
		res, err := s.db.Exec("UPDATE phase_progress SET status = ? WHERE id = ? AND status = ?", models.PhaseOverdue, o.ProgressID, models.PhaseInProgress)
		if err != nil {
			return marked, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		marked = append(marked, o)

		due := o.DueDate.Format("2006-01-02")
		s.notify(o.OrganizationID, o.UserID, "journey.phase.overdue", fmt.Sprintf("Phase '%s' was due on %s and is now overdue.", o.PhaseTitle, due))
		if o.ManagerID != nil {
			s.notify(o.OrganizationID, *o.ManagerID, "journey.phase.overdue", fmt.Sprintf("A team member's phase '%s' is overdue (due %s).", o.PhaseTitle, due))
		}
		s.eventService.CreateEvent(o.OrganizationID, "journey.phase.overdue", "warn", fmt.Sprintf("Phase '%s' for user %s is overdue.", o.PhaseTitle, o.UserID), nil)
	}
	metrics.OverdueMarked.WithLabelValues("phase").Add(float64(len(marked)))
	return marked, nil
}

func (s *JourneyService) notify(orgID, userID, notificationType, message string) {
	notifyUser(s.notifications, orgID, userID, notificationType, message)
}
