package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
)

// TrainingInput is the payload for a training.
type TrainingInput struct {
	Title         string              `json:"title" validate:"required,max=200"`
	Description   string              `json:"description" validate:"max=4000"`
	Mode          models.TrainingMode `json:"mode" validate:"required,oneof=ONLINE OFFLINE"`
	SkillID       *string             `json:"skillId"`
	TargetLevel   models.SkillLevel   `json:"targetLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	URL           string              `json:"url" validate:"omitempty,url"`
	Location      string              `json:"location" validate:"max=300"`
	StartsAt      *time.Time          `json:"startsAt"`
	EndsAt        *time.Time          `json:"endsAt"`
	DurationHours float64             `json:"durationHours" validate:"min=0"`
}

// AssignInput selects users for a training. DueDate defaults to the org's default_due_days.
type AssignInput struct {
	UserIDs []string   `json:"userIds" validate:"required,min=1,dive,required"`
	DueDate *time.Time `json:"dueDate"`
}

// TrainingServiceProvider defines the interface for trainings and assignments.
type TrainingServiceProvider interface {
	ListTrainings(orgID, skillID string) ([]models.Training, error)
	GetTraining(orgID, id string) (models.Training, error)
	CreateTraining(orgID, actorID string, input TrainingInput) (models.Training, error)
	UpdateTraining(orgID, actorID, id string, input TrainingInput) (models.Training, error)
	DeleteTraining(orgID, actorID, id string) error
	AssignTraining(orgID, actorID, trainingID string, input AssignInput) ([]models.Assignment, error)
	AssignFromGaps(orgID, actorID, userID string) ([]models.Assignment, error)
	GetAssignment(orgID, id string) (models.Assignment, error)
	StartAssignment(orgID, userID, assignmentID string) (models.Assignment, error)
	ListMyAssignments(orgID, userID string) ([]models.Assignment, error)
	ListAssignments(orgID string, filter models.AssignmentFilter) ([]models.Assignment, error)
	ListMyOfflineTrainings(orgID, userID string) ([]models.Training, error)
	MarkOverdueAssignments(now time.Time) (int, error)
}

// TrainingService provides business logic for trainings.
type TrainingService struct {
	db            *sql.DB
	eventService  EventServiceProvider
	notifications NotificationServiceProvider
	clock         clockwork.Clock
}

// NewTrainingService creates a new TrainingService.
func NewTrainingService(db *sql.DB, eventService EventServiceProvider, notifications NotificationServiceProvider, clock clockwork.Clock) *TrainingService {
	return &TrainingService{db: db, eventService: eventService, notifications: notifications, clock: clock}
}

const trainingColumns = "id, organization_id, title, description, mode, skill_id, target_level, url, location, starts_at, ends_at, duration_hours, created_by, created_at"

func scanTraining(row scanner) (models.Training, error) {
	var t models.Training
	var skillID, createdBy sql.NullString
	var startsAt, endsAt sql.NullTime
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.Mode, &skillID, &t.TargetLevel, &t.URL, &t.Location,
		&startsAt, &endsAt, &t.DurationHours, &createdBy, &t.CreatedAt)
	if err != nil {
		return models.Training{}, err
	}
	t.SkillID = nullString(skillID)
	t.CreatedBy = nullString(createdBy)
	t.StartsAt = timePtr(startsAt)
	t.EndsAt = timePtr(endsAt)
	return t, nil
}

func (s *TrainingService) queryTrainings(query string, args ...any) ([]models.Training, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trainings := []models.Training{}
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		trainings = append(trainings, t)
	}
	return trainings, rows.Err()
}

// ListTrainings lists trainings, optionally only those linked to a skill.
func (s *TrainingService) ListTrainings(orgID, skillID string) ([]models.Training, error) {
	if skillID != "" {
		return s.queryTrainings("SELECT "+trainingColumns+" FROM trainings WHERE organization_id = ? AND skill_id = ? ORDER BY title", orgID, skillID)
	}
	return s.queryTrainings("SELECT "+trainingColumns+" FROM trainings WHERE organization_id = ? ORDER BY title", orgID)
}

// GetTraining retrieves a single training.
func (s *TrainingService) GetTraining(orgID, id string) (models.Training, error) {
	t, err := scanTraining(s.db.QueryRow("SELECT "+trainingColumns+" FROM trainings WHERE id = ? AND organization_id = ?", id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Training{}, fmt.Errorf("training %s: %w", id, ErrNotFound)
	}
	return t, err
}

// checkTrainingInput enforces the per-mode rules and normalizes the fields the mode does not use.
func (s *TrainingService) checkTrainingInput(orgID string, input *TrainingInput) error {
	if err := validateInput(input); err != nil {
		return err
	}
	input.Title = strings.TrimSpace(input.Title)
	input.URL = strings.TrimSpace(input.URL)
	input.Location = strings.TrimSpace(input.Location)

	switch input.Mode {
	case models.TrainingOnline:
		if input.URL == "" {
			return fmt.Errorf("%w: online trainings need a URL", ErrInvalid)
		}
		input.Location = ""
	case models.TrainingOffline:
		if input.Location == "" {
			return fmt.Errorf("%w: offline trainings need a location", ErrInvalid)
		}
		if input.StartsAt == nil || input.EndsAt == nil {
			return fmt.Errorf("%w: offline trainings need a start and end time", ErrInvalid)
		}
		if !input.EndsAt.After(*input.StartsAt) {
			return fmt.Errorf("%w: a training must end after it starts", ErrInvalid)
		}
		start, end := input.StartsAt.UTC(), input.EndsAt.UTC()
		input.StartsAt, input.EndsAt = &start, &end
	}
	if id := emptyToNil(input.SkillID); id != nil {
		if err := ensureInOrg(s.db, "skills", orgID, *id); err != nil {
			return err
		}
	}
	return nil
}

// CreateTraining adds a training.
func (s *TrainingService) CreateTraining(orgID, actorID string, input TrainingInput) (models.Training, error) {
	if err := s.checkTrainingInput(orgID, &input); err != nil {
		return models.Training{}, err
	}
	id := uuid.New().String()
	_, err := s.db.Exec("INSERT INTO trainings ("+trainingColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, orgID, input.Title, input.Description, input.Mode, emptyToNil(input.SkillID), input.TargetLevel, input.URL, input.Location,
		input.StartsAt, input.EndsAt, input.DurationHours, actorID, s.clock.Now().UTC())
	if err != nil {
		return models.Training{}, err
	}
	s.eventService.CreateEvent(orgID, "training.create", "info", fmt.Sprintf("Training '%s' created.", input.Title), &actorID)
	return s.GetTraining(orgID, id)
}

// UpdateTraining edits a training.
func (s *TrainingService) UpdateTraining(orgID, actorID, id string, input TrainingInput) (models.Training, error) {
	if err := s.checkTrainingInput(orgID, &input); err != nil {
		return models.Training{}, err
	}
	res, err := s.db.Exec(`UPDATE trainings SET title = ?, description = ?, mode = ?, skill_id = ?, target_level = ?, url = ?, location = ?,
		starts_at = ?, ends_at = ?, duration_hours = ? WHERE id = ? AND organization_id = ?`,
		input.Title, input.Description, input.Mode, emptyToNil(input.SkillID), input.TargetLevel, input.URL, input.Location,
		input.StartsAt, input.EndsAt, input.DurationHours, id, orgID)
	if err != nil {
		return models.Training{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Training{}, fmt.Errorf("training %s: %w", id, ErrNotFound)
	}
	s.eventService.CreateEvent(orgID, "training.update", "info", fmt.Sprintf("Training '%s' updated.", input.Title), &actorID)
	return s.GetTraining(orgID, id)
}

// DeleteTraining removes a training with its assignments and proofs.
func (s *TrainingService) DeleteTraining(orgID, actorID, id string) error {
	t, err := s.GetTraining(orgID, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM trainings WHERE id = ? AND organization_id = ?", id, orgID); err != nil {
		return err
	}
	s.eventService.CreateEvent(orgID, "training.delete", "warn", fmt.Sprintf("Training '%s' was deleted.", t.Title), &actorID)
	return nil
}

// AssignTraining assigns a training to users. Users who already have it are skipped;
// only the newly created assignments are returned.
func (s *TrainingService) AssignTraining(orgID, actorID, trainingID string, input AssignInput) ([]models.Assignment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	t, err := s.GetTraining(orgID, trainingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var due time.Time
	if input.DueDate != nil {
		due = input.DueDate.UTC()
		if !due.After(now) {
			return nil, fmt.Errorf("%w: due date must be in the future", ErrInvalid)
		}
	} else {
		cfg, err := loadSystemConfig(s.db, orgID)
		if err != nil {
			return nil, err
		}
		due = now.AddDate(0, 0, cfg.Int(models.ConfigDefaultDueDays))
	}

	for _, userID := range input.UserIDs {
		if err := ensureInOrg(s.db, "users", orgID, userID); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var created []string
	for _, userID := range input.UserIDs {
		id := uuid.New().String()
		res, err := tx.Exec(`INSERT INTO training_assignments (id, organization_id, training_id, user_id, assigned_by, status, due_date, assigned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (training_id, user_id) DO NOTHING`,
			id, orgID, trainingID, userID, actorID, models.AssignmentAssigned, due, now)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created = append(created, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	assignments := []models.Assignment{}
	for _, id := range created {
		a, err := s.GetAssignment(orgID, id)
		if err != nil {
			return assignments, err
		}
		assignments = append(assignments, a)
		notifyUser(s.notifications, orgID, a.UserID, "training.assigned",
			fmt.Sprintf("You have been assigned '%s', due %s.", t.Title, due.Format("2006-01-02")))
	}
	if len(assignments) > 0 {
		s.eventService.CreateEvent(orgID, "training.assign", "info", fmt.Sprintf("Training '%s' assigned to %d users.", t.Title, len(assignments)), &actorID)
	}
	return assignments, nil
}

// AssignFromGaps assigns every training linked to a skill in which the user has a gap.
func (s *TrainingService) AssignFromGaps(orgID, actorID, userID string) ([]models.Assignment, error) {
	if err := ensureInOrg(s.db, "users", orgID, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query("SELECT skill_id, current_level, desired_level FROM skill_matrix WHERE organization_id = ? AND user_id = ?", orgID, userID)
	if err != nil {
		return nil, err
	}
	gapSkills := map[string]bool{}
	for rows.Next() {
		var skillID string
		var current sql.NullString
		var desired models.SkillLevel
		if err := rows.Scan(&skillID, &current, &desired); err != nil {
			rows.Close()
			return nil, err
		}
		var cur *models.SkillLevel
		if current.Valid {
			level := models.SkillLevel(current.String)
			cur = &level
		}
		if CalculateGap(cur, desired).Levels > 0 {
			gapSkills[skillID] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	linked, err := trainingsBySkill(s.db, orgID)
	if err != nil {
		return nil, err
	}

	assignments := []models.Assignment{}
	for skillID := range gapSkills {
		for _, t := range linked[skillID] {
			created, err := s.AssignTraining(orgID, actorID, t.ID, AssignInput{UserIDs: []string{userID}})
			if err != nil {
				return assignments, err
			}
			assignments = append(assignments, created...)
		}
	}
	return assignments, nil
}

const assignmentSelect = `SELECT a.id, a.training_id, t.title, t.mode, a.user_id, u.name, a.assigned_by, a.status, a.due_date,
	a.assigned_at, a.started_at, a.completed_at
	FROM training_assignments a
	JOIN trainings t ON t.id = a.training_id
	JOIN users u ON u.id = a.user_id`

func scanAssignment(row scanner) (models.Assignment, error) {
	var a models.Assignment
	var assignedBy sql.NullString
	var due, startedAt, completedAt sql.NullTime
	err := row.Scan(&a.ID, &a.TrainingID, &a.TrainingTitle, &a.TrainingMode, &a.UserID, &a.UserName, &assignedBy, &a.Status,
		&due, &a.AssignedAt, &startedAt, &completedAt)
	if err != nil {
		return models.Assignment{}, err
	}
	a.AssignedBy = nullString(assignedBy)
	a.DueDate = timePtr(due)
	a.StartedAt = timePtr(startedAt)
	a.CompletedAt = timePtr(completedAt)
	return a, nil
}

func (s *TrainingService) queryAssignments(query string, args ...any) ([]models.Assignment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetAssignment retrieves a single assignment.
func (s *TrainingService) GetAssignment(orgID, id string) (models.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRow(assignmentSelect+" WHERE a.id = ? AND a.organization_id = ?", id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return a, err
}

// StartAssignment moves the user's own assignment to IN_PROGRESS.
func (s *TrainingService) StartAssignment(orgID, userID, assignmentID string) (models.Assignment, error) {
	a, err := s.GetAssignment(orgID, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}
	if a.UserID != userID {
		return models.Assignment{}, fmt.Errorf("assignment %s: %w", assignmentID, ErrForbidden)
	}
	switch a.Status {
	case models.AssignmentInProgress:
		return a, nil
	case models.AssignmentCompleted:
		return models.Assignment{}, fmt.Errorf("assignment is already completed: %w", ErrConflict)
	}

	// Overdue assignments may still be started; they stay overdue until completed.
	status := models.AssignmentInProgress
	if a.Status == models.AssignmentOverdue {
		status = models.AssignmentOverdue
	}
	if _, err := s.db.Exec("UPDATE training_assignments SET status = ?, started_at = ? WHERE id = ?", status, s.clock.Now().UTC(), assignmentID); err != nil {
		return models.Assignment{}, err
	}
	return s.GetAssignment(orgID, assignmentID)
}

// ListMyAssignments lists the user's assignments by due date.
func (s *TrainingService) ListMyAssignments(orgID, userID string) ([]models.Assignment, error) {
	return s.queryAssignments(assignmentSelect+" WHERE a.organization_id = ? AND a.user_id = ? ORDER BY a.due_date", orgID, userID)
}

// ListAssignments lists the organization's assignments, optionally filtered.
func (s *TrainingService) ListAssignments(orgID string, filter models.AssignmentFilter) ([]models.Assignment, error) {
	query := assignmentSelect + " WHERE a.organization_id = ?"
	args := []any{orgID}
	if filter.TrainingID != "" {
		query += " AND a.training_id = ?"
		args = append(args, filter.TrainingID)
	}
	if filter.UserID != "" {
		query += " AND a.user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += " AND a.status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY a.assigned_at DESC"
	return s.queryAssignments(query, args...)
}

// ListMyOfflineTrainings returns the scheduled trainings the user is assigned to.
func (s *TrainingService) ListMyOfflineTrainings(orgID, userID string) ([]models.Training, error) {
	return s.queryTrainings(`SELECT t.id, t.organization_id, t.title, t.description, t.mode, t.skill_id, t.target_level, t.url, t.location,
		t.starts_at, t.ends_at, t.duration_hours, t.created_by, t.created_at
		FROM trainings t JOIN training_assignments a ON a.training_id = t.id
		WHERE a.organization_id = ? AND a.user_id = ? AND t.mode = ? ORDER BY t.starts_at`, orgID, userID, models.TrainingOffline)
}

// MarkOverdueAssignments flips open assignments whose due date is before now to OVERDUE.
// It runs across all organizations and returns the number of assignments changed.
func (s *TrainingService) MarkOverdueAssignments(now time.Time) (int, error) {
	rows, err := s.db.Query(`SELECT a.id, a.organization_id, a.user_id, t.title, a.due_date
		FROM training_assignments a JOIN trainings t ON t.id = a.training_id
		WHERE a.status IN (?, ?) AND a.due_date IS NOT NULL`, models.AssignmentAssigned, models.AssignmentInProgress)
	if err != nil {
		return 0, err
	}
	type overdue struct {
		id, orgID, userID, title string
		due                      time.Time
	}
	var found []overdue
	for rows.Next() {
		var o overdue
		if err := rows.Scan(&o.id, &o.orgID, &o.userID, &o.title, &o.due); err != nil {
			rows.Close()
			return 0, err
		}
		if o.due.Before(now) {
			found = append(found, o)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	marked := 0
	for _, o := range found {
		res, err := s.db.Exec("UPDATE training_assignments SET status = ? WHERE id = ? AND status IN (?, ?)",
			models.AssignmentOverdue, o.id, models.AssignmentAssigned, models.AssignmentInProgress)
		if err != nil {
			return marked, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		marked++
		notifyUser(s.notifications, o.orgID, o.userID, "training.overdue",
			fmt.Sprintf("Training '%s' was due on %s and is now overdue.", o.title, o.due.Format("2006-01-02")))
	}
	metrics.OverdueMarked.WithLabelValues("assignment").Add(float64(marked))
	return marked, nil
}

// completeAssignment marks an assignment COMPLETED and, when the training targets a skill,
// raises the user's level. Used when a proof is approved.
func completeAssignment(tx *sql.Tx, orgID, assignmentID string, reviewerID *string, now time.Time) error {
	var userID string
	var skillID sql.NullString
	var target models.SkillLevel
	err := tx.QueryRow(`SELECT a.user_id, t.skill_id, t.target_level FROM training_assignments a
		JOIN trainings t ON t.id = a.training_id WHERE a.id = ? AND a.organization_id = ?`, assignmentID, orgID).
		Scan(&userID, &skillID, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec("UPDATE training_assignments SET status = ?, completed_at = ?, started_at = COALESCE(started_at, ?) WHERE id = ?",
		models.AssignmentCompleted, now, now, assignmentID); err != nil {
		return err
	}
	if skillID.Valid {
		if _, err := raiseCurrentLevel(tx, orgID, userID, skillID.String, target, models.SourceTraining, reviewerID, now); err != nil {
			return fmt.Errorf("failed to update skill matrix: %w", err)
		}
	}
	return nil
}
