package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// QuestionDrafter generates candidate questions for an assessment.
type QuestionDrafter interface {
	DraftQuestions(ctx context.Context, req models.QuestionDraftRequest) ([]models.Question, error)
}

// AssessmentInput is the payload for an assessment.
type AssessmentInput struct {
	Title            string            `json:"title" validate:"required,max=200"`
	Description      string            `json:"description" validate:"max=4000"`
	SkillID          *string           `json:"skillId"`
	TargetLevel      models.SkillLevel `json:"targetLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	PassingScore     *int              `json:"passingScore" validate:"omitempty,min=1,max=100"`
	TimeLimitMinutes int               `json:"timeLimitMinutes" validate:"min=0,max=1440"`
}

// QuestionInput is the payload for a question.
type QuestionInput struct {
	Type          models.QuestionType `json:"type" validate:"required,oneof=MCQ TRUE_FALSE FILL_BLANK DESCRIPTIVE"`
	Prompt        string              `json:"prompt" validate:"required,max=4000"`
	Options       []string            `json:"options"`
	CorrectAnswer string              `json:"correctAnswer" validate:"max=2000"`
	Points        int                 `json:"points" validate:"min=1,max=1000"`
}

// AssessmentServiceProvider defines the interface for assessments, attempts and grading.
type AssessmentServiceProvider interface {
	ListAssessments(orgID string, publishedOnly bool) ([]models.Assessment, error)
	GetAssessment(orgID, id string, withAnswers bool) (models.Assessment, error)
	CreateAssessment(orgID, actorID string, input AssessmentInput) (models.Assessment, error)
	UpdateAssessment(orgID, actorID, id string, input AssessmentInput) (models.Assessment, error)
	DeleteAssessment(orgID, actorID, id string) error
	PublishAssessment(orgID, actorID, id string) (models.Assessment, error)
	AddQuestion(orgID, actorID, assessmentID string, input QuestionInput) (models.Question, error)
	UpdateQuestion(orgID, actorID, questionID string, input QuestionInput) (models.Question, error)
	DeleteQuestion(orgID, actorID, questionID string) error
	DraftQuestions(ctx context.Context, orgID, actorID, assessmentID string, count int, types []models.QuestionType) ([]models.Question, error)
	StartAttempt(orgID, userID, assessmentID string) (models.Attempt, error)
	SubmitAttempt(orgID, userID, attemptID string, answers []models.SubmittedAnswer) (models.Attempt, error)
	GradeAnswer(orgID, graderID, attemptID, questionID string, points int, feedback string) (models.Attempt, error)
	GetAttempt(orgID, attemptID string) (models.Attempt, error)
	ListMyAttempts(orgID, userID string) ([]models.Attempt, error)
	PendingGrading(orgID string) ([]models.PendingAttempt, error)
}

// AssessmentService provides business logic for assessments.
type AssessmentService struct {
	db            *sql.DB
	eventService  EventServiceProvider
	notifications NotificationServiceProvider
	drafter       QuestionDrafter
	clock         clockwork.Clock
}

// NewAssessmentService creates a new AssessmentService. drafter may be nil when AI drafting is disabled.
func NewAssessmentService(db *sql.DB, eventService EventServiceProvider, notifications NotificationServiceProvider, drafter QuestionDrafter, clock clockwork.Clock) *AssessmentService {
	return &AssessmentService{db: db, eventService: eventService, notifications: notifications, drafter: drafter, clock: clock}
}

const assessmentColumns = "id, organization_id, title, description, skill_id, target_level, passing_score, time_limit_minutes, is_published, created_by, created_at"

func scanAssessment(row scanner) (models.Assessment, error) {
	var a models.Assessment
	var skillID, createdBy sql.NullString
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Title, &a.Description, &skillID, &a.TargetLevel, &a.PassingScore,
		&a.TimeLimitMinutes, &a.IsPublished, &createdBy, &a.CreatedAt)
	if err != nil {
		return models.Assessment{}, err
	}
	a.SkillID = nullString(skillID)
	a.CreatedBy = nullString(createdBy)
	return a, nil
}

// ListAssessments lists the organization's assessments without questions.
func (s *AssessmentService) ListAssessments(orgID string, publishedOnly bool) ([]models.Assessment, error) {
	query := "SELECT " + assessmentColumns + " FROM assessments WHERE organization_id = ?"
	if publishedOnly {
		query += " AND is_published = 1"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := []models.Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

func (s *AssessmentService) getAssessment(q dbtx, orgID, id string) (models.Assessment, error) {
	a, err := scanAssessment(q.QueryRow("SELECT "+assessmentColumns+" FROM assessments WHERE id = ? AND organization_id = ?", id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Assessment{}, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return a, err
}

// GetAssessment returns an assessment with its questions. Answer keys are removed unless withAnswers.
func (s *AssessmentService) GetAssessment(orgID, id string, withAnswers bool) (models.Assessment, error) {
	a, err := s.getAssessment(s.db, orgID, id)
	if err != nil {
		return models.Assessment{}, err
	}
	questions, err := loadQuestions(s.db, id)
	if err != nil {
		return models.Assessment{}, err
	}
	if !withAnswers {
		for i := range questions {
			questions[i] = questions[i].Redacted()
		}
	}
	a.Questions = questions
	return a, nil
}

const questionColumns = "id, assessment_id, type, prompt, options_json, correct_answer, points, position"

func scanQuestion(row scanner) (models.Question, error) {
	var q models.Question
	if err := row.Scan(&q.ID, &q.AssessmentID, &q.Type, &q.Prompt, &q.OptionsJSON, &q.CorrectAnswer, &q.Points, &q.Position); err != nil {
		return models.Question{}, err
	}
	q.PrepareForAPI()
	return q, nil
}

func loadQuestions(q dbtx, assessmentID string) ([]models.Question, error) {
	rows, err := q.Query("SELECT "+questionColumns+" FROM questions WHERE assessment_id = ? ORDER BY position", assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (s *AssessmentService) checkAssessmentInput(orgID string, input AssessmentInput) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if id := emptyToNil(input.SkillID); id != nil {
		if err := ensureInOrg(s.db, "skills", orgID, *id); err != nil {
			return err
		}
	}
	return nil
}

// CreateAssessment adds an unpublished assessment. The passing score defaults to the org config.
func (s *AssessmentService) CreateAssessment(orgID, actorID string, input AssessmentInput) (models.Assessment, error) {
	if err := s.checkAssessmentInput(orgID, input); err != nil {
		return models.Assessment{}, err
	}
	passing := 0
	if input.PassingScore != nil {
		passing = *input.PassingScore
	} else {
		cfg, err := loadSystemConfig(s.db, orgID)
		if err != nil {
			return models.Assessment{}, err
		}
		passing = cfg.Int(models.ConfigPassingScore)
	}

	id := uuid.New().String()
	_, err := s.db.Exec(`INSERT INTO assessments (`+assessmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, orgID, strings.TrimSpace(input.Title), input.Description, emptyToNil(input.SkillID), input.TargetLevel,
		passing, input.TimeLimitMinutes, actorID, s.clock.Now().UTC())
	if err != nil {
		return models.Assessment{}, err
	}
	s.eventService.CreateEvent(orgID, "assessment.create", "info", fmt.Sprintf("Assessment '%s' created.", input.Title), &actorID)
	return s.GetAssessment(orgID, id, true)
}

// UpdateAssessment edits assessment settings.
func (s *AssessmentService) UpdateAssessment(orgID, actorID, id string, input AssessmentInput) (models.Assessment, error) {
	existing, err := s.getAssessment(s.db, orgID, id)
	if err != nil {
		return models.Assessment{}, err
	}
	if err := s.checkAssessmentInput(orgID, input); err != nil {
		return models.Assessment{}, err
	}
	passing := existing.PassingScore
	if input.PassingScore != nil {
		passing = *input.PassingScore
	}

	_, err = s.db.Exec(`UPDATE assessments SET title = ?, description = ?, skill_id = ?, target_level = ?, passing_score = ?, time_limit_minutes = ?
		WHERE id = ? AND organization_id = ?`,
		strings.TrimSpace(input.Title), input.Description, emptyToNil(input.SkillID), input.TargetLevel, passing, input.TimeLimitMinutes, id, orgID)
	if err != nil {
		return models.Assessment{}, err
	}
	s.eventService.CreateEvent(orgID, "assessment.update", "info", fmt.Sprintf("Assessment '%s' updated.", input.Title), &actorID)
	return s.GetAssessment(orgID, id, true)
}

// DeleteAssessment removes an assessment with its questions and attempts.
func (s *AssessmentService) DeleteAssessment(orgID, actorID, id string) error {
	a, err := s.getAssessment(s.db, orgID, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM assessments WHERE id = ? AND organization_id = ?", id, orgID); err != nil {
		return err
	}
	s.eventService.CreateEvent(orgID, "assessment.delete", "warn", fmt.Sprintf("Assessment '%s' was deleted.", a.Title), &actorID)
	return nil
}

// PublishAssessment opens an assessment to employees. Its questions are frozen afterwards.
func (s *AssessmentService) PublishAssessment(orgID, actorID, id string) (models.Assessment, error) {
	a, err := s.getAssessment(s.db, orgID, id)
	if err != nil {
		return models.Assessment{}, err
	}
	if a.IsPublished {
		return models.Assessment{}, fmt.Errorf("assessment '%s' is already published: %w", a.Title, ErrConflict)
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM questions WHERE assessment_id = ?", id).Scan(&n); err != nil {
		return models.Assessment{}, err
	}
	if n == 0 {
		return models.Assessment{}, fmt.Errorf("%w: assessment has no questions", ErrInvalid)
	}
	if _, err := s.db.Exec("UPDATE assessments SET is_published = 1 WHERE id = ?", id); err != nil {
		return models.Assessment{}, err
	}
	s.eventService.CreateEvent(orgID, "assessment.publish", "info", fmt.Sprintf("Assessment '%s' published.", a.Title), &actorID)
	return s.GetAssessment(orgID, id, true)
}

// normalizeQuestion applies the per-type rules and returns a question ready to store.
func normalizeQuestion(input QuestionInput) (models.Question, error) {
	if err := validateInput(input); err != nil {
		return models.Question{}, err
	}
	q := models.Question{
		Type:          input.Type,
		Prompt:        strings.TrimSpace(input.Prompt),
		CorrectAnswer: strings.TrimSpace(input.CorrectAnswer),
		Points:        input.Points,
	}

	switch input.Type {
	case models.QuestionMCQ:
		seen := map[string]bool{}
		for _, o := range input.Options {
			o = strings.TrimSpace(o)
			if o == "" || seen[o] {
				continue
			}
			seen[o] = true
			q.Options = append(q.Options, o)
		}
		if len(q.Options) < 2 {
			return models.Question{}, fmt.Errorf("%w: multiple choice questions need at least two distinct options", ErrInvalid)
		}
		if !seen[q.CorrectAnswer] {
			return models.Question{}, fmt.Errorf("%w: the correct answer must be one of the options", ErrInvalid)
		}
	case models.QuestionTrueFalse:
		q.CorrectAnswer = strings.ToLower(q.CorrectAnswer)
		if q.CorrectAnswer != "true" && q.CorrectAnswer != "false" {
			return models.Question{}, fmt.Errorf("%w: true/false answers must be \"true\" or \"false\"", ErrInvalid)
		}
	case models.QuestionFillBlank:
		if q.CorrectAnswer == "" {
			return models.Question{}, fmt.Errorf("%w: fill-in-the-blank questions need a correct answer", ErrInvalid)
		}
	}
	q.PrepareForSave()
	return q, nil
}

func (s *AssessmentService) editableAssessment(orgID, assessmentID string) (models.Assessment, error) {
	a, err := s.getAssessment(s.db, orgID, assessmentID)
	if err != nil {
		return models.Assessment{}, err
	}
	if a.IsPublished {
		return models.Assessment{}, fmt.Errorf("assessment '%s' is published and its questions are locked: %w", a.Title, ErrConflict)
	}
	return a, nil
}

func (s *AssessmentService) insertQuestion(assessmentID string, q models.Question) (models.Question, error) {
	var maxPos int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(position), 0) FROM questions WHERE assessment_id = ?", assessmentID).Scan(&maxPos); err != nil {
		return models.Question{}, err
	}
	q.ID = uuid.New().String()
	q.AssessmentID = assessmentID
	q.Position = maxPos + 1
	_, err := s.db.Exec("INSERT INTO questions ("+questionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		q.ID, q.AssessmentID, q.Type, q.Prompt, q.OptionsJSON, q.CorrectAnswer, q.Points, q.Position)
	if err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// AddQuestion appends a question to an unpublished assessment.
func (s *AssessmentService) AddQuestion(orgID, actorID, assessmentID string, input QuestionInput) (models.Question, error) {
	if _, err := s.editableAssessment(orgID, assessmentID); err != nil {
		return models.Question{}, err
	}
	q, err := normalizeQuestion(input)
	if err != nil {
		return models.Question{}, err
	}
	return s.insertQuestion(assessmentID, q)
}

func (s *AssessmentService) questionAssessment(orgID, questionID string) (string, error) {
	var assessmentID string
	err := s.db.QueryRow(`SELECT q.assessment_id FROM questions q JOIN assessments a ON a.id = q.assessment_id
		WHERE q.id = ? AND a.organization_id = ?`, questionID, orgID).Scan(&assessmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	return assessmentID, err
}

// UpdateQuestion replaces a question of an unpublished assessment.
func (s *AssessmentService) UpdateQuestion(orgID, actorID, questionID string, input QuestionInput) (models.Question, error) {
	assessmentID, err := s.questionAssessment(orgID, questionID)
	if err != nil {
		return models.Question{}, err
	}
	if _, err := s.editableAssessment(orgID, assessmentID); err != nil {
		return models.Question{}, err
	}
	q, err := normalizeQuestion(input)
	if err != nil {
		return models.Question{}, err
	}
	_, err = s.db.Exec("UPDATE questions SET type = ?, prompt = ?, options_json = ?, correct_answer = ?, points = ? WHERE id = ?",
		q.Type, q.Prompt, q.OptionsJSON, q.CorrectAnswer, q.Points, questionID)
	if err != nil {
		return models.Question{}, err
	}
	return scanQuestion(s.db.QueryRow("SELECT "+questionColumns+" FROM questions WHERE id = ?", questionID))
}

// DeleteQuestion removes a question of an unpublished assessment.
func (s *AssessmentService) DeleteQuestion(orgID, actorID, questionID string) error {
	assessmentID, err := s.questionAssessment(orgID, questionID)
	if err != nil {
		return err
	}
	if _, err := s.editableAssessment(orgID, assessmentID); err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM questions WHERE id = ?", questionID)
	return err
}

// DraftQuestions asks the generator for questions and appends the valid ones.
func (s *AssessmentService) DraftQuestions(ctx context.Context, orgID, actorID, assessmentID string, count int, types []models.QuestionType) ([]models.Question, error) {
	if s.drafter == nil {
		return nil, fmt.Errorf("%w: question drafting is not configured", ErrInvalid)
	}
	if count < 1 || count > 20 {
		return nil, fmt.Errorf("%w: count must be between 1 and 20", ErrInvalid)
	}
	for _, t := range types {
		if t != models.QuestionMCQ && t != models.QuestionTrueFalse && t != models.QuestionFillBlank && t != models.QuestionDescriptive {
			return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalid, t)
		}
	}
	if len(types) == 0 {
		types = []models.QuestionType{models.QuestionMCQ, models.QuestionTrueFalse}
	}

	a, err := s.editableAssessment(orgID, assessmentID)
	if err != nil {
		return nil, err
	}
	req := models.QuestionDraftRequest{
		AssessmentTitle: a.Title,
		Description:     a.Description,
		TargetLevel:     a.TargetLevel,
		Count:           count,
		Types:           types,
	}
	if a.SkillID != nil {
		if err := s.db.QueryRow("SELECT name FROM skills WHERE id = ?", *a.SkillID).Scan(&req.SkillName); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	drafts, err := s.drafter.DraftQuestions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to draft questions: %w", err)
	}

	added := []models.Question{}
	for _, d := range drafts {
		q, err := normalizeQuestion(QuestionInput{Type: d.Type, Prompt: d.Prompt, Options: d.Options, CorrectAnswer: d.CorrectAnswer, Points: d.Points})
		if err != nil {
			log.Warn().Err(err).Str("assessment_id", assessmentID).Msg("Discarding invalid drafted question")
			continue
		}
		q, err = s.insertQuestion(assessmentID, q)
		if err != nil {
			return added, err
		}
		added = append(added, q)
	}
	if len(added) == 0 {
		return nil, fmt.Errorf("%w: no usable questions were drafted", ErrInvalid)
	}

	s.eventService.CreateEvent(orgID, "assessment.draft", "info", fmt.Sprintf("%d questions drafted for '%s'.", len(added), a.Title), &actorID)
	return added, nil
}

const attemptColumns = "id, assessment_id, user_id, status, score, max_score, percentage, passed, late, started_at, submitted_at, graded_at, graded_by"

func scanAttempt(row scanner) (models.Attempt, error) {
	var a models.Attempt
	var submittedAt, gradedAt sql.NullTime
	var gradedBy sql.NullString
	err := row.Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.Status, &a.Score, &a.MaxScore, &a.Percentage, &a.Passed, &a.Late,
		&a.StartedAt, &submittedAt, &gradedAt, &gradedBy)
	if err != nil {
		return models.Attempt{}, err
	}
	a.SubmittedAt = timePtr(submittedAt)
	a.GradedAt = timePtr(gradedAt)
	a.GradedBy = nullString(gradedBy)
	return a, nil
}

// StartAttempt opens an attempt, or resumes the user's open one.
func (s *AssessmentService) StartAttempt(orgID, userID, assessmentID string) (models.Attempt, error) {
	a, err := s.getAssessment(s.db, orgID, assessmentID)
	if err != nil {
		return models.Attempt{}, err
	}
	if !a.IsPublished {
		return models.Attempt{}, fmt.Errorf("assessment '%s' is not published: %w", a.Title, ErrForbidden)
	}

	open, err := scanAttempt(s.db.QueryRow("SELECT "+attemptColumns+" FROM assessment_attempts WHERE assessment_id = ? AND user_id = ? AND status = ?",
		assessmentID, userID, models.AttemptInProgress))
	if err == nil {
		return open, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Attempt{}, err
	}

	attempt := models.Attempt{
		ID:           uuid.New().String(),
		AssessmentID: assessmentID,
		UserID:       userID,
		Status:       models.AttemptInProgress,
		StartedAt:    s.clock.Now().UTC(),
	}
	_, err = s.db.Exec("INSERT INTO assessment_attempts (id, assessment_id, user_id, status, started_at) VALUES (?, ?, ?, ?, ?)",
		attempt.ID, attempt.AssessmentID, attempt.UserID, attempt.Status, attempt.StartedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Attempt{}, fmt.Errorf("an attempt is already in progress: %w", ErrConflict)
		}
		return models.Attempt{}, err
	}
	return attempt, nil
}

// gradeObjective compares a response against the answer key.
func gradeObjective(q models.Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	switch q.Type {
	case models.QuestionMCQ:
		return answer == strings.TrimSpace(q.CorrectAnswer)
	case models.QuestionTrueFalse, models.QuestionFillBlank:
		return strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))
	}
	return false
}

// SubmitAttempt stores and auto-grades the user's answers. Descriptive answers stay pending
// for a trainer. Submissions past the time limit are accepted and flagged late.
func (s *AssessmentService) SubmitAttempt(orgID, userID, attemptID string, answers []models.SubmittedAnswer) (models.Attempt, error) {
	attempt, err := s.GetAttempt(orgID, attemptID)
	if err != nil {
		return models.Attempt{}, err
	}
	if attempt.UserID != userID {
		return models.Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrForbidden)
	}
	if attempt.Status != models.AttemptInProgress {
		return models.Attempt{}, fmt.Errorf("attempt was already submitted: %w", ErrConflict)
	}
	assessment, err := s.getAssessment(s.db, orgID, attempt.AssessmentID)
	if err != nil {
		return models.Attempt{}, err
	}
	questions, err := loadQuestions(s.db, attempt.AssessmentID)
	if err != nil {
		return models.Attempt{}, err
	}

	byQuestion := make(map[string]string, len(answers))
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	for _, a := range answers {
		if err := validateInput(a); err != nil {
			return models.Attempt{}, err
		}
		if !known[a.QuestionID] {
			return models.Attempt{}, fmt.Errorf("%w: question %s is not part of this assessment", ErrInvalid, a.QuestionID)
		}
		byQuestion[a.QuestionID] = a.Answer
	}

	now := s.clock.Now().UTC()
	late := assessment.TimeLimitMinutes > 0 && now.Sub(attempt.StartedAt).Minutes() > float64(assessment.TimeLimitMinutes)

	tx, err := s.db.Begin()
	if err != nil {
		return models.Attempt{}, err
	}
	defer tx.Rollback()

	pending := 0
	for _, q := range questions {
		answer := byQuestion[q.ID]
		var isCorrect *bool
		var points *int
		if q.Type.AutoGraded() {
			correct := gradeObjective(q, answer)
			awarded := 0
			if correct {
				awarded = q.Points
			}
			isCorrect, points = &correct, &awarded
		} else {
			pending++
		}
		if _, err := tx.Exec("INSERT INTO attempt_answers (id, attempt_id, question_id, answer, is_correct, points_awarded) VALUES (?, ?, ?, ?, ?, ?)",
			uuid.New().String(), attemptID, q.ID, answer, isCorrect, points); err != nil {
			return models.Attempt{}, err
		}
	}

	if _, err := tx.Exec("UPDATE assessment_attempts SET status = ?, submitted_at = ?, late = ? WHERE id = ?",
		models.AttemptSubmitted, now, late, attemptID); err != nil {
		return models.Attempt{}, err
	}

	var passed bool
	if pending == 0 {
		if passed, err = s.finalize(tx, orgID, assessment, attempt.UserID, attemptID, nil, now); err != nil {
			return models.Attempt{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Attempt{}, err
	}

	if pending == 0 {
		s.announceResult(orgID, assessment, attempt.UserID, passed)
	}
	return s.GetAttempt(orgID, attemptID)
}

// GradeAnswer scores one descriptive answer. Grading the last pending answer finalizes the attempt.
func (s *AssessmentService) GradeAnswer(orgID, graderID, attemptID, questionID string, points int, feedback string) (models.Attempt, error) {
	attempt, err := s.GetAttempt(orgID, attemptID)
	if err != nil {
		return models.Attempt{}, err
	}
	if attempt.Status != models.AttemptSubmitted {
		return models.Attempt{}, fmt.Errorf("attempt is %s, only submitted attempts can be graded: %w", attempt.Status, ErrConflict)
	}
	question, err := scanQuestion(s.db.QueryRow("SELECT "+questionColumns+" FROM questions WHERE id = ? AND assessment_id = ?", questionID, attempt.AssessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attempt{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return models.Attempt{}, err
	}
	if question.Type != models.QuestionDescriptive {
		return models.Attempt{}, fmt.Errorf("%w: only descriptive answers are graded manually", ErrInvalid)
	}
	if points < 0 || points > question.Points {
		return models.Attempt{}, fmt.Errorf("%w: points must be between 0 and %d", ErrInvalid, question.Points)
	}
	assessment, err := s.getAssessment(s.db, orgID, attempt.AssessmentID)
	if err != nil {
		return models.Attempt{}, err
	}

	now := s.clock.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return models.Attempt{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE attempt_answers SET points_awarded = ?, is_correct = ?, feedback = ? WHERE attempt_id = ? AND question_id = ?",
		points, points > 0, feedback, attemptID, questionID)
	if err != nil {
		return models.Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Attempt{}, fmt.Errorf("answer for question %s: %w", questionID, ErrNotFound)
	}
	metrics.AnswersManuallyGraded.Inc()

	var pending int
	if err := tx.QueryRow("SELECT COUNT(*) FROM attempt_answers WHERE attempt_id = ? AND points_awarded IS NULL", attemptID).Scan(&pending); err != nil {
		return models.Attempt{}, err
	}
	var passed bool
	if pending == 0 {
		if passed, err = s.finalize(tx, orgID, assessment, attempt.UserID, attemptID, &graderID, now); err != nil {
			return models.Attempt{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Attempt{}, err
	}

	if pending == 0 {
		s.eventService.CreateEvent(orgID, "attempt.graded", "info", fmt.Sprintf("Attempt on '%s' graded.", assessment.Title), &graderID)
		s.announceResult(orgID, assessment, attempt.UserID, passed)
	}
	return s.GetAttempt(orgID, attemptID)
}

// finalize totals the attempt and, on a pass, raises the linked skill.
func (s *AssessmentService) finalize(tx *sql.Tx, orgID string, assessment models.Assessment, userID, attemptID string, graderID *string, now time.Time) (bool, error) {
	var score, maxScore int
	err := tx.QueryRow(`SELECT COALESCE(SUM(ans.points_awarded), 0), COALESCE(SUM(q.points), 0)
		FROM attempt_answers ans JOIN questions q ON q.id = ans.question_id
		WHERE ans.attempt_id = ?`, attemptID).Scan(&score, &maxScore)
	if err != nil {
		return false, err
	}
	percentage := 0.0
	if maxScore > 0 {
		percentage = round2(float64(score) / float64(maxScore) * 100)
	}
	passed := percentage >= float64(assessment.PassingScore)

	_, err = tx.Exec("UPDATE assessment_attempts SET status = ?, score = ?, max_score = ?, percentage = ?, passed = ?, graded_at = ?, graded_by = ? WHERE id = ?",
		models.AttemptGraded, score, maxScore, percentage, passed, now, graderID, attemptID)
	if err != nil {
		return false, err
	}

	if passed && assessment.SkillID != nil {
		if _, err := raiseCurrentLevel(tx, orgID, userID, *assessment.SkillID, assessment.TargetLevel, models.SourceAssessment, graderID, now); err != nil {
			return false, fmt.Errorf("failed to update skill matrix: %w", err)
		}
	}

	result := "failed"
	if passed {
		result = "passed"
	}
	metrics.AttemptsFinalized.WithLabelValues(result).Inc()
	return passed, nil
}

func (s *AssessmentService) announceResult(orgID string, assessment models.Assessment, userID string, passed bool) {
	msg := fmt.Sprintf("You did not pass '%s'.", assessment.Title)
	if passed {
		msg = fmt.Sprintf("You passed '%s'.", assessment.Title)
	}
	notifyUser(s.notifications, orgID, userID, "assessment.result", msg)
}

// GetAttempt returns an attempt with its answers.
func (s *AssessmentService) GetAttempt(orgID, attemptID string) (models.Attempt, error) {
	attempt, err := scanAttempt(s.db.QueryRow(`SELECT at.id, at.assessment_id, at.user_id, at.status, at.score, at.max_score, at.percentage, at.passed, at.late,
		at.started_at, at.submitted_at, at.graded_at, at.graded_by
		FROM assessment_attempts at JOIN assessments a ON a.id = at.assessment_id
		WHERE at.id = ? AND a.organization_id = ?`, attemptID, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if err != nil {
		return models.Attempt{}, err
	}

	rows, err := s.db.Query(`SELECT ans.id, ans.attempt_id, ans.question_id, ans.answer, ans.is_correct, ans.points_awarded, ans.feedback
		FROM attempt_answers ans JOIN questions q ON q.id = ans.question_id
		WHERE ans.attempt_id = ? ORDER BY q.position`, attemptID)
	if err != nil {
		return models.Attempt{}, err
	}
	defer rows.Close()

	attempt.Answers = []models.Answer{}
	for rows.Next() {
		var a models.Answer
		var isCorrect sql.NullBool
		var points sql.NullInt64
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.Answer, &isCorrect, &points, &a.Feedback); err != nil {
			return models.Attempt{}, err
		}
		if isCorrect.Valid {
			v := isCorrect.Bool
			a.IsCorrect = &v
		}
		if points.Valid {
			v := int(points.Int64)
			a.PointsAwarded = &v
		}
		attempt.Answers = append(attempt.Answers, a)
	}
	return attempt, rows.Err()
}

// ListMyAttempts lists the user's attempts, newest first.
func (s *AssessmentService) ListMyAttempts(orgID, userID string) ([]models.Attempt, error) {
	rows, err := s.db.Query(`SELECT at.id, at.assessment_id, at.user_id, at.status, at.score, at.max_score, at.percentage, at.passed, at.late,
		at.started_at, at.submitted_at, at.graded_at, at.graded_by
		FROM assessment_attempts at JOIN assessments a ON a.id = at.assessment_id
		WHERE at.user_id = ? AND a.organization_id = ? ORDER BY at.started_at DESC`, userID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []models.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// PendingGrading lists submitted attempts that still have descriptive answers to grade.
func (s *AssessmentService) PendingGrading(orgID string) ([]models.PendingAttempt, error) {
	rows, err := s.db.Query(`SELECT at.id, at.assessment_id, a.title, at.user_id, u.name, COUNT(ans.id), at.submitted_at
		FROM assessment_attempts at
		JOIN assessments a ON a.id = at.assessment_id
		JOIN users u ON u.id = at.user_id
		LEFT JOIN attempt_answers ans ON ans.attempt_id = at.id AND ans.points_awarded IS NULL
		WHERE a.organization_id = ? AND at.status = ?
		GROUP BY at.id
		ORDER BY at.submitted_at`, orgID, models.AttemptSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := []models.PendingAttempt{}
	for rows.Next() {
		var p models.PendingAttempt
		if err := rows.Scan(&p.AttemptID, &p.AssessmentID, &p.AssessmentTitle, &p.UserID, &p.UserName, &p.PendingAnswers, &p.SubmittedAt); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
