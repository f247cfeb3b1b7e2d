package models

import (
	"encoding/json"
	"time"
)

// QuestionType selects how an answer is graded.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionFillBlank   QuestionType = "FILL_BLANK"
	QuestionDescriptive QuestionType = "DESCRIPTIVE"
)

// AutoGraded reports whether answers to this type are graded by string comparison.
func (t QuestionType) AutoGraded() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse || t == QuestionFillBlank
}

// Assessment is a test that can raise an employee's level in one skill.
type Assessment struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organizationId"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	SkillID          *string    `json:"skillId"`
	TargetLevel      SkillLevel `json:"targetLevel"`
	PassingScore     int        `json:"passingScore"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	IsPublished      bool       `json:"isPublished"`
	CreatedBy        *string    `json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	Questions        []Question `json:"questions,omitempty"`
}

// Question belongs to an assessment. CorrectAnswer is hidden from candidates.
type Question struct {
	ID            string       `json:"id"`
	AssessmentID  string       `json:"assessmentId"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	OptionsJSON   string       `json:"-"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Points        int          `json:"points"`
	Position      int          `json:"position"`
}

// PrepareForSave marshals the option slice for DB storage.
func (q *Question) PrepareForSave() {
	if q.Options == nil {
		q.OptionsJSON = "[]"
		return
	}
	optionsBytes, _ := json.Marshal(q.Options)
	q.OptionsJSON = string(optionsBytes)
}

// PrepareForAPI unmarshals the stored options.
func (q *Question) PrepareForAPI() {
	if q.OptionsJSON != "" {
		json.Unmarshal([]byte(q.OptionsJSON), &q.Options)
	}
}

// Redacted returns a copy without the answer key.
func (q Question) Redacted() Question {
	q.CorrectAnswer = ""
	return q
}

// AttemptStatus tracks an attempt through grading.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptGraded     AttemptStatus = "GRADED"
)

// Attempt is one employee sitting of an assessment.
type Attempt struct {
	ID           string        `json:"id"`
	AssessmentID string        `json:"assessmentId"`
	UserID       string        `json:"userId"`
	Status       AttemptStatus `json:"status"`
	Score        int           `json:"score"`
	MaxScore     int           `json:"maxScore"`
	Percentage   float64       `json:"percentage"`
	Passed       bool          `json:"passed"`
	Late         bool          `json:"late"`
	StartedAt    time.Time     `json:"startedAt"`
	SubmittedAt  *time.Time    `json:"submittedAt"`
	GradedAt     *time.Time    `json:"gradedAt"`
	GradedBy     *string       `json:"gradedBy"`
	Answers      []Answer      `json:"answers,omitempty"`
}

// Answer is a response to one question. IsCorrect and PointsAwarded stay nil until graded.
type Answer struct {
	ID            string `json:"id"`
	AttemptID     string `json:"attemptId"`
	QuestionID    string `json:"questionId"`
	Answer        string `json:"answer"`
	IsCorrect     *bool  `json:"isCorrect"`
	PointsAwarded *int   `json:"pointsAwarded"`
	Feedback      string `json:"feedback"`
}

// SubmittedAnswer is a candidate's raw answer for a question.
type SubmittedAnswer struct {
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer"`
}

// PendingAttempt is a submitted attempt that still has descriptive answers to grade.
type PendingAttempt struct {
	AttemptID       string    `json:"attemptId"`
	AssessmentID    string    `json:"assessmentId"`
	AssessmentTitle string    `json:"assessmentTitle"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	PendingAnswers  int       `json:"pendingAnswers"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// QuestionDraftRequest describes what a question generator should write.
type QuestionDraftRequest struct {
	AssessmentTitle string
	Description     string
	SkillName       string
	TargetLevel     SkillLevel
	Count           int
	Types           []QuestionType
}
