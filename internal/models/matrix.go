package models

import "time"

// MatrixSource records what last wrote a skill-matrix row.
type MatrixSource string

const (
	SourceManual     MatrixSource = "MANUAL"
	SourceRole       MatrixSource = "ROLE"
	SourceAssessment MatrixSource = "ASSESSMENT"
	SourceTraining   MatrixSource = "TRAINING"
)

// SkillMatrixEntry is one employee's current vs. desired proficiency for one skill.
type SkillMatrixEntry struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	SkillID      string       `json:"skillId"`
	SkillName    string       `json:"skillName"`
	CategoryName string       `json:"categoryName"`
	CurrentLevel *SkillLevel  `json:"currentLevel"`
	DesiredLevel SkillLevel   `json:"desiredLevel"`
	Source       MatrixSource `json:"source"`
	AssessedBy   *string      `json:"assessedBy"`
	AssessedAt   *time.Time   `json:"assessedAt"`
	Notes        string       `json:"notes"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Gap          Gap          `json:"gap"`
}

// Gap is the distance between current and desired level.
type Gap struct {
	Levels  int     `json:"levels"`
	Percent float64 `json:"percent"`
}

// EmployeeGapReport summarizes an employee's gaps across their matrix.
type EmployeeGapReport struct {
	UserID         string             `json:"userId"`
	UserName       string             `json:"userName"`
	Department     string             `json:"department"`
	Entries        []SkillMatrixEntry `json:"entries"`
	AverageGap     float64            `json:"averageGap"`
	SkillsWithGap  int                `json:"skillsWithGap"`
	CriticalGaps   int                `json:"criticalGaps"`
	CriticalCutoff int                `json:"criticalCutoff"`
}

// Priority buckets TNA rows.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// TNAFilter narrows the training needs analysis.
type TNAFilter struct {
	Department string
	JobRoleID  string
}

// TNAGroup aggregates gaps for a department or job role.
type TNAGroup struct {
	Key              string   `json:"key"`
	Label            string   `json:"label"`
	Employees        int      `json:"employees"`
	EmployeesWithGap int      `json:"employeesWithGap"`
	AverageGap       float64  `json:"averageGap"`
	Priority         Priority `json:"priority"`
}

// TNASkillRow aggregates gaps for one skill.
type TNASkillRow struct {
	SkillID              string          `json:"skillId"`
	SkillName            string          `json:"skillName"`
	CategoryName         string          `json:"categoryName"`
	EmployeesAssessed    int             `json:"employeesAssessed"`
	EmployeesWithGap     int             `json:"employeesWithGap"`
	AverageGap           float64         `json:"averageGap"`
	Priority             Priority        `json:"priority"`
	RecommendedTrainings []TrainingBrief `json:"recommendedTrainings"`
}

// TrainingBrief is a short reference to a training.
type TrainingBrief struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Mode  TrainingMode `json:"mode"`
}

// TNAReport is the organization-wide training needs analysis.
type TNAReport struct {
	GeneratedAt  time.Time     `json:"generatedAt"`
	Employees    int           `json:"employees"`
	AverageGap   float64       `json:"averageGap"`
	ByDepartment []TNAGroup    `json:"byDepartment"`
	ByJobRole    []TNAGroup    `json:"byJobRole"`
	BySkill      []TNASkillRow `json:"bySkill"`
}
