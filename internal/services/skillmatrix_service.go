package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
)

// MatrixEntryInput is one row of a manual assessment.
type MatrixEntryInput struct {
	SkillID      string             `json:"skillId" validate:"required"`
	CurrentLevel models.SkillLevel  `json:"currentLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	DesiredLevel *models.SkillLevel `json:"desiredLevel" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	Notes        string             `json:"notes" validate:"max=2000"`
}

// SkillMatrixServiceProvider defines the interface for skill matrix and gap analysis.
type SkillMatrixServiceProvider interface {
	GetMatrix(orgID, userID string) ([]models.SkillMatrixEntry, error)
	AssessEmployee(orgID, assessorID, userID string, entries []MatrixEntryInput) ([]models.SkillMatrixEntry, error)
	SyncFromRole(orgID, userID string) (int, error)
	EmployeeGapReport(orgID, userID string) (models.EmployeeGapReport, error)
	TrainingNeedsAnalysis(orgID string, filter models.TNAFilter) (models.TNAReport, error)
}

// SkillMatrixService keeps per-employee proficiency and derives gaps from it.
type SkillMatrixService struct {
	db           *sql.DB
	eventService EventServiceProvider
	clock        clockwork.Clock
}

// NewSkillMatrixService creates a new SkillMatrixService.
func NewSkillMatrixService(db *sql.DB, eventService EventServiceProvider, clock clockwork.Clock) *SkillMatrixService {
	return &SkillMatrixService{db: db, eventService: eventService, clock: clock}
}

// CalculateGap returns how far current is below desired.
// A missing current level is a 100% gap; meeting or exceeding desired is no gap.
func CalculateGap(current *models.SkillLevel, desired models.SkillLevel) models.Gap {
	d := desired.Rank()
	if d == 0 {
		return models.Gap{}
	}
	if current == nil {
		return models.Gap{Levels: d, Percent: 100}
	}
	c := current.Rank()
	if c >= d {
		return models.Gap{}
	}
	return models.Gap{Levels: d - c, Percent: round2(float64(d-c) / float64(d) * 100)}
}

// PriorityFor buckets an average gap against the critical threshold.
func PriorityFor(avgGap float64, criticalPercent int) models.Priority {
	switch {
	case avgGap >= float64(criticalPercent):
		return models.PriorityHigh
	case avgGap >= float64(criticalPercent)/2:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

const matrixSelect = `SELECT m.id, m.user_id, m.skill_id, sk.name, c.name, m.current_level, m.desired_level,
	m.source, m.assessed_by, m.assessed_at, m.notes, m.updated_at
	FROM skill_matrix m
	JOIN skills sk ON sk.id = m.skill_id
	JOIN skill_categories c ON c.id = sk.category_id`

func scanMatrixEntry(row scanner) (models.SkillMatrixEntry, error) {
	var e models.SkillMatrixEntry
	var current, assessedBy sql.NullString
	var assessedAt sql.NullTime
	err := row.Scan(&e.ID, &e.UserID, &e.SkillID, &e.SkillName, &e.CategoryName, &current, &e.DesiredLevel,
		&e.Source, &assessedBy, &assessedAt, &e.Notes, &e.UpdatedAt)
	if err != nil {
		return models.SkillMatrixEntry{}, err
	}
	if current.Valid {
		level := models.SkillLevel(current.String)
		e.CurrentLevel = &level
	}
	e.AssessedBy = nullString(assessedBy)
	e.AssessedAt = timePtr(assessedAt)
	e.Gap = CalculateGap(e.CurrentLevel, e.DesiredLevel)
	return e, nil
}

// GetMatrix returns an employee's matrix with gaps filled in.
func (s *SkillMatrixService) GetMatrix(orgID, userID string) ([]models.SkillMatrixEntry, error) {
	if err := ensureInOrg(s.db, "users", orgID, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(matrixSelect+" WHERE m.organization_id = ? AND m.user_id = ? ORDER BY c.name, sk.name", orgID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.SkillMatrixEntry{}
	for rows.Next() {
		e, err := scanMatrixEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AssessEmployee records manual current levels. A missing desired level falls back to
// the job role's required level, then to the existing row, then to the current level.
func (s *SkillMatrixService) AssessEmployee(orgID, assessorID, userID string, entries []MatrixEntryInput) ([]models.SkillMatrixEntry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: at least one skill is required", ErrInvalid)
	}
	if err := ensureInOrg(s.db, "users", orgID, userID); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := validateInput(e); err != nil {
			return nil, err
		}
		if seen[e.SkillID] {
			return nil, fmt.Errorf("%w: skill %s listed more than once", ErrInvalid, e.SkillID)
		}
		seen[e.SkillID] = true
		if err := ensureInOrg(s.db, "skills", orgID, e.SkillID); err != nil {
			return nil, err
		}
	}

	roleLevels, err := roleLevelsForUser(s.db, orgID, userID)
	if err != nil {
		return nil, err
	}
	existing, err := desiredLevelsForUser(s.db, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, e := range entries {
		desired := e.CurrentLevel
		switch {
		case e.DesiredLevel != nil:
			desired = *e.DesiredLevel
		case roleLevels[e.SkillID] != "":
			desired = roleLevels[e.SkillID]
		case existing[e.SkillID] != "":
			desired = existing[e.SkillID]
		}

		_, err := tx.Exec(`INSERT INTO skill_matrix (id, organization_id, user_id, skill_id, current_level, desired_level, source, assessed_by, assessed_at, notes, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, skill_id) DO UPDATE SET
				current_level = excluded.current_level,
				desired_level = excluded.desired_level,
				source = excluded.source,
				assessed_by = excluded.assessed_by,
				assessed_at = excluded.assessed_at,
				notes = excluded.notes,
				updated_at = excluded.updated_at`,
			uuid.New().String(), orgID, userID, e.SkillID, e.CurrentLevel, desired, models.SourceManual, assessorID, now, e.Notes, now)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.eventService.CreateEvent(orgID, "matrix.assess", "info", fmt.Sprintf("%d skills assessed for user %s.", len(entries), userID), &assessorID)
	return s.GetMatrix(orgID, userID)
}

// SyncFromRole copies the user's job role competencies into desired levels.
// Current levels are never touched. Returns the number of competencies applied.
func (s *SkillMatrixService) SyncFromRole(orgID, userID string) (int, error) {
	if err := ensureInOrg(s.db, "users", orgID, userID); err != nil {
		return 0, err
	}
	roleLevels, err := roleLevelsForUser(s.db, orgID, userID)
	if err != nil {
		return 0, err
	}
	if len(roleLevels) == 0 {
		return 0, nil
	}

	now := s.clock.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for skillID, level := range roleLevels {
		_, err := tx.Exec(`INSERT INTO skill_matrix (id, organization_id, user_id, skill_id, desired_level, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, skill_id) DO UPDATE SET
				desired_level = excluded.desired_level,
				source = CASE WHEN skill_matrix.current_level IS NULL THEN excluded.source ELSE skill_matrix.source END,
				updated_at = excluded.updated_at`,
			uuid.New().String(), orgID, userID, skillID, level, models.SourceRole, now)
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(roleLevels), nil
}

// EmployeeGapReport summarizes one employee's gaps.
func (s *SkillMatrixService) EmployeeGapReport(orgID, userID string) (models.EmployeeGapReport, error) {
	var report models.EmployeeGapReport
	err := s.db.QueryRow("SELECT id, name, department FROM users WHERE id = ? AND organization_id = ?", userID, orgID).
		Scan(&report.UserID, &report.UserName, &report.Department)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EmployeeGapReport{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return models.EmployeeGapReport{}, err
	}

	cfg, err := loadSystemConfig(s.db, orgID)
	if err != nil {
		return models.EmployeeGapReport{}, err
	}
	report.CriticalCutoff = cfg.Int(models.ConfigCriticalGapPercent)

	report.Entries, err = s.GetMatrix(orgID, userID)
	if err != nil {
		return models.EmployeeGapReport{}, err
	}

	var total float64
	for _, e := range report.Entries {
		total += e.Gap.Percent
		if e.Gap.Levels > 0 {
			report.SkillsWithGap++
		}
		if e.Gap.Percent > 0 && e.Gap.Percent >= float64(report.CriticalCutoff) {
			report.CriticalGaps++
		}
	}
	if len(report.Entries) > 0 {
		report.AverageGap = round2(total / float64(len(report.Entries)))
	}
	return report, nil
}

type tnaRow struct {
	userID     string
	department string
	roleID     string
	roleTitle  string
	skillID    string
	skillName  string
	category   string
	gap        models.Gap
}

type gapAccumulator struct {
	label   string
	total   float64
	entries int
	users   map[string]bool
	gapped  map[string]bool
}

func newAccumulator(label string) *gapAccumulator {
	return &gapAccumulator{label: label, users: map[string]bool{}, gapped: map[string]bool{}}
}

func (a *gapAccumulator) add(r tnaRow) {
	a.total += r.gap.Percent
	a.entries++
	a.users[r.userID] = true
	if r.gap.Levels > 0 {
		a.gapped[r.userID] = true
	}
}

func (a *gapAccumulator) average() float64 {
	if a.entries == 0 {
		return 0
	}
	return round2(a.total / float64(a.entries))
}

// TrainingNeedsAnalysis aggregates gaps of active employees by department, job role and skill.
func (s *SkillMatrixService) TrainingNeedsAnalysis(orgID string, filter models.TNAFilter) (models.TNAReport, error) {
	cfg, err := loadSystemConfig(s.db, orgID)
	if err != nil {
		return models.TNAReport{}, err
	}
	critical := cfg.Int(models.ConfigCriticalGapPercent)

	query := `SELECT u.id, u.department, COALESCE(jr.id, ''), COALESCE(jr.title, ''), sk.id, sk.name, c.name, m.current_level, m.desired_level
		FROM skill_matrix m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN job_roles jr ON jr.id = u.job_role_id
		JOIN skills sk ON sk.id = m.skill_id
		JOIN skill_categories c ON c.id = sk.category_id
		WHERE m.organization_id = ? AND u.is_active = 1`
	args := []any{orgID}
	if filter.Department != "" {
		query += " AND u.department = ?"
		args = append(args, filter.Department)
	}
	if filter.JobRoleID != "" {
		query += " AND u.job_role_id = ?"
		args = append(args, filter.JobRoleID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return models.TNAReport{}, err
	}
	var data []tnaRow
	for rows.Next() {
		var r tnaRow
		var current sql.NullString
		var desired models.SkillLevel
		if err := rows.Scan(&r.userID, &r.department, &r.roleID, &r.roleTitle, &r.skillID, &r.skillName, &r.category, &current, &desired); err != nil {
			rows.Close()
			return models.TNAReport{}, err
		}
		var cur *models.SkillLevel
		if current.Valid {
			level := models.SkillLevel(current.String)
			cur = &level
		}
		r.gap = CalculateGap(cur, desired)
		data = append(data, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.TNAReport{}, err
	}

	recommended, err := trainingsBySkill(s.db, orgID)
	if err != nil {
		return models.TNAReport{}, err
	}

	overall := newAccumulator("")
	byDept := map[string]*gapAccumulator{}
	byRole := map[string]*gapAccumulator{}
	bySkill := map[string]*gapAccumulator{}
	skillMeta := map[string]tnaRow{}

	for _, r := range data {
		overall.add(r)

		deptLabel := r.department
		if deptLabel == "" {
			deptLabel = "Unassigned"
		}
		if byDept[r.department] == nil {
			byDept[r.department] = newAccumulator(deptLabel)
		}
		byDept[r.department].add(r)

		roleLabel := r.roleTitle
		if roleLabel == "" {
			roleLabel = "No job role"
		}
		if byRole[r.roleID] == nil {
			byRole[r.roleID] = newAccumulator(roleLabel)
		}
		byRole[r.roleID].add(r)

		if bySkill[r.skillID] == nil {
			bySkill[r.skillID] = newAccumulator(r.skillName)
			skillMeta[r.skillID] = r
		}
		bySkill[r.skillID].add(r)
	}

	report := models.TNAReport{
		GeneratedAt:  s.clock.Now().UTC(),
		Employees:    len(overall.users),
		AverageGap:   overall.average(),
		ByDepartment: toGroups(byDept, critical),
		ByJobRole:    toGroups(byRole, critical),
		BySkill:      []models.TNASkillRow{},
	}

	for skillID, acc := range bySkill {
		meta := skillMeta[skillID]
		avg := acc.average()
		trainings := recommended[skillID]
		if trainings == nil {
			trainings = []models.TrainingBrief{}
		}
		report.BySkill = append(report.BySkill, models.TNASkillRow{
			SkillID:              skillID,
			SkillName:            meta.skillName,
			CategoryName:         meta.category,
			EmployeesAssessed:    len(acc.users),
			EmployeesWithGap:     len(acc.gapped),
			AverageGap:           avg,
			Priority:             PriorityFor(avg, critical),
			RecommendedTrainings: trainings,
		})
	}
	sort.Slice(report.BySkill, func(i, j int) bool {
		if report.BySkill[i].AverageGap != report.BySkill[j].AverageGap {
			return report.BySkill[i].AverageGap > report.BySkill[j].AverageGap
		}
		return report.BySkill[i].SkillName < report.BySkill[j].SkillName
	})
	return report, nil
}

func toGroups(accs map[string]*gapAccumulator, critical int) []models.TNAGroup {
	groups := make([]models.TNAGroup, 0, len(accs))
	for key, acc := range accs {
		avg := acc.average()
		groups = append(groups, models.TNAGroup{
			Key:              key,
			Label:            acc.label,
			Employees:        len(acc.users),
			EmployeesWithGap: len(acc.gapped),
			AverageGap:       avg,
			Priority:         PriorityFor(avg, critical),
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].AverageGap != groups[j].AverageGap {
			return groups[i].AverageGap > groups[j].AverageGap
		}
		return groups[i].Label < groups[j].Label
	})
	return groups
}

func trainingsBySkill(db *sql.DB, orgID string) (map[string][]models.TrainingBrief, error) {
	rows, err := db.Query("SELECT id, title, mode, skill_id FROM trainings WHERE organization_id = ? AND skill_id IS NOT NULL ORDER BY title", orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]models.TrainingBrief{}
	for rows.Next() {
		var t models.TrainingBrief
		var skillID string
		if err := rows.Scan(&t.ID, &t.Title, &t.Mode, &skillID); err != nil {
			return nil, err
		}
		out[skillID] = append(out[skillID], t)
	}
	return out, rows.Err()
}

func roleLevelsForUser(q dbtx, orgID, userID string) (map[string]models.SkillLevel, error) {
	rows, err := q.Query(`SELECT rc.skill_id, rc.required_level FROM role_competencies rc
		JOIN users u ON u.job_role_id = rc.job_role_id WHERE u.id = ? AND u.organization_id = ?`, userID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := map[string]models.SkillLevel{}
	for rows.Next() {
		var skillID string
		var level models.SkillLevel
		if err := rows.Scan(&skillID, &level); err != nil {
			return nil, err
		}
		levels[skillID] = level
	}
	return levels, rows.Err()
}

func desiredLevelsForUser(q dbtx, userID string) (map[string]models.SkillLevel, error) {
	rows, err := q.Query("SELECT skill_id, desired_level FROM skill_matrix WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := map[string]models.SkillLevel{}
	for rows.Next() {
		var skillID string
		var level models.SkillLevel
		if err := rows.Scan(&skillID, &level); err != nil {
			return nil, err
		}
		levels[skillID] = level
	}
	return levels, rows.Err()
}

// raiseCurrentLevel lifts a user's current level for a skill to at least target.
// It reports whether the row changed. Used when an assessment passes or a proof is approved.
func raiseCurrentLevel(q dbtx, orgID, userID, skillID string, target models.SkillLevel, source models.MatrixSource, actorID *string, now time.Time) (bool, error) {
	var current sql.NullString
	err := q.QueryRow("SELECT current_level FROM skill_matrix WHERE user_id = ? AND skill_id = ?", userID, skillID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := q.Exec(`INSERT INTO skill_matrix (id, organization_id, user_id, skill_id, current_level, desired_level, source, assessed_by, assessed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), orgID, userID, skillID, target, target, source, actorID, now, now)
		return err == nil, err
	case err != nil:
		return false, err
	}

	var cur *models.SkillLevel
	if current.Valid {
		level := models.SkillLevel(current.String)
		cur = &level
	}
	next := models.MaxLevel(cur, target)
	if cur != nil && *cur == next {
		return false, nil
	}
	_, err = q.Exec(`UPDATE skill_matrix SET current_level = ?, source = ?, assessed_by = ?, assessed_at = ?, updated_at = ?
		WHERE user_id = ? AND skill_id = ?`, next, source, actorID, now, now, userID, skillID)
	return err == nil, err
}

// orgAverageGap is the mean gap% across every matrix row of active employees.
func orgAverageGap(db *sql.DB, orgID string) (float64, error) {
	rows, err := db.Query(`SELECT m.current_level, m.desired_level FROM skill_matrix m
		JOIN users u ON u.id = m.user_id WHERE m.organization_id = ? AND u.is_active = 1`, orgID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total float64
	var n int
	for rows.Next() {
		var current sql.NullString
		var desired models.SkillLevel
		if err := rows.Scan(&current, &desired); err != nil {
			return 0, err
		}
		var cur *models.SkillLevel
		if current.Valid {
			level := models.SkillLevel(current.String)
			cur = &level
		}
		total += CalculateGap(cur, desired).Percent
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return round2(total / float64(n)), nil
}
