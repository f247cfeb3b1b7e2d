package services

import (
	"testing"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateGap(t *testing.T) {
	tests := []struct {
		name    string
		current *models.SkillLevel
		desired models.SkillLevel
		want    models.Gap
	}{
		{"unassessed", nil, models.LevelAdvanced, models.Gap{Levels: 3, Percent: 100}},
		{"met", levelPtr(models.LevelAdvanced), models.LevelAdvanced, models.Gap{}},
		{"exceeded", levelPtr(models.LevelExpert), models.LevelBeginner, models.Gap{}},
		{"half", levelPtr(models.LevelIntermediate), models.LevelExpert, models.Gap{Levels: 2, Percent: 50}},
		{"two thirds", levelPtr(models.LevelBeginner), models.LevelAdvanced, models.Gap{Levels: 2, Percent: 66.67}},
		{"three quarters", levelPtr(models.LevelBeginner), models.LevelExpert, models.Gap{Levels: 3, Percent: 75}},
		{"unknown desired", nil, models.SkillLevel("GURU"), models.Gap{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateGap(tt.current, tt.desired))
		})
	}
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, models.PriorityHigh, PriorityFor(50, 50))
	assert.Equal(t, models.PriorityHigh, PriorityFor(100, 50))
	assert.Equal(t, models.PriorityMedium, PriorityFor(25, 50))
	assert.Equal(t, models.PriorityMedium, PriorityFor(49.99, 50))
	assert.Equal(t, models.PriorityLow, PriorityFor(24.99, 50))
	assert.Equal(t, models.PriorityLow, PriorityFor(0, 50))
}

// matrixFixture has a Backend role requiring Go=EXPERT and SQL=ADVANCED.
type matrixFixture struct {
	*fixture
	goSkill  models.Skill
	sqlSkill models.Skill
	role     models.JobRole
}

func newMatrixFixture(t *testing.T) *matrixFixture {
	t.Helper()
	f := &matrixFixture{fixture: newFixture(t)}
	f.goSkill = f.addSkill(t, "Go")
	f.sqlSkill = f.addSkill(t, "SQL")

	var err error
	f.role, err = f.roles.CreateJobRole(f.org.ID, f.admin.ID, JobRoleInput{Title: "Backend Engineer"})
	require.NoError(t, err)
	f.role, err = f.roles.ReplaceCompetencies(f.org.ID, f.admin.ID, f.role.ID, []CompetencyInput{
		{SkillID: f.goSkill.ID, RequiredLevel: models.LevelExpert},
		{SkillID: f.sqlSkill.ID, RequiredLevel: models.LevelAdvanced},
	})
	require.NoError(t, err)
	return f
}

func entryFor(t *testing.T, entries []models.SkillMatrixEntry, skillID string) models.SkillMatrixEntry {
	t.Helper()
	for _, e := range entries {
		if e.SkillID == skillID {
			return e
		}
	}
	t.Fatalf("no matrix entry for skill %s", skillID)
	return models.SkillMatrixEntry{}
}

func TestAssessEmployeeDesiredLevelFallback(t *testing.T) {
	f := newMatrixFixture(t)
	emp := f.addUser(t, "eve@acme.test", models.RoleEmployee, &f.role.ID, nil)
	noRole := f.addUser(t, "ned@acme.test", models.RoleEmployee, nil, nil)
	manager := f.addUser(t, "mia@acme.test", models.RoleManager, nil, nil)

	entries, err := f.matrix.AssessEmployee(f.org.ID, manager.ID, emp.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelIntermediate},
		{SkillID: f.sqlSkill.ID, CurrentLevel: models.LevelBeginner, DesiredLevel: levelPtr(models.LevelIntermediate), Notes: "pairing on queries"},
	})
	require.NoError(t, err)

	goEntry := entryFor(t, entries, f.goSkill.ID)
	assert.Equal(t, models.LevelExpert, goEntry.DesiredLevel, "falls back to the role competency")
	assert.Equal(t, models.SourceManual, goEntry.Source)
	assert.Equal(t, models.Gap{Levels: 2, Percent: 50}, goEntry.Gap)
	require.NotNil(t, goEntry.AssessedBy)
	assert.Equal(t, manager.ID, *goEntry.AssessedBy)

	sqlEntry := entryFor(t, entries, f.sqlSkill.ID)
	assert.Equal(t, models.LevelIntermediate, sqlEntry.DesiredLevel, "explicit desired level wins")
	assert.Equal(t, "pairing on queries", sqlEntry.Notes)

	entries, err = f.matrix.AssessEmployee(f.org.ID, manager.ID, noRole.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelAdvanced},
	})
	require.NoError(t, err)
	assert.Equal(t, models.LevelAdvanced, entryFor(t, entries, f.goSkill.ID).DesiredLevel, "no target means no gap")
	assert.Zero(t, entryFor(t, entries, f.goSkill.ID).Gap.Levels)
}

func TestAssessEmployeeRejectsBadInput(t *testing.T) {
	f := newMatrixFixture(t)
	emp := f.addUser(t, "eve@acme.test", models.RoleEmployee, nil, nil)

	_, err := f.matrix.AssessEmployee(f.org.ID, f.admin.ID, emp.ID, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, emp.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: "GURU"},
	})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, emp.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelBeginner},
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelExpert},
	})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, emp.ID, []MatrixEntryInput{
		{SkillID: "missing", CurrentLevel: models.LevelBeginner},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, "missing", []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelBeginner},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncFromRoleKeepsCurrentLevels(t *testing.T) {
	f := newMatrixFixture(t)
	emp := f.addUser(t, "eve@acme.test", models.RoleEmployee, &f.role.ID, nil)

	_, err := f.matrix.AssessEmployee(f.org.ID, f.admin.ID, emp.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelAdvanced, DesiredLevel: levelPtr(models.LevelAdvanced)},
	})
	require.NoError(t, err)

	_, err = f.roles.ReplaceCompetencies(f.org.ID, f.admin.ID, f.role.ID, []CompetencyInput{
		{SkillID: f.goSkill.ID, RequiredLevel: models.LevelExpert},
		{SkillID: f.sqlSkill.ID, RequiredLevel: models.LevelExpert},
	})
	require.NoError(t, err)

	n, err := f.matrix.SyncFromRole(f.org.ID, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := f.matrix.GetMatrix(f.org.ID, emp.ID)
	require.NoError(t, err)
	goEntry := entryFor(t, entries, f.goSkill.ID)
	require.NotNil(t, goEntry.CurrentLevel)
	assert.Equal(t, models.LevelAdvanced, *goEntry.CurrentLevel)
	assert.Equal(t, models.LevelExpert, goEntry.DesiredLevel)
	assert.Equal(t, models.SourceManual, goEntry.Source, "an assessed row keeps its source")

	sqlEntry := entryFor(t, entries, f.sqlSkill.ID)
	assert.Nil(t, sqlEntry.CurrentLevel)
	assert.Equal(t, models.LevelExpert, sqlEntry.DesiredLevel)
	assert.Equal(t, models.SourceRole, sqlEntry.Source)

	noRole := f.addUser(t, "ned@acme.test", models.RoleEmployee, nil, nil)
	n, err = f.matrix.SyncFromRole(f.org.ID, noRole.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncFromRoleRejectsForeignUser(t *testing.T) {
	f := newMatrixFixture(t)
	other, otherAdmin, err := f.orgs.CreateOrganization(OrganizationInput{Name: "Globex", Slug: "globex", AdminEmail: "boss@globex.test", AdminName: "Boss"})
	require.NoError(t, err)

	category, err := f.skills.CreateCategory(other.ID, otherAdmin.ID, CategoryInput{Name: "Technical"})
	require.NoError(t, err)
	rust, err := f.skills.CreateSkill(other.ID, otherAdmin.ID, SkillInput{CategoryID: category.ID, Name: "Rust"})
	require.NoError(t, err)
	role, err := f.roles.CreateJobRole(other.ID, otherAdmin.ID, JobRoleInput{Title: "Systems Engineer"})
	require.NoError(t, err)
	_, err = f.roles.ReplaceCompetencies(other.ID, otherAdmin.ID, role.ID, []CompetencyInput{{SkillID: rust.ID, RequiredLevel: models.LevelExpert}})
	require.NoError(t, err)
	victim, err := f.users.CreateUser(other.ID, otherAdmin.ID, UserInput{
		Email: "vic@globex.test", Name: "Vic", Role: models.RoleEmployee, JobRoleID: &role.ID, EmployeeType: models.EmployeeExisting,
	})
	require.NoError(t, err)

	n, err := f.matrix.SyncFromRole(f.org.ID, victim.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, n)

	var rows int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM skill_matrix WHERE user_id = ? AND organization_id = ?", victim.ID, f.org.ID).Scan(&rows))
	assert.Zero(t, rows, "no rows are tagged with the caller's organization")

	n, err = f.matrix.SyncFromRole(other.ID, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmployeeGapReport(t *testing.T) {
	f := newMatrixFixture(t)
	emp := f.addUser(t, "eve@acme.test", models.RoleEmployee, &f.role.ID, nil)

	_, err := f.matrix.AssessEmployee(f.org.ID, f.admin.ID, emp.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelAdvanced},
	})
	require.NoError(t, err)

	report, err := f.matrix.EmployeeGapReport(f.org.ID, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", report.Department)
	assert.Equal(t, 50, report.CriticalCutoff)
	require.Len(t, report.Entries, 2)
	// Go: ADVANCED of EXPERT is 25%. SQL is unassessed so 100%.
	assert.Equal(t, 62.5, report.AverageGap)
	assert.Equal(t, 2, report.SkillsWithGap)
	assert.Equal(t, 1, report.CriticalGaps)

	_, err = f.orgs.UpdateConfig(f.org.ID, f.admin.ID, map[string]int{models.ConfigCriticalGapPercent: 20})
	require.NoError(t, err)
	report, err = f.matrix.EmployeeGapReport(f.org.ID, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CriticalGaps)

	_, err = f.matrix.EmployeeGapReport(f.org.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrainingNeedsAnalysis(t *testing.T) {
	f := newMatrixFixture(t)
	eve := f.addUser(t, "eve@acme.test", models.RoleEmployee, &f.role.ID, nil)
	bob := f.addUser(t, "bob@acme.test", models.RoleEmployee, &f.role.ID, nil)
	sales, err := f.users.CreateUser(f.org.ID, f.admin.ID, UserInput{
		Email: "sam@acme.test", Name: "Sam", Role: models.RoleEmployee, EmployeeType: models.EmployeeExisting,
	})
	require.NoError(t, err)
	gone := f.addUser(t, "gone@acme.test", models.RoleEmployee, &f.role.ID, nil)

	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, eve.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelExpert},
		{SkillID: f.sqlSkill.ID, CurrentLevel: models.LevelAdvanced},
	})
	require.NoError(t, err)
	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, bob.ID, []MatrixEntryInput{
		{SkillID: f.goSkill.ID, CurrentLevel: models.LevelIntermediate},
		{SkillID: f.sqlSkill.ID, CurrentLevel: models.LevelBeginner},
	})
	require.NoError(t, err)
	_, err = f.matrix.AssessEmployee(f.org.ID, f.admin.ID, sales.ID, []MatrixEntryInput{
		{SkillID: f.sqlSkill.ID, CurrentLevel: models.LevelBeginner, DesiredLevel: levelPtr(models.LevelIntermediate)},
	})
	require.NoError(t, err)

	inactive := false
	_, err = f.users.UpdateUser(f.org.ID, f.admin.ID, gone.ID, UserInput{
		Email: gone.Email, Name: gone.Name, Role: gone.Role, EmployeeType: gone.EmployeeType, JobRoleID: &f.role.ID, IsActive: &inactive,
	})
	require.NoError(t, err)

	course, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, TrainingInput{
		Title: "SQL Deep Dive", Mode: models.TrainingOnline, SkillID: &f.sqlSkill.ID, TargetLevel: models.LevelAdvanced, URL: "https://learn.test/sql",
	})
	require.NoError(t, err)

	report, err := f.matrix.TrainingNeedsAnalysis(f.org.ID, models.TNAFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Employees, "inactive employees are excluded")
	assert.Equal(t, testEpoch, report.GeneratedAt)

	require.Len(t, report.BySkill, 2)
	// SQL gaps: eve 0, bob 66.67, sam 50. Go gaps: eve 0, bob 50.
	sqlRow := report.BySkill[0]
	assert.Equal(t, "SQL", sqlRow.SkillName)
	assert.Equal(t, 3, sqlRow.EmployeesAssessed)
	assert.Equal(t, 2, sqlRow.EmployeesWithGap)
	assert.Equal(t, 38.89, sqlRow.AverageGap)
	assert.Equal(t, models.PriorityMedium, sqlRow.Priority)
	require.Len(t, sqlRow.RecommendedTrainings, 1)
	assert.Equal(t, course.ID, sqlRow.RecommendedTrainings[0].ID)

	goRow := report.BySkill[1]
	assert.Equal(t, "Go", goRow.SkillName)
	assert.Equal(t, 25.0, goRow.AverageGap)
	assert.Empty(t, goRow.RecommendedTrainings)

	require.Len(t, report.ByDepartment, 2)
	assert.Equal(t, "Unassigned", report.ByDepartment[0].Label)
	assert.Equal(t, 50.0, report.ByDepartment[0].AverageGap)
	assert.Equal(t, models.PriorityHigh, report.ByDepartment[0].Priority)
	assert.Equal(t, "Engineering", report.ByDepartment[1].Label)
	assert.Equal(t, 2, report.ByDepartment[1].Employees)
	assert.Equal(t, 1, report.ByDepartment[1].EmployeesWithGap)

	require.Len(t, report.ByJobRole, 2)
	assert.Equal(t, "No job role", report.ByJobRole[0].Label)
	assert.Equal(t, "Backend Engineer", report.ByJobRole[1].Label)

	filtered, err := f.matrix.TrainingNeedsAnalysis(f.org.ID, models.TNAFilter{Department: "Engineering"})
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.Employees)
	require.Len(t, filtered.ByDepartment, 1)
}
