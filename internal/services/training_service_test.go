package services

import (
	"testing"
	"time"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlineTraining(skillID *string) TrainingInput {
	return TrainingInput{
		Title:       "Go Fundamentals",
		Mode:        models.TrainingOnline,
		SkillID:     skillID,
		TargetLevel: models.LevelIntermediate,
		URL:         "https://learn.test/go",
		Location:    "ignored",
	}
}

func TestTrainingModeRules(t *testing.T) {
	f := newFixture(t)
	start := testEpoch.Add(48 * time.Hour)
	end := start.Add(3 * time.Hour)

	tests := []struct {
		name  string
		input TrainingInput
		want  error
	}{
		{"online without url", TrainingInput{Title: "A", Mode: models.TrainingOnline, TargetLevel: models.LevelBeginner}, ErrInvalid},
		{"malformed url", TrainingInput{Title: "A", Mode: models.TrainingOnline, TargetLevel: models.LevelBeginner, URL: "not a url"}, ErrInvalid},
		{"offline without location", TrainingInput{Title: "B", Mode: models.TrainingOffline, TargetLevel: models.LevelBeginner, StartsAt: &start, EndsAt: &end}, ErrInvalid},
		{"offline without schedule", TrainingInput{Title: "C", Mode: models.TrainingOffline, TargetLevel: models.LevelBeginner, Location: "Room 1"}, ErrInvalid},
		{"offline ends before start", TrainingInput{Title: "D", Mode: models.TrainingOffline, TargetLevel: models.LevelBeginner, Location: "Room 1", StartsAt: &end, EndsAt: &start}, ErrInvalid},
		{"unknown mode", TrainingInput{Title: "E", Mode: "HYBRID", TargetLevel: models.LevelBeginner}, ErrInvalid},
		{"unknown skill", TrainingInput{Title: "F", Mode: models.TrainingOnline, TargetLevel: models.LevelBeginner, URL: "https://x.test", SkillID: strPtr("missing")}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	online, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, onlineTraining(nil))
	require.NoError(t, err)
	assert.Empty(t, online.Location, "online trainings drop the location")
	assert.Nil(t, online.SkillID)

	workshop, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, TrainingInput{
		Title: "SQL Workshop", Mode: models.TrainingOffline, TargetLevel: models.LevelAdvanced,
		Location: "HQ Room 4", StartsAt: &start, EndsAt: &end, DurationHours: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "HQ Room 4", workshop.Location)
	require.NotNil(t, workshop.StartsAt)
	assert.True(t, start.Equal(*workshop.StartsAt))
}

func TestAssignTrainingSkipsExistingAssignees(t *testing.T) {
	f := newFixture(t)
	eve := f.addUser(t, "eve@acme.test", models.RoleEmployee, nil, nil)
	bob := f.addUser(t, "bob@acme.test", models.RoleEmployee, nil, nil)
	sam := f.addUser(t, "sam@acme.test", models.RoleEmployee, nil, nil)
	course, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, onlineTraining(nil))
	require.NoError(t, err)

	created, err := f.trainings.AssignTraining(f.org.ID, f.admin.ID, course.ID, AssignInput{UserIDs: []string{eve.ID, bob.ID}})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, a := range created {
		assert.Equal(t, models.AssignmentAssigned, a.Status)
		require.NotNil(t, a.DueDate)
		assert.WithinDuration(t, testEpoch.AddDate(0, 0, 14), *a.DueDate, time.Second, "defaults to default_due_days")
	}

	due := testEpoch.Add(72 * time.Hour)
	created, err = f.trainings.AssignTraining(f.org.ID, f.admin.ID, course.ID, AssignInput{UserIDs: []string{eve.ID, sam.ID}, DueDate: &due})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, sam.ID, created[0].UserID)
	assert.WithinDuration(t, due, *created[0].DueDate, time.Second)

	assert.Equal(t, 1, f.notifier.count(eve.ID))
	assert.Equal(t, 1, f.notifier.count(sam.ID))

	past := testEpoch.Add(-time.Hour)
	_, err = f.trainings.AssignTraining(f.org.ID, f.admin.ID, course.ID, AssignInput{UserIDs: []string{bob.ID}, DueDate: &past})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.trainings.AssignTraining(f.org.ID, f.admin.ID, course.ID, AssignInput{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.trainings.AssignTraining(f.org.ID, f.admin.ID, course.ID, AssignInput{UserIDs: []string{"missing"}})
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := f.trainings.ListAssignments(f.org.ID, models.AssignmentFilter{TrainingID: course.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAssignmentLifecycleAndOverdue(t *testing.T) {
	f := newFixture(t)
	eve := f.addUser(t, "eve@acme.test", models.RoleEmployee, nil, nil)
	bob := f.addUser(t, "bob@acme.test", models.RoleEmployee, nil, nil)
	course, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, onlineTraining(nil))
	require.NoError(t, err)

	created, err := f.trainings.AssignTraining(f.org.ID, f.admin.ID, course.ID, AssignInput{UserIDs: []string{eve.ID, bob.ID}})
	require.NoError(t, err)
	var eveAssignment, bobAssignment models.Assignment
	for _, a := range created {
		if a.UserID == eve.ID {
			eveAssignment = a
		} else {
			bobAssignment = a
		}
	}

	_, err = f.trainings.StartAssignment(f.org.ID, bob.ID, eveAssignment.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	started, err := f.trainings.StartAssignment(f.org.ID, eve.ID, eveAssignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)

	n, err := f.trainings.MarkOverdueAssignments(testEpoch.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(15 * 24 * time.Hour)
	n, err = f.trainings.MarkOverdueAssignments(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// One push for the assignment, one for the overdue notice.
	assert.Equal(t, 2, f.notifier.count(eve.ID))

	n, err = f.trainings.MarkOverdueAssignments(f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "already overdue assignments are not marked twice")

	late, err := f.trainings.StartAssignment(f.org.ID, bob.ID, bobAssignment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentOverdue, late.Status)
	assert.NotNil(t, late.StartedAt)

	overdue, err := f.trainings.ListAssignments(f.org.ID, models.AssignmentFilter{Status: models.AssignmentOverdue})
	require.NoError(t, err)
	assert.Len(t, overdue, 2)

	mine, err := f.trainings.ListMyAssignments(f.org.ID, eve.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Go Fundamentals", mine[0].TrainingTitle)
}

func TestAssignFromGaps(t *testing.T) {
	f := newFixture(t)
	goSkill := f.addSkill(t, "Go")
	sqlSkill := f.addSkill(t, "SQL")
	eve := f.addUser(t, "eve@acme.test", models.RoleEmployee, nil, nil)

	_, err := f.matrix.AssessEmployee(f.org.ID, f.admin.ID, eve.ID, []MatrixEntryInput{
		{SkillID: goSkill.ID, CurrentLevel: models.LevelAdvanced, DesiredLevel: levelPtr(models.LevelAdvanced)},
		{SkillID: sqlSkill.ID, CurrentLevel: models.LevelBeginner, DesiredLevel: levelPtr(models.LevelAdvanced)},
	})
	require.NoError(t, err)

	_, err = f.trainings.CreateTraining(f.org.ID, f.admin.ID, onlineTraining(&goSkill.ID))
	require.NoError(t, err)
	sqlCourse := onlineTraining(&sqlSkill.ID)
	sqlCourse.Title = "SQL Basics"
	sqlTraining, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, sqlCourse)
	require.NoError(t, err)

	created, err := f.trainings.AssignFromGaps(f.org.ID, f.admin.ID, eve.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, sqlTraining.ID, created[0].TrainingID)

	created, err = f.trainings.AssignFromGaps(f.org.ID, f.admin.ID, eve.ID)
	require.NoError(t, err)
	assert.Empty(t, created, "existing assignments are not duplicated")
}

func TestListMyOfflineTrainings(t *testing.T) {
	f := newFixture(t)
	eve := f.addUser(t, "eve@acme.test", models.RoleEmployee, nil, nil)
	start := testEpoch.Add(24 * time.Hour)
	end := start.Add(2 * time.Hour)

	online, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, onlineTraining(nil))
	require.NoError(t, err)
	workshop, err := f.trainings.CreateTraining(f.org.ID, f.admin.ID, TrainingInput{
		Title: "SQL Workshop", Mode: models.TrainingOffline, TargetLevel: models.LevelAdvanced,
		Location: "HQ Room 4", StartsAt: &start, EndsAt: &end,
	})
	require.NoError(t, err)

	for _, id := range []string{online.ID, workshop.ID} {
		_, err := f.trainings.AssignTraining(f.org.ID, f.admin.ID, id, AssignInput{UserIDs: []string{eve.ID}})
		require.NoError(t, err)
	}

	offline, err := f.trainings.ListMyOfflineTrainings(f.org.ID, eve.ID)
	require.NoError(t, err)
	require.Len(t, offline, 1)
	assert.Equal(t, workshop.ID, offline[0].ID)
}
