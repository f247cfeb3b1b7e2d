package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTNASkillsCSV(t *testing.T) {
	report := models.TNAReport{BySkill: []models.TNASkillRow{
		{
			SkillName: "SQL", CategoryName: "Technical", EmployeesAssessed: 3, EmployeesWithGap: 2,
			AverageGap: 38.888, Priority: models.PriorityMedium,
			RecommendedTrainings: []models.TrainingBrief{{Title: "SQL Basics"}, {Title: "Indexes, in depth"}},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, TNASkillsCSV(&buf, report))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "skill", records[0][0])
	assert.Equal(t, []string{"SQL", "Technical", "3", "2", "38.89", "MEDIUM", "SQL Basics; Indexes, in depth"}, records[1])
}

func TestMatrixCSV(t *testing.T) {
	current := models.LevelBeginner
	assessed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	entries := []models.SkillMatrixEntry{
		{SkillName: "Go", CategoryName: "Technical", CurrentLevel: &current, DesiredLevel: models.LevelAdvanced,
			Source: models.SourceManual, AssessedAt: &assessed, Notes: "pairing", Gap: models.Gap{Levels: 2, Percent: 66.666}},
		{SkillName: "SQL", CategoryName: "Technical", DesiredLevel: models.LevelExpert, Source: models.SourceRole,
			Gap: models.Gap{Levels: 4, Percent: 100}},
	}

	var buf bytes.Buffer
	require.NoError(t, MatrixCSV(&buf, entries))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Go", "Technical", "BEGINNER", "ADVANCED", "2", "66.67", "MANUAL", "2025-03-10T09:00:00Z", "pairing"}, records[1])
	assert.Equal(t, []string{"SQL", "Technical", "", "EXPERT", "4", "100.00", "ROLE", "", ""}, records[2])
}

func TestTrainingsICS(t *testing.T) {
	start := time.Date(2025, 4, 2, 13, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trainings := []models.Training{
		{ID: "t1", Title: "SQL Workshop", Mode: models.TrainingOffline, Location: "HQ Room 4", StartsAt: &start, EndsAt: &end, CreatedAt: now},
		{ID: "t2", Title: "Go Fundamentals", Mode: models.TrainingOnline, URL: "https://learn.test/go", CreatedAt: now},
	}

	out := TrainingsICS("My trainings", trainings, now)
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1, "online trainings are not calendar events")
	assert.Equal(t, "t1@skill-loop", events[0].Id())
	assert.Equal(t, "SQL Workshop", events[0].GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "HQ Room 4", events[0].GetProperty(ics.ComponentPropertyLocation).Value)

	gotStart, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(gotStart))
	assert.Contains(t, out, "X-WR-CALNAME:My trainings")
}
