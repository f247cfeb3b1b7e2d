// Package export renders reports as CSV and trainings as iCalendar files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/skill-loop-be/internal/models"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// TNASkillsCSV writes one row per skill of the training needs analysis.
func TNASkillsCSV(w io.Writer, report models.TNAReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"skill", "category", "employees_assessed", "employees_with_gap", "average_gap_percent", "priority", "recommended_trainings"}); err != nil {
		return err
	}
	for _, row := range report.BySkill {
		titles := make([]string, len(row.RecommendedTrainings))
		for i, t := range row.RecommendedTrainings {
			titles[i] = t.Title
		}
		record := []string{
			row.SkillName,
			row.CategoryName,
			strconv.Itoa(row.EmployeesAssessed),
			strconv.Itoa(row.EmployeesWithGap),
			formatFloat(row.AverageGap),
			string(row.Priority),
			strings.Join(titles, "; "),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MatrixCSV writes an employee's skill matrix with per-skill gaps.
func MatrixCSV(w io.Writer, entries []models.SkillMatrixEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"skill", "category", "current_level", "desired_level", "gap_levels", "gap_percent", "source", "assessed_at", "notes"}); err != nil {
		return err
	}
	for _, e := range entries {
		current := ""
		if e.CurrentLevel != nil {
			current = string(*e.CurrentLevel)
		}
		assessed := ""
		if e.AssessedAt != nil {
			assessed = e.AssessedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			e.SkillName,
			e.CategoryName,
			current,
			string(e.DesiredLevel),
			strconv.Itoa(e.Gap.Levels),
			formatFloat(e.Gap.Percent),
			string(e.Source),
			assessed,
			e.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
