package export

import (
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/isdelr/skill-loop-be/internal/models"
)

const productID = "-//Skill Loop//Trainings//EN"

// TrainingsICS renders offline trainings as a calendar. Trainings without a schedule are skipped.
func TrainingsICS(name string, trainings []models.Training, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, t := range trainings {
		if t.Mode != models.TrainingOffline || t.StartsAt == nil || t.EndsAt == nil {
			continue
		}
		event := cal.AddEvent(t.ID + "@skill-loop")
		event.SetDtStampTime(now.UTC())
		event.SetCreatedTime(t.CreatedAt.UTC())
		event.SetStartAt(t.StartsAt.UTC())
		event.SetEndAt(t.EndsAt.UTC())
		event.SetSummary(t.Title)
		if t.Location != "" {
			event.SetLocation(t.Location)
		}
		if t.Description != "" {
			event.SetDescription(t.Description)
		}
	}
	return cal.Serialize()
}
