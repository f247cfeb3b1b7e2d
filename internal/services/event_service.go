package services

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for activity event services.
type EventServiceProvider interface {
	CreateEvent(orgID, eventType, level, message string, actorID *string) error
	GetRecentEvents(orgID string, limit int) ([]models.Event, error)
}

// EventService records an audit trail of mutations per organization.
type EventService struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, clock clockwork.Clock) *EventService {
	return &EventService{db: db, clock: clock}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(orgID, eventType, level, message string, actorID *string) error {
	event := models.Event{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Type:           eventType,
		Level:          level,
		Message:        message,
		ActorID:        actorID,
		CreatedAt:      s.clock.Now().UTC(),
	}

	_, err := s.db.Exec("INSERT INTO events (id, organization_id, type, level, message, actor_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		event.ID, event.OrganizationID, event.Type, event.Level, event.Message, event.ActorID, event.CreatedAt)
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
	return err
}

// GetRecentEvents retrieves the most recent events for an organization.
func (s *EventService) GetRecentEvents(orgID string, limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, organization_id, type, level, message, actor_id, created_at FROM events WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?", orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var actorID sql.NullString
		if err := rows.Scan(&event.ID, &event.OrganizationID, &event.Type, &event.Level, &event.Message, &actorID, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.ActorID = nullString(actorID)
		events = append(events, event)
	}
	return events, rows.Err()
}
