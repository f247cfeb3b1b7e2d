package services

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/isdelr/skill-loop-be/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Notifier pushes a payload to every live connection of a user.
type Notifier interface {
	PushToUser(userID string, message []byte)
}

// NotificationServiceProvider defines the interface for notification services.
type NotificationServiceProvider interface {
	Notify(orgID, userID, notificationType, message string) error
	ListNotifications(userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(userID, notificationID string) error
	MarkAllRead(userID string) (int64, error)
}

// NotificationService stores per-user notifications and fans them out to websocket clients.
type NotificationService struct {
	db       *sql.DB
	notifier Notifier
	clock    clockwork.Clock
}

// NewNotificationService creates a new NotificationService. notifier may be nil.
func NewNotificationService(db *sql.DB, notifier Notifier, clock clockwork.Clock) *NotificationService {
	return &NotificationService{db: db, notifier: notifier, clock: clock}
}

// Notify persists a notification and pushes it to the user's live connections.
func (s *NotificationService) Notify(orgID, userID, notificationType, message string) error {
	n := models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      notificationType,
		Message:   message,
		CreatedAt: s.clock.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO notifications (id, organization_id, user_id, type, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, orgID, n.UserID, n.Type, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if s.notifier != nil {
		s.notifier.PushToUser(userID, websocket.NewMessage("notification", n))
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *NotificationService) ListNotifications(userID string, unreadOnly bool) ([]models.Notification, error) {
	query := "SELECT id, user_id, type, message, read_at, created_at FROM notifications WHERE user_id = ?"
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT 100"

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ReadAt = timePtr(readAt)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(userID, notificationID string) error {
	res, err := s.db.Exec("UPDATE notifications SET read_at = ? WHERE id = ? AND user_id = ? AND read_at IS NULL", s.clock.Now().UTC(), notificationID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?", notificationID, userID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(userID string) (int64, error) {
	res, err := s.db.Exec("UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL", s.clock.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// notifyUser sends a notification and logs delivery failures. n may be nil.
func notifyUser(n NotificationServiceProvider, orgID, userID, notificationType, message string) {
	if n == nil {
		return
	}
	if err := n.Notify(orgID, userID, notificationType, message); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("type", notificationType).Msg("Failed to send notification")
	}
}
