package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ProofStorage persists uploaded proof files.
// Presign returns an empty URL when the backend cannot sign links.
type ProofStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// allowedProofTypes maps accepted content types to the extension used in storage keys.
var allowedProofTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// ProofUpload is a file received from a client.
type ProofUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProofServiceProvider defines the interface for completion proofs.
type ProofServiceProvider interface {
	UploadProof(ctx context.Context, orgID, userID, assignmentID string, file ProofUpload) (models.Proof, error)
	GetProof(orgID, id string) (models.Proof, error)
	ListProofs(orgID string, status models.ProofStatus) ([]models.Proof, error)
	ListAssignmentProofs(orgID, assignmentID string) ([]models.Proof, error)
	ReviewProof(orgID, reviewerID, proofID string, approve bool, note string) (models.Proof, error)
	DownloadURL(ctx context.Context, orgID, proofID string) (string, error)
	OpenProof(ctx context.Context, orgID, proofID string) (io.ReadCloser, models.Proof, error)
}

// ProofService stores and reviews completion proofs.
type ProofService struct {
	db            *sql.DB
	storage       ProofStorage
	eventService  EventServiceProvider
	notifications NotificationServiceProvider
	clock         clockwork.Clock
	maxBytes      int64
}

// NewProofService creates a new ProofService.
func NewProofService(db *sql.DB, storage ProofStorage, eventService EventServiceProvider, notifications NotificationServiceProvider, clock clockwork.Clock, maxBytes int64) *ProofService {
	return &ProofService{db: db, storage: storage, eventService: eventService, notifications: notifications, clock: clock, maxBytes: maxBytes}
}

const proofColumns = "id, assignment_id, user_id, file_key, file_name, content_type, size, status, reviewer_id, review_note, uploaded_at, reviewed_at"

func scanProof(row scanner) (models.Proof, error) {
	var p models.Proof
	var reviewerID sql.NullString
	var reviewedAt sql.NullTime
	err := row.Scan(&p.ID, &p.AssignmentID, &p.UserID, &p.FileKey, &p.FileName, &p.ContentType, &p.Size, &p.Status,
		&reviewerID, &p.ReviewNote, &p.UploadedAt, &reviewedAt)
	if err != nil {
		return models.Proof{}, err
	}
	p.ReviewerID = nullString(reviewerID)
	p.ReviewedAt = timePtr(reviewedAt)
	return p, nil
}

func (s *ProofService) queryProofs(query string, args ...any) ([]models.Proof, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proofs := []models.Proof{}
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

// UploadProof stores a certificate for the caller's own assignment.
func (s *ProofService) UploadProof(ctx context.Context, orgID, userID, assignmentID string, file ProofUpload) (models.Proof, error) {
	var ownerID string
	var status models.AssignmentStatus
	err := s.db.QueryRow("SELECT user_id, status FROM training_assignments WHERE id = ? AND organization_id = ?", assignmentID, orgID).Scan(&ownerID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Proof{}, fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
	}
	if err != nil {
		return models.Proof{}, err
	}
	if ownerID != userID {
		return models.Proof{}, fmt.Errorf("%w: only the assignee can upload a proof", ErrForbidden)
	}
	if status == models.AssignmentCompleted {
		return models.Proof{}, fmt.Errorf("assignment is already completed: %w", ErrConflict)
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(file.ContentType, ";", 2)[0]))
	ext, ok := allowedProofTypes[contentType]
	if !ok {
		return models.Proof{}, fmt.Errorf("%w: only PDF, PNG and JPEG files are accepted", ErrInvalid)
	}
	if file.Size <= 0 {
		return models.Proof{}, fmt.Errorf("%w: file is empty", ErrInvalid)
	}
	if file.Size > s.maxBytes {
		return models.Proof{}, fmt.Errorf("%w: file exceeds the %d MB limit", ErrInvalid, s.maxBytes/(1<<20))
	}

	var pending int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM proofs WHERE assignment_id = ? AND status = ?", assignmentID, models.ProofPending).Scan(&pending); err != nil {
		return models.Proof{}, err
	}
	if pending > 0 {
		return models.Proof{}, fmt.Errorf("a proof is already awaiting review: %w", ErrConflict)
	}

	p := models.Proof{
		ID:           uuid.New().String(),
		AssignmentID: assignmentID,
		UserID:       userID,
		FileName:     path.Base(strings.ReplaceAll(file.FileName, "\\", "/")),
		ContentType:  contentType,
		Size:         file.Size,
		Status:       models.ProofPending,
		UploadedAt:   s.clock.Now().UTC(),
	}
	p.FileKey = path.Join(orgID, assignmentID, p.ID+ext)

	if err := s.storage.Put(ctx, p.FileKey, file.Body, file.Size, contentType); err != nil {
		return models.Proof{}, fmt.Errorf("failed to store proof: %w", err)
	}

	_, err = s.db.Exec("INSERT INTO proofs (id, organization_id, assignment_id, user_id, file_key, file_name, content_type, size, status, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, orgID, p.AssignmentID, p.UserID, p.FileKey, p.FileName, p.ContentType, p.Size, p.Status, p.UploadedAt)
	if err != nil {
		if delErr := s.storage.Delete(ctx, p.FileKey); delErr != nil {
			log.Warn().Err(delErr).Str("key", p.FileKey).Msg("Failed to remove orphaned proof file")
		}
		return models.Proof{}, err
	}

	s.eventService.CreateEvent(orgID, "proof.upload", "info", fmt.Sprintf("Proof '%s' uploaded for assignment %s.", p.FileName, assignmentID), &userID)
	return p, nil
}

// GetProof retrieves a single proof.
func (s *ProofService) GetProof(orgID, id string) (models.Proof, error) {
	p, err := scanProof(s.db.QueryRow("SELECT "+proofColumns+" FROM proofs WHERE id = ? AND organization_id = ?", id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Proof{}, fmt.Errorf("proof %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListProofs lists the organization's proofs, optionally by status.
func (s *ProofService) ListProofs(orgID string, status models.ProofStatus) ([]models.Proof, error) {
	if status != "" {
		return s.queryProofs("SELECT "+proofColumns+" FROM proofs WHERE organization_id = ? AND status = ? ORDER BY uploaded_at", orgID, status)
	}
	return s.queryProofs("SELECT "+proofColumns+" FROM proofs WHERE organization_id = ? ORDER BY uploaded_at DESC", orgID)
}

// ListAssignmentProofs lists every proof uploaded for an assignment.
func (s *ProofService) ListAssignmentProofs(orgID, assignmentID string) ([]models.Proof, error) {
	return s.queryProofs("SELECT "+proofColumns+" FROM proofs WHERE organization_id = ? AND assignment_id = ? ORDER BY uploaded_at DESC", orgID, assignmentID)
}

// ReviewProof approves or rejects a pending proof. Approval completes the assignment.
func (s *ProofService) ReviewProof(orgID, reviewerID, proofID string, approve bool, note string) (models.Proof, error) {
	p, err := s.GetProof(orgID, proofID)
	if err != nil {
		return models.Proof{}, err
	}
	if p.Status != models.ProofPending {
		return models.Proof{}, fmt.Errorf("proof was already %s: %w", strings.ToLower(string(p.Status)), ErrConflict)
	}
	note = strings.TrimSpace(note)
	if !approve && note == "" {
		return models.Proof{}, fmt.Errorf("%w: a note is required when rejecting a proof", ErrInvalid)
	}

	status, decision := models.ProofRejected, "rejected"
	if approve {
		status, decision = models.ProofApproved, "approved"
	}
	now := s.clock.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return models.Proof{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE proofs SET status = ?, reviewer_id = ?, review_note = ?, reviewed_at = ? WHERE id = ? AND status = ?",
		status, reviewerID, note, now, proofID, models.ProofPending)
	if err != nil {
		return models.Proof{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Proof{}, fmt.Errorf("proof was already reviewed: %w", ErrConflict)
	}
	if approve {
		if err := completeAssignment(tx, orgID, p.AssignmentID, &reviewerID, now); err != nil {
			return models.Proof{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Proof{}, err
	}

	metrics.ProofsReviewed.WithLabelValues(decision).Inc()
	msg := fmt.Sprintf("Your proof '%s' was %s.", p.FileName, decision)
	if note != "" {
		msg += " Note: " + note
	}
	notifyUser(s.notifications, orgID, p.UserID, "proof."+decision, msg)
	s.eventService.CreateEvent(orgID, "proof.review", "info", fmt.Sprintf("Proof '%s' %s.", p.FileName, decision), &reviewerID)
	return s.GetProof(orgID, proofID)
}

// DownloadURL returns a presigned link, or the API path that streams the file when the
// storage backend cannot sign.
func (s *ProofService) DownloadURL(ctx context.Context, orgID, proofID string) (string, error) {
	p, err := s.GetProof(orgID, proofID)
	if err != nil {
		return "", err
	}
	url, err := s.storage.Presign(ctx, p.FileKey, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("failed to sign download: %w", err)
	}
	if url == "" {
		url = "/api/v1/proofs/" + p.ID + "/file"
	}
	return url, nil
}

// OpenProof streams the stored file.
func (s *ProofService) OpenProof(ctx context.Context, orgID, proofID string) (io.ReadCloser, models.Proof, error) {
	p, err := s.GetProof(orgID, proofID)
	if err != nil {
		return nil, models.Proof{}, err
	}
	body, err := s.storage.Open(ctx, p.FileKey)
	if err != nil {
		return nil, models.Proof{}, fmt.Errorf("failed to open proof: %w", err)
	}
	return body, p, nil
}
