package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Mailer delivers login emails.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, name, code, magicLink string) error
}

// TokenGenerator issues session tokens for authenticated users.
type TokenGenerator interface {
	GenerateJWT(user models.User) (string, error)
}

// AuthServiceProvider defines the interface for passwordless login.
type AuthServiceProvider interface {
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(email, code string) (string, models.User, error)
	PurgeOTPs(olderThan time.Duration) (int64, error)
}

// AuthService issues one-time codes and exchanges them for session tokens.
type AuthService struct {
	db          *sql.DB
	users       UserServiceProvider
	mailer      Mailer
	tokens      TokenGenerator
	clock       clockwork.Clock
	baseURL     string
	maxAttempts int
}

// NewAuthService creates a new AuthService.
func NewAuthService(db *sql.DB, users UserServiceProvider, mailer Mailer, tokens TokenGenerator, clock clockwork.Clock, baseURL string, maxAttempts int) *AuthService {
	return &AuthService{
		db:          db,
		users:       users,
		mailer:      mailer,
		tokens:      tokens,
		clock:       clock,
		baseURL:     baseURL,
		maxAttempts: maxAttempts,
	}
}

// RequestOTP emails a fresh login code. Unknown or inactive emails succeed silently.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info().Str("email", email).Msg("OTP requested for unknown email")
			metrics.OTPRequests.WithLabelValues("unknown").Inc()
			return nil
		}
		return err
	}
	if !user.IsActive {
		metrics.OTPRequests.WithLabelValues("inactive").Inc()
		return nil
	}

	cfg, err := loadSystemConfig(s.db, user.OrganizationID)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	now := s.clock.Now().UTC()
	expiresAt := now.Add(time.Duration(cfg.Int(models.ConfigOTPTTLMinutes)) * time.Minute)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Only the newest code stays usable.
	if _, err := tx.Exec("UPDATE otp_records SET consumed_at = ? WHERE email = ? AND consumed_at IS NULL", now, email); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO otp_records (id, email, code_hash, expires_at, attempts, created_at) VALUES (?, ?, ?, ?, 0, ?)",
		uuid.New().String(), email, string(hash), expiresAt, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/auth/verify?email=%s&code=%s", s.baseURL, url.QueryEscape(email), code)
	if err := s.mailer.SendLoginCode(ctx, email, user.Name, code, link); err != nil {
		metrics.OTPRequests.WithLabelValues("mail_error").Inc()
		return fmt.Errorf("failed to send login email: %w", err)
	}
	metrics.OTPRequests.WithLabelValues("sent").Inc()
	return nil
}

// VerifyOTP checks a code against the newest outstanding record and returns a session token.
func (s *AuthService) VerifyOTP(email, code string) (string, models.User, error) {
	email = normalizeEmail(email)
	now := s.clock.Now().UTC()

	var rec models.OTPRecord
	err := s.db.QueryRow(`SELECT id, code_hash, expires_at, attempts FROM otp_records
		WHERE email = ? AND consumed_at IS NULL ORDER BY created_at DESC LIMIT 1`, email).
		Scan(&rec.ID, &rec.CodeHash, &rec.ExpiresAt, &rec.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.OTPVerifications.WithLabelValues("missing").Inc()
		return "", models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}
	if err != nil {
		return "", models.User{}, err
	}

	if now.After(rec.ExpiresAt) {
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		return "", models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}
	if rec.Attempts >= s.maxAttempts {
		metrics.OTPVerifications.WithLabelValues("locked").Inc()
		return "", models.User{}, fmt.Errorf("%w: too many attempts, request a new code", ErrForbidden)
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		if _, err := s.db.Exec("UPDATE otp_records SET attempts = attempts + 1 WHERE id = ?", rec.ID); err != nil {
			return "", models.User{}, err
		}
		metrics.OTPVerifications.WithLabelValues("wrong_code").Inc()
		return "", models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}

	res, err := s.db.Exec("UPDATE otp_records SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL", now, rec.ID)
	if err != nil {
		return "", models.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", models.User{}, fmt.Errorf("%w: code already used", ErrUnauthorized)
	}

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return "", models.User{}, err
	}
	if !user.IsActive {
		return "", models.User{}, fmt.Errorf("%w: account is inactive", ErrForbidden)
	}

	token, err := s.tokens.GenerateJWT(user)
	if err != nil {
		return "", models.User{}, fmt.Errorf("failed to generate token: %w", err)
	}
	metrics.OTPVerifications.WithLabelValues("success").Inc()
	return token, user, nil
}

// PurgeOTPs deletes records created before now-olderThan.
func (s *AuthService) PurgeOTPs(olderThan time.Duration) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-olderThan)
	res, err := s.db.Exec("DELETE FROM otp_records WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
