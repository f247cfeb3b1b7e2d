package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go-simpler.org/env"
)

// Storage drivers for completion proofs.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the application configuration.
type Config struct {
	AppEnv       string `env:"APP_ENV" default:"development" validate:"oneof=development production test"`
	ServerPort   int    `env:"PORT" default:"8080" validate:"min=1,max=65535"`
	DatabasePath string `env:"DATABASE_PATH" default:"./skill-loop.db" validate:"required"`
	LogLevel     string `env:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	AppBaseURL   string `env:"APP_BASE_URL" default:"http://localhost:3000" validate:"url"`
	CORSOrigins  string `env:"CORS_ORIGINS" default:"http://localhost:3000"`

	JWTSecret string        `env:"JWT_SECRET" validate:"required,min=16"`
	JWTTTL    time.Duration `env:"JWT_TTL" default:"24h"`

	OTPMaxAttempts int `env:"OTP_MAX_ATTEMPTS" default:"5" validate:"min=1"`

	CronSecret  string `env:"CRON_SECRET"`
	OverdueCron string `env:"OVERDUE_CRON" default:"0 1 * * *"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" default:"no-reply@skill-loop.local" validate:"email"`

	StorageDriver    string `env:"STORAGE_DRIVER" default:"local" validate:"oneof=local s3"`
	StorageLocalPath string `env:"STORAGE_LOCAL_PATH" default:"./uploads"`
	S3Bucket         string `env:"S3_BUCKET" validate:"required_if=StorageDriver s3"`
	S3Region         string `env:"S3_REGION" default:"us-east-1"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" default:"false"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY" validate:"required_with=S3AccessKeyID"`
	MaxUploadMB      int64  `env:"MAX_UPLOAD_MB" default:"10" validate:"min=1"`

	AIAPIKey  string `env:"AI_API_KEY"`
	AIBaseURL string `env:"AI_BASE_URL"`
	AIModel   string `env:"AI_MODEL" default:"gpt-4o-mini"`
}

// Load loads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints declared on Config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// The log mailer prints live login codes, so production must relay mail.
	if c.IsProduction() && !c.MailEnabled() {
		return errors.New("invalid configuration: SMTP_HOST is required in production")
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// AIEnabled reports whether question drafting can reach a model.
func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}
