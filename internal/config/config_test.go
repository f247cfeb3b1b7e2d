package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AppEnv:         "development",
		ServerPort:     8080,
		DatabasePath:   "./test.db",
		LogLevel:       "info",
		AppBaseURL:     "http://localhost:3000",
		JWTSecret:      "0123456789abcdef",
		OTPMaxAttempts: 5,
		SMTPFrom:       "no-reply@example.com",
		StorageDriver:  StorageLocal,
		MaxUploadMB:    10,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "short jwt secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.ServerPort = 0 }, wantErr: true},
		{name: "unknown storage driver", mutate: func(c *Config) { c.StorageDriver = "ftp" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.StorageDriver = StorageS3 }, wantErr: true},
		{name: "s3 with bucket", mutate: func(c *Config) {
			c.StorageDriver = StorageS3
			c.S3Bucket = "proofs"
		}},
		{name: "production without smtp", mutate: func(c *Config) { c.AppEnv = "production" }, wantErr: true},
		{name: "production with smtp", mutate: func(c *Config) {
			c.AppEnv = "production"
			c.SMTPHost = "smtp.example.com"
		}},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("JWT_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
	assert.Equal(t, "2h0m0s", cfg.JWTTTL.String())
	assert.Equal(t, StorageLocal, cfg.StorageDriver)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.MailEnabled())
}
