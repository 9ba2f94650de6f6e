// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string `validate:"required,numeric"`
	AppEnv string `validate:"required"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`

	// Object storage (S3-compatible: MinIO locally, AWS S3 in production).
	// An empty endpoint with the s3 driver selects the regional AWS endpoint.
	StorageDriver       string `validate:"oneof=minio s3 memory"`
	StorageEndpoint     string `validate:"required_if=StorageDriver minio"`
	StorageAccessKey    string
	StorageSecretKey    string
	StorageBucket       string `validate:"required"`
	StorageRegion       string `validate:"required_if=StorageDriver s3"`
	StorageUseSSL       bool
	StorageCreateBucket bool

	// PresignExpiry is the lifetime of presigned download links.
	PresignExpiry time.Duration `validate:"gt=0"`

	MetricsEnabled bool
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading from environment")
	}

	presignExpiry, err := time.ParseDuration(getEnv("PRESIGN_EXPIRY", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse PRESIGN_EXPIRY: %w", err)
	}

	driver := getEnv("STORAGE_DRIVER", "minio")
	// Local MinIO defaults. The s3 driver falls back to the AWS endpoint and
	// the default credential chain when these are unset.
	defaultEndpoint, defaultKey := "", ""
	if driver == "minio" {
		defaultEndpoint, defaultKey = "localhost:9000", "minioadmin"
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		StorageDriver:       driver,
		StorageEndpoint:     getEnv("STORAGE_ENDPOINT", defaultEndpoint),
		StorageAccessKey:    getEnv("STORAGE_ACCESS_KEY", defaultKey),
		StorageSecretKey:    getEnv("STORAGE_SECRET_KEY", defaultKey),
		StorageBucket:       getEnv("STORAGE_BUCKET", "documents"),
		StorageRegion:       getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:       getEnv("STORAGE_USE_SSL", "false") == "true",
		StorageCreateBucket: getEnv("STORAGE_CREATE_BUCKET", "true") == "true",

		PresignExpiry: presignExpiry,

		MetricsEnabled: getEnv("METRICS_ENABLED", "true") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
