// package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const defaultLargeFileThreshold int64 = 2 * 1024 * 1024 * 1024

var validate = validator.New()

// Config holds all application configuration.
type Config struct {
	// telegram
	TGApiID   int    `validate:"required,gt=0"`
	TGApiHash string `validate:"required"`
	BotToken  string `validate:"required,contains=:"`

	// access
	OwnerID      int64 `validate:"required"`
	LogChannelID int64

	// database
	DatabaseURL string `validate:"required"`

	// nats, empty disables event publishing
	NatsURL string

	// server, 0 disables the status api
	HTTPPort int `validate:"gte=0,lte=65535"`

	// transfer
	DownloadDir        string `validate:"required"`
	ThumbnailDir       string `validate:"required"`
	LargeFileThreshold int64  `validate:"gt=0"`
	StatusRefresh      time.Duration
	SettingsSeedFile   string

	// logging
	LogLevel string
	LogFile  string
	LogJSON  bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		TGApiID:            getEnvInt("TG_API_ID", 0),
		TGApiHash:          getEnv("TG_API_HASH", ""),
		BotToken:           getEnv("BOT_TOKEN", ""),
		OwnerID:            getEnvInt64("OWNER_ID", 0),
		LogChannelID:       getEnvInt64("LOG_CHANNEL_ID", 0),
		DatabaseURL:        getEnv("DATABASE_URL", "relay.db"),
		NatsURL:            getEnv("NATS_URL", ""),
		HTTPPort:           getEnvInt("HTTP_PORT", 3100),
		DownloadDir:        getEnv("DOWNLOAD_DIR", "downloads"),
		ThumbnailDir:       getEnv("THUMBNAIL_DIR", "thumbnails"),
		LargeFileThreshold: getEnvInt64("LARGE_FILE_THRESHOLD", defaultLargeFileThreshold),
		StatusRefresh:      time.Duration(getEnvInt("STATUS_REFRESH_SECONDS", 3)) * time.Second,
		SettingsSeedFile:   getEnv("SETTINGS_SEED_FILE", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", "./logs/relay.log"),
		LogJSON:            getEnvBool("LOG_JSON", false),
	}

	if cfg.StatusRefresh <= 0 {
		cfg.StatusRefresh = 3 * time.Second
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// UsePostgres reports whether DatabaseURL points at PostgreSQL rather
// than a SQLite file.
func (c *Config) UsePostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
