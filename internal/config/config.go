// Package config loads Kamino's configuration from environment
// variables (and an optional .env file), the way the review-bot
// lineage this project descends from loads its own configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every environment-derived setting the dispatcher needs.
type Config struct {
	Port string

	GitHubAppID         int64
	GitHubPrivateKey    []byte
	GitHubWebhookSecret string
	GitHubOwner         string
	GitHubRepo          string

	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	AsynqQueue       string
	AsynqConcurrency int

	NumWorkers     int
	CancelOnUpdate bool
	BaseURL        string
	WorkDir        string
	ReadyLabel     string
	BuildScript    string

	RateLimitMaxTokens int
	RateLimitRefillSec int

	RetryMaxAttempts  int
	RetryInitialDelay int // milliseconds
	RetryMaxDelay     int // milliseconds

	RetentionSweepCron string
	RetentionMaxAge    time.Duration

	LogFormat string // "console" or "json"
}

// Load reads configuration from the environment, loading a .env file
// first if one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		GitHubOwner:        os.Getenv("GITHUB_OWNER"),
		GitHubRepo:         os.Getenv("GITHUB_REPO"),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvIntOrDefault("REDIS_DB", 0),
		AsynqQueue:         getEnvOrDefault("ASYNQ_QUEUE", "kamino"),
		AsynqConcurrency:   getEnvIntOrDefault("ASYNQ_CONCURRENCY", 10),
		NumWorkers:         getEnvIntOrDefault("NUM_WORKERS", 2),
		CancelOnUpdate:     getEnvBoolOrDefault("CANCEL_ON_UPDATE", true),
		BaseURL:            os.Getenv("BASE_URL"),
		WorkDir:            getEnvOrDefault("WORK_DIR", "/tmp/kamino"),
		ReadyLabel:         os.Getenv("READY_LABEL"),
		BuildScript:        getEnvOrDefault("BUILD_SCRIPT", "/app/build.sh"),
		RateLimitMaxTokens: getEnvIntOrDefault("RATE_LIMIT_MAX_TOKENS", 4),
		RateLimitRefillSec: getEnvIntOrDefault("RATE_LIMIT_REFILL_SEC", 5),
		RetryMaxAttempts:   getEnvIntOrDefault("RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:  getEnvIntOrDefault("RETRY_INITIAL_DELAY_MS", 1000),
		RetryMaxDelay:      getEnvIntOrDefault("RETRY_MAX_DELAY_MS", 60000),
		RetentionSweepCron: getEnvOrDefault("RETENTION_SWEEP_CRON", "0 3 * * *"),
		RetentionMaxAge:    time.Duration(getEnvIntOrDefault("RETENTION_MAX_AGE_DAYS", 30)) * 24 * time.Hour,
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "console"),
	}

	appID, err := strconv.ParseInt(os.Getenv("GITHUB_APP_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	cfg.GitHubAppID = appID

	privateKeyPath := getEnvOrDefault("GITHUB_PRIVATE_KEY_PATH", "/app/private-key.pem")
	privateKey, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read GitHub private key from %s: %w", privateKeyPath, err)
	}
	cfg.GitHubPrivateKey = privateKey

	cfg.GitHubWebhookSecret = os.Getenv("GITHUB_WEBHOOK_SECRET")
	if cfg.GitHubWebhookSecret == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}
