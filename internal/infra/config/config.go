package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminChatID int64 // Reviewer channel: receives submission cards, sends verdicts

	LogLevel    string
	Environment string

	// Webhook mode is used when WebhookURL is set; otherwise the bot long-polls.
	WebhookURL    string
	WebhookListen string

	CronSpecReviewDigest string
	CronSpecIdleNudge    string
	IdleNudgeAfter       time.Duration

	// Bound on every outbound store/repository/transport call.
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		cfg.RedisDB, err = strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}

	adminIDStr := os.Getenv("ADMIN_CHAT_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_CHAT_ID is not set")
	}
	cfg.AdminChatID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.WebhookListen = os.Getenv("WEBHOOK_LISTEN")
	if cfg.WebhookListen == "" {
		cfg.WebhookListen = ":8080"
	}

	cfg.CronSpecReviewDigest = os.Getenv("CRON_SPEC_REVIEW_DIGEST")
	if cfg.CronSpecReviewDigest == "" {
		cfg.CronSpecReviewDigest = "0 10 * * *" // Default: 10:00 AM daily
	}
	cfg.CronSpecIdleNudge = os.Getenv("CRON_SPEC_IDLE_NUDGE")
	if cfg.CronSpecIdleNudge == "" {
		cfg.CronSpecIdleNudge = "0 11 * * *" // Default: 11:00 AM daily
	}

	cfg.IdleNudgeAfter = 48 * time.Hour
	if s := os.Getenv("IDLE_NUDGE_AFTER"); s != "" {
		cfg.IdleNudgeAfter, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid IDLE_NUDGE_AFTER: %w", err)
		}
	}

	cfg.RequestTimeout = 10 * time.Second
	if s := os.Getenv("REQUEST_TIMEOUT"); s != "" {
		cfg.RequestTimeout, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
	}

	return cfg, nil
}
