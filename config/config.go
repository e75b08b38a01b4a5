// Package config loads tool configuration from a .env file and the
// environment into an explicit struct. No other package reads the
// environment directly.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"advent-mailer/challenge"
	"advent-mailer/signups"
)

// Config holds every recognized option with its default applied.
type Config struct {
	// Email provider
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	SMTPAddr       string
	SMTPUser       string
	SMTPPass       string

	// Challenge content source
	Challenge challenge.Source
	MaxDay    int

	// Signup import
	DatabaseURL string
	Railway     signups.RailwayConfig

	// Subscriber store
	EmailListPath string
	StorageBucket string
	StorageObject string

	// Dispatch
	SendDelay time.Duration

	// Links
	SiteURL        string
	UnsubscribeURL string

	// Test sends
	TestEmail string
}

// Load reads .env (when present) and the environment. Absent options get
// their defaults; nothing outside this package touches os.Getenv.
func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables directly")
	}

	return Config{
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		FromEmail:      envOrDefault("FROM_EMAIL", "noreply@adventofai.dev"),
		FromName:       envOrDefault("FROM_NAME", "Advent of AI"),
		SMTPAddr:       os.Getenv("SMTP_ADDR"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPass:       os.Getenv("SMTP_PASS"),

		Challenge: challenge.Source{
			Owner:      envOrDefault("CHALLENGE_REPO_OWNER", "blackgirlbytes"),
			Repo:       envOrDefault("CHALLENGE_REPO_NAME", "frosty-agent-forge"),
			Branch:     envOrDefault("CHALLENGE_REPO_BRANCH", "main"),
			PathFormat: envOrDefault("CHALLENGE_PATH_FORMAT", "day%d.md"),
		},
		MaxDay: envIntOrDefault("MAX_DAY", 25, logger),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		Railway: signups.RailwayConfig{
			Token:       os.Getenv("RAILWAY_TOKEN"),
			ProjectID:   os.Getenv("RAILWAY_PROJECT_ID"),
			ServiceID:   envOrDefault("RAILWAY_SERVICE_ID", os.Getenv("RAILWAY_SERVICE")),
			Environment: envOrDefault("RAILWAY_ENVIRONMENT", "production"),
		},

		EmailListPath: envOrDefault("EMAIL_LIST_PATH", "data/email-list.json"),
		StorageBucket: os.Getenv("STORAGE_BUCKET"),
		StorageObject: envOrDefault("STORAGE_OBJECT", "email-list.json"),

		SendDelay: time.Duration(envIntOrDefault("SEND_DELAY_MS", 100, logger)) * time.Millisecond,

		SiteURL:        envOrDefault("SITE_URL", "https://adventofai.dev"),
		UnsubscribeURL: os.Getenv("UNSUBSCRIBE_URL"),

		TestEmail: os.Getenv("TEST_EMAIL"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int, logger *slog.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn("Invalid numeric option, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
