package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseURL     = "power6.db"
	defaultHTTPAddr        = ":8080"
	defaultReportTime      = "21:00"
	defaultTokenTTL        = 720 * time.Hour
	defaultActiveTaskLimit = 6
	defaultStreakThreshold = 6
)

// Config keeps runtime settings for the service.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	JWTSecret       string
	TokenTTL        time.Duration
	TelegramToken   string
	ReportTime      string
	ReportLocation  *time.Location
	ActiveTaskLimit int
	StreakThreshold int
}

// APIEnabled reports whether the HTTP API should be started.
func (c Config) APIEnabled() bool {
	return c.HTTPAddr != "-"
}

// BotEnabled reports whether a Telegram token was configured.
func (c Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (Config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		DatabaseURL:   env("DATABASE_URL"),
		HTTPAddr:      env("HTTP_ADDR"),
		JWTSecret:     env("JWT_SECRET"),
		TelegramToken: env("TELEGRAM_TOKEN"),
		ReportTime:    env("REPORT_TIME"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.ReportTime == "" {
		cfg.ReportTime = defaultReportTime
	}

	var err error
	if cfg.TokenTTL, err = parseHours(env("TOKEN_TTL_HOURS"), defaultTokenTTL); err != nil {
		return cfg, fmt.Errorf("TOKEN_TTL_HOURS: %w", err)
	}
	if cfg.ActiveTaskLimit, err = parsePositive(env("ACTIVE_TASK_LIMIT"), defaultActiveTaskLimit); err != nil {
		return cfg, fmt.Errorf("ACTIVE_TASK_LIMIT: %w", err)
	}
	if cfg.StreakThreshold, err = parsePositive(env("STREAK_THRESHOLD"), defaultStreakThreshold); err != nil {
		return cfg, fmt.Errorf("STREAK_THRESHOLD: %w", err)
	}

	zone := env("REPORT_TIMEZONE")
	if zone == "" {
		zone = "UTC"
	}
	if cfg.ReportLocation, err = time.LoadLocation(zone); err != nil {
		return cfg, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	if _, err := time.Parse("15:04", cfg.ReportTime); err != nil {
		return cfg, fmt.Errorf("REPORT_TIME %q, expected HH:MM", cfg.ReportTime)
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func parsePositive(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func parseHours(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil {
		return 0, err
	}
	if hours <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return hours, nil
}
