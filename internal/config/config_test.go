package config

import (
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := fromEnv(envMap(map[string]string{"JWT_SECRET": "s3cret"}))
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}

	if cfg.DatabaseURL != "power6.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" || !cfg.APIEnabled() {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.BotEnabled() {
		t.Error("bot should be disabled without a token")
	}
	if cfg.ActiveTaskLimit != 6 || cfg.StreakThreshold != 6 {
		t.Errorf("limits = %d/%d", cfg.ActiveTaskLimit, cfg.StreakThreshold)
	}
	if cfg.TokenTTL != 720*time.Hour {
		t.Errorf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.ReportTime != "21:00" || cfg.ReportLocation != time.UTC {
		t.Errorf("report = %s %v", cfg.ReportTime, cfg.ReportLocation)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := fromEnv(envMap(map[string]string{
		"JWT_SECRET":        "s3cret",
		"DATABASE_URL":      " postgres://localhost/power6 ",
		"HTTP_ADDR":         "-",
		"TELEGRAM_TOKEN":    "123:abc",
		"ACTIVE_TASK_LIMIT": "8",
		"STREAK_THRESHOLD":  "3",
		"TOKEN_TTL_HOURS":   "2",
		"REPORT_TIME":       "07:30",
		"REPORT_TIMEZONE":   "Europe/Berlin",
	}))
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}

	if cfg.DatabaseURL != "postgres://localhost/power6" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.APIEnabled() {
		t.Error("API should be disabled by HTTP_ADDR=-")
	}
	if !cfg.BotEnabled() {
		t.Error("bot should be enabled")
	}
	if cfg.ActiveTaskLimit != 8 || cfg.StreakThreshold != 3 {
		t.Errorf("limits = %d/%d", cfg.ActiveTaskLimit, cfg.StreakThreshold)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.ReportLocation.String() != "Europe/Berlin" {
		t.Errorf("ReportLocation = %v", cfg.ReportLocation)
	}
}

func TestFromEnvErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "bad limit", env: map[string]string{"JWT_SECRET": "x", "ACTIVE_TASK_LIMIT": "six"}},
		{name: "zero threshold", env: map[string]string{"JWT_SECRET": "x", "STREAK_THRESHOLD": "0"}},
		{name: "bad zone", env: map[string]string{"JWT_SECRET": "x", "REPORT_TIMEZONE": "Mars/Olympus"}},
		{name: "bad report time", env: map[string]string{"JWT_SECRET": "x", "REPORT_TIME": "25:99"}},
		{name: "negative ttl", env: map[string]string{"JWT_SECRET": "x", "TOKEN_TTL_HOURS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fromEnv(envMap(tt.env)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
