package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("DATA_DIR", "var/data")

	cfg := LoadConfig()
	if cfg.ServerPort != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.ServerPort)
	}
	if cfg.Data.DoctorsFile != filepath.Join("var/data", "medecins.json") {
		t.Fatalf("unexpected doctors file: %s", cfg.Data.DoctorsFile)
	}
	if cfg.Data.HistoryLimit != 1000 {
		t.Fatalf("expected history limit 1000, got %d", cfg.Data.HistoryLimit)
	}
	if cfg.Accounts.ResetTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m reset ttl, got %s", cfg.Accounts.ResetTokenTTL)
	}
	if cfg.Session.Secret == "" {
		t.Fatal("expected dev session secret outside prod")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("HISTORY_LIMIT", "50")
	t.Setenv("RESET_TOKEN_TTL", "5m")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("HISTORY_BACKEND", "Postgres")

	cfg := LoadConfig()
	if cfg.ServerPort != 9090 {
		t.Fatalf("expected SERVER_PORT override, got %d", cfg.ServerPort)
	}
	if cfg.Data.HistoryLimit != 50 {
		t.Fatalf("expected HISTORY_LIMIT override, got %d", cfg.Data.HistoryLimit)
	}
	if cfg.Accounts.ResetTokenTTL != 5*time.Minute {
		t.Fatalf("expected RESET_TOKEN_TTL override, got %s", cfg.Accounts.ResetTokenTTL)
	}
	if !cfg.Session.CookieSecure {
		t.Fatal("expected secure cookie")
	}
	if cfg.HistoryBackend != "postgres" {
		t.Fatalf("expected lowercased backend, got %s", cfg.HistoryBackend)
	}
}

func TestValidateRejectsMissingSecretInProd(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("SESSION_SECRET", "")

	cfg := LoadConfig()
	if cfg.Accounts.ExposeResetLinks {
		t.Fatal("reset links must not be exposed in prod")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing session secret")
	}
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	t.Setenv("ENV", "test")
	cases := map[string]string{
		"HISTORY_BACKEND": "mongo",
		"STORAGE_BACKEND": "s3",
		"MQ_BACKEND":      "kafka",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if err := LoadConfig().Validate(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}
