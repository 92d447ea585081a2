package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/medlab_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if cfg.JWTTTL() != time.Hour {
		t.Errorf("expected default token TTL 1h, got %s", cfg.JWTTTL())
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/medlab_test")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("NOTIFY_RETRIES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.IsDev() {
		t.Error("expected non-development env")
	}
	if cfg.NotifyRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.NotifyRetries)
	}
}

func TestValidate_ProductionNeedsSigningKey(t *testing.T) {
	cfg := &Config{Env: "production", JWTSigningKey: "short", JWTTTLMinutes: 60}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short signing key in production")
	}

	cfg.JWTSigningKey = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_DevAllowsEmptyKey(t *testing.T) {
	cfg := &Config{Env: "development", JWTTTLMinutes: 60}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
