package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := Load()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "fintrack.db")
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8081" {
		t.Fatalf("default port: %s", cfg.Port)
	}
	if cfg.Production() {
		t.Fatal("default environment should not be production")
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("default access TTL: %v", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("default origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port: %s", cfg.Port)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("access TTL: %v", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateAccumulatesProblems(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "notaport"
	cfg.JWTSecret = ""
	cfg.AccessTokenTTL = time.Second
	cfg.CORSAllowedOrigins = []string{"not a url"}
	cfg.SyncBatchSize = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, fragment := range []string{"port", "JWT secret", "access token TTL", "CORS origin", "sync batch size"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error should mention %q:\n%v", fragment, err)
		}
	}
}

func TestValidateProductionHardening(t *testing.T) {
	cfg := validConfig(t)
	cfg.Environment = "production"
	cfg.SMTPHost = "smtp.example.com"

	// Default dev secret must be rejected in production.
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT secret") {
		t.Fatalf("expected secret rejection, got %v", err)
	}

	cfg.JWTSecret = strings.Repeat("s", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("hardened production config should validate: %v", err)
	}

	cfg.SMTPHost = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SMTP host") {
		t.Fatalf("production without SMTP should fail, got %v", err)
	}
}

func TestValidateRefreshMustOutliveAccess(t *testing.T) {
	cfg := validConfig(t)
	cfg.RefreshTokenTTL = cfg.AccessTokenTTL

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "refresh token TTL") {
		t.Fatalf("expected refresh TTL error, got %v", err)
	}
}
