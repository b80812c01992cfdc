package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AQUAWATCH_TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.AccessTTL != 30*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTTL)
	}
	if cfg.RateLimitPerSecond != 10 || cfg.RateLimitBurst != 20 {
		t.Fatalf("unexpected rate limit defaults: %d/%d", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AQUAWATCH_TOKEN_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when token secret is missing")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AQUAWATCH_TOKEN_SECRET", "test-secret")
	t.Setenv("AQUAWATCH_ACCESS_TTL_MIN", "5")
	t.Setenv("AQUAWATCH_CORS_ORIGINS", "http://localhost:3000, https://aquawatch.org")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Fatalf("override not applied: %v", cfg.AccessTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://aquawatch.org" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}
