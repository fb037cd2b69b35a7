package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HOST", "PORT", "DATABASE_URL", "CORS_ORIGIN", "WELCOME_MESSAGE",
		"AUTO_RESPONSE_MESSAGE", "AUTO_RESPONSE_DELAY_MS", "AUTO_RESPONSE_MODE",
		"SESSION_SECRET", "SESSION_MAX_AGE_HOURS", "BCRYPT_COST", "ENV",
		"OPENAI_API_KEY", "OPENAI_MODEL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "3010" {
		t.Errorf("default port: got %q", cfg.Port)
	}
	if cfg.CORSOrigin != "*" {
		t.Errorf("default cors origin: got %q", cfg.CORSOrigin)
	}
	if cfg.AutoResponseDelay != time.Second {
		t.Errorf("default auto-response delay: got %v", cfg.AutoResponseDelay)
	}
	if cfg.AutoResponseMode != "static" {
		t.Errorf("default auto-response mode: got %q", cfg.AutoResponseMode)
	}
	if cfg.SessionTTL != 30*24*time.Hour {
		t.Errorf("default session ttl: got %v", cfg.SessionTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("default bcrypt cost: got %d", cfg.BcryptCost)
	}
	if cfg.SecureCookies {
		t.Error("secure cookies must be off outside production")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("default logging: %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("AUTO_RESPONSE_DELAY_MS", "250")
	t.Setenv("SESSION_MAX_AGE_HOURS", "1")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("ENV", "production")
	t.Setenv("AUTO_RESPONSE_MODE", "openai")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.AutoResponseDelay != 250*time.Millisecond {
		t.Errorf("delay: got %v", cfg.AutoResponseDelay)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("session ttl: got %v", cfg.SessionTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("bcrypt cost: got %d", cfg.BcryptCost)
	}
	if !cfg.SecureCookies {
		t.Error("secure cookies must be on in production")
	}
	if cfg.AutoResponseMode != "openai" {
		t.Errorf("mode: got %q", cfg.AutoResponseMode)
	}
}

func TestLoadBadNumbersFallBack(t *testing.T) {
	t.Setenv("AUTO_RESPONSE_DELAY_MS", "soon")
	t.Setenv("BCRYPT_COST", "high")

	cfg := Load()
	if cfg.AutoResponseDelay != time.Second {
		t.Errorf("delay fallback: got %v", cfg.AutoResponseDelay)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("bcrypt fallback: got %d", cfg.BcryptCost)
	}
}
