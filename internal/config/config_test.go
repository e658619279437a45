package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "TELEGRAM_BOT_TOKEN", "PORT",
		"MAX_DEPOSIT_AMOUNT", "MATCH_WINDOW", "PROCESSOR_TIMEOUT",
		"NOTIFY_DELAY", "SETTINGS_TTL", "RUN_BOT", "RUN_API",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.RunBot || !cfg.RunAPI {
		t.Error("bot and api default to enabled")
	}
	if cfg.MatchWindow != 30*time.Minute {
		t.Errorf("MatchWindow = %s, want 30m", cfg.MatchWindow)
	}
	if cfg.ProcessorTimeout != 4*time.Second {
		t.Errorf("ProcessorTimeout = %s, want 4s", cfg.ProcessorTimeout)
	}
	if cfg.NotifyDelay != 10*time.Minute {
		t.Errorf("NotifyDelay = %s, want 10m", cfg.NotifyDelay)
	}
	if cfg.SettingsTTL != 30*time.Second {
		t.Errorf("SettingsTTL = %s, want 30s", cfg.SettingsTTL)
	}
	if cfg.MaxDepositAmount.String() != "100000" {
		t.Errorf("MaxDepositAmount = %s, want 100000", cfg.MaxDepositAmount)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RUN_BOT", "0")
	t.Setenv("MATCH_WINDOW", "15m")
	t.Setenv("MAX_DEPOSIT_AMOUNT", "50000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.RunBot {
		t.Error("RUN_BOT=0 should disable the bot")
	}
	if cfg.MatchWindow != 15*time.Minute {
		t.Errorf("MatchWindow = %s", cfg.MatchWindow)
	}
	if cfg.MaxDepositAmount.String() != "50000" {
		t.Errorf("MaxDepositAmount = %s", cfg.MaxDepositAmount)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestBadValuesFallBack(t *testing.T) {
	t.Setenv("MATCH_WINDOW", "soon")
	t.Setenv("MAX_DEPOSIT_AMOUNT", "-1")
	t.Setenv("ADMIN_CHAT_ID", "not-a-number")

	cfg := Load()
	if cfg.MatchWindow != 30*time.Minute {
		t.Errorf("MatchWindow = %s, want default", cfg.MatchWindow)
	}
	if cfg.MaxDepositAmount.String() != "100000" {
		t.Errorf("MaxDepositAmount = %s, want default", cfg.MaxDepositAmount)
	}
	if cfg.AdminChatID != 0 {
		t.Errorf("AdminChatID = %d, want 0", cfg.AdminChatID)
	}
}
