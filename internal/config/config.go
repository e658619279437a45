package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config carries every tunable the panel reads from the environment.
type Config struct {
	DatabaseURL string
	RedisURL    string

	// Telegram
	BotToken    string
	AdminChatID int64
	WebappURL   string
	RunBot      bool

	// HTTP
	Port          string
	PublicBaseURL string
	CORSOrigins   []string
	AdminToken    string
	RunAPI        bool

	// Payments
	MaxDepositAmount decimal.Decimal
	MatchWindow      time.Duration
	ProcessorURL     string
	ProcessorTimeout time.Duration
	NotifyDelay      time.Duration
	SettingsTTL      time.Duration
}

func Load() Config {
	return Config{
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/kassa?sslmode=disable"),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),

		BotToken:    strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		AdminChatID: getInt64("ADMIN_CHAT_ID", 0),
		WebappURL:   strings.TrimSpace(os.Getenv("WEBAPP_URL")),
		RunBot:      getBool("RUN_BOT", true),

		Port:          getEnv("PORT", "8080"),
		PublicBaseURL: strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")),
		CORSOrigins:   splitCSV(os.Getenv("CORS_ORIGINS")),
		AdminToken:    strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		RunAPI:        getBool("RUN_API", true),

		MaxDepositAmount: getDecimal("MAX_DEPOSIT_AMOUNT", "100000"),
		MatchWindow:      getDuration("MATCH_WINDOW", 30*time.Minute),
		ProcessorURL:     strings.TrimSpace(os.Getenv("PROCESSOR_URL")),
		ProcessorTimeout: getDuration("PROCESSOR_TIMEOUT", 4*time.Second),
		NotifyDelay:      getDuration("NOTIFY_DELAY", 10*time.Minute),
		SettingsTTL:      getDuration("SETTINGS_TTL", 30*time.Second),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	switch strings.TrimSpace(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getDecimal(key, def string) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || !d.IsPositive() {
		d, _ = decimal.NewFromString(def)
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
