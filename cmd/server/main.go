package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kassa_panel/internal/api"
	"kassa_panel/internal/cache"
	"kassa_panel/internal/config"
	"kassa_panel/internal/db"
	"kassa_panel/internal/matcher"
	"kassa_panel/internal/security"
	"kassa_panel/internal/tgbot"
	"kassa_panel/internal/ws"
)

func main() {
	_ = godotenv.Load()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	log := zl.Sugar()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Optional Redis layer for the settings cache.
	var rdb *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		defer rdb.Close()
		log.Infof("settings cache: redis enabled")
	}
	settings := cache.NewSettings(database, rdb, cfg.SettingsTTL, time.Now, log)

	// Start bot (optional by role/env).
	var bot *tgbot.Bot
	if cfg.RunBot && strings.TrimSpace(cfg.BotToken) != "" {
		bot, err = tgbot.New(cfg, database, log)
		if err != nil {
			log.Fatalf("bot init: %v", err)
		}
	}

	hub := ws.NewHub(log)

	var processor matcher.Processor
	if strings.TrimSpace(cfg.ProcessorURL) != "" {
		processor = matcher.NewHTTPProcessor(cfg.ProcessorURL, cfg.ProcessorTimeout)
	}
	var notifier matcher.Notifier
	if bot != nil {
		notifier = bot
	}
	match := matcher.New(database, processor, notifier, hub,
		cfg.MatchWindow, cfg.ProcessorTimeout, cfg.NotifyDelay, log)

	guard := security.NewFromEnv()
	apiSrv := &api.API{
		Cfg:      cfg,
		DB:       database,
		Tg:       bot,
		Settings: settings,
		Hub:      hub,
		Guard:    guard,
		Matcher:  match,
		Log:      log,
	}

	root := chi.NewRouter()
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"run_api": cfg.RunAPI,
			"run_bot": bot != nil,
			"ts":      time.Now().Unix(),
		})
	})
	if cfg.RunAPI {
		root.Mount("/api/v1", apiSrv.Router())
	}

	useWebhook := bot != nil && shouldUseTelegramWebhook(cfg.PublicBaseURL)
	webhookSecret := strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_SECRET"))
	if webhookSecret == "" {
		webhookSecret = uuid.NewString()
	}
	webhookPath := "/telegram/webhook/" + webhookSecret

	if useWebhook {
		root.Post(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			var upd tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			bot.HandleUpdate(ctx, upd)
			w.WriteHeader(http.StatusOK)
		})
		webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + webhookPath
		if err := bot.SetWebhook(webhookURL); err != nil {
			log.Warnf("telegram setWebhook error: %v", err)
		} else {
			log.Infof("telegram webhook enabled")
		}
	} else if bot != nil {
		// If a webhook is configured on Telegram side, polling won't work.
		_ = bot.SetWebhook("")
		bot.StartPolling(ctx)
		log.Infof("telegram polling enabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("http listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = srv.Shutdown(ctxShut)
}

func shouldUseTelegramWebhook(publicBaseURL string) bool {
	if strings.TrimSpace(os.Getenv("TELEGRAM_FORCE_POLLING")) == "1" {
		return false
	}
	if strings.TrimSpace(os.Getenv("TELEGRAM_FORCE_WEBHOOK")) == "1" {
		return true
	}
	u := strings.TrimSpace(publicBaseURL)
	if !strings.HasPrefix(u, "https://") {
		return false
	}
	if strings.Contains(u, "127.0.0.1") || strings.Contains(u, "localhost") {
		return false
	}
	return true
}
