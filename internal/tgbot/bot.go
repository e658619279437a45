// Package tgbot is the panel's Telegram side: admin alerts for requests that
// need a human, and plain-text broadcasts to every chat the bot has seen.
package tgbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kassa_panel/internal/config"
	"kassa_panel/internal/db"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	db        *db.DB
	adminChat int64
	webappURL string
	log       *zap.SugaredLogger
}

func New(cfg config.Config, database *db.DB, log *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("tgbot: %w", err)
	}
	return &Bot{
		api:       api,
		db:        database,
		adminChat: cfg.AdminChatID,
		webappURL: cfg.WebappURL,
		log:       log,
	}, nil
}

func (b *Bot) SetWebhook(url string) error {
	if url == "" {
		_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return err
	}
	_, err = b.api.Request(wh)
	return err
}

func (b *Bot) StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return
			case upd := <-updates:
				b.HandleUpdate(ctx, upd)
			}
		}
	}()
}

// HandleUpdate registers the chat and answers /start with the mini-app link.
// Everything else the bot ignores; deposits go through the mini-app.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if err := b.db.EnsureBotUser(ctx, msg.Chat.ID, msg.From.UserName); err != nil {
		b.log.Warnf("tgbot ensure user: %v", err)
	}
	if !msg.IsCommand() || msg.Command() != "start" {
		return
	}
	text := "Касса открыта. Пополнение и вывод — через приложение."
	if strings.TrimSpace(b.webappURL) != "" {
		text += "\n" + b.webappURL
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if _, err := b.api.Send(reply); err != nil {
		b.log.Warnf("tgbot send: %v", err)
	}
}

// NotifyAdmins pushes an operator-actionable alert to the admin chat.
func (b *Bot) NotifyAdmins(text string) {
	if b.adminChat == 0 {
		b.log.Warnf("tgbot: admin chat not configured, dropping alert: %s", text)
		return
	}
	msg := tgbotapi.NewMessage(b.adminChat, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnf("tgbot notify admins: %v", err)
	}
}

// StartBroadcast fans text out to all known chats in the background and
// returns a job id for the logs. Blocked users are skipped, not retried.
func (b *Bot) StartBroadcast(ctx context.Context, text string) string {
	jobID := uuid.NewString()
	go func() {
		ids, err := b.db.AllChatIDs(ctx)
		if err != nil {
			b.log.Errorf("broadcast %s: list chats: %v", jobID, err)
			return
		}
		sent, failed := 0, 0
		for _, chatID := range ids {
			select {
			case <-ctx.Done():
				b.log.Infof("broadcast %s: cancelled after %d", jobID, sent)
				return
			default:
			}
			if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
				failed++
			} else {
				sent++
			}
			// Telegram allows ~30 msg/s for bots; stay under it.
			time.Sleep(40 * time.Millisecond)
		}
		b.log.Infof("broadcast %s: sent=%d failed=%d", jobID, sent, failed)
	}()
	return jobID
}
