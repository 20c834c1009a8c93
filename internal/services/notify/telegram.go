package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"go-feature-platform/internal/config"
	"go-feature-platform/internal/utils"
	"go-feature-platform/pkg/ratelimit"
)

// TelegramNotifier pushes run-failure alerts to an operator chat. A nil
// notifier is valid and does nothing, so wiring stays unconditional.
type TelegramNotifier struct {
	log     *logrus.Logger
	limiter *ratelimit.NotifierRateLimiter
	chat    *telebot.Chat
}

// NewTelegramNotifier returns nil when no bot token or chat id is
// configured.
func NewTelegramNotifier(cfg *config.TelegramConfig, log *logrus.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, nil
	}
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: false,
		OnError: func(err error, c telebot.Context) {
			log.WithError(err).Error("Telegram notifier error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		log:     log,
		limiter: ratelimit.NewNotifierRateLimiter(log, bot, cfg.MaxGlobalRequestPerSecond),
		chat:    &telebot.Chat{ID: chatID},
	}, nil
}

// RunFailed sends the alert off the caller's goroutine; a Telegram outage
// must never slow down run finalization.
func (n *TelegramNotifier) RunFailed(ctx context.Context, featureName, requestID, msg string) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("⚠️ Feature run failed\nFeature: %s\nRequest: %s\n%s",
		featureName, requestID, utils.TruncateString(msg, 500))
	utils.SafeGo(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := n.limiter.Send(sendCtx, n.chat, text); err != nil {
			n.log.WithError(err).WithField("request_id", requestID).Warn("Failed to deliver failure notification")
		}
	})
}
