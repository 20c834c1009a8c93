package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// NotifierRateLimiter throttles outbound Telegram messages so run-failure
// storms (a broken plugin on a tight schedule) cannot hit Telegram's API caps.
type NotifierRateLimiter struct {
	log           *logrus.Logger
	bot           *telebot.Bot
	globalLimiter *rate.Limiter
	chatLimiters  map[int64]*chatLimiterEntry
	mu            sync.Mutex
}

type chatLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewNotifierRateLimiter(log *logrus.Logger, bot *telebot.Bot, globalPerSecond int) *NotifierRateLimiter {
	if globalPerSecond <= 0 {
		globalPerSecond = 30
	}
	return &NotifierRateLimiter{
		log:           log,
		bot:           bot,
		globalLimiter: rate.NewLimiter(rate.Limit(globalPerSecond), globalPerSecond),
		chatLimiters:  make(map[int64]*chatLimiterEntry),
	}
}

// Send delivers a message to the chat, waiting on both the global and
// per-chat limiter. Telegram allows roughly one message per second per chat.
func (n *NotifierRateLimiter) Send(ctx context.Context, chat *telebot.Chat, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := n.globalLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := n.chatLimiter(chat.ID).Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := n.bot.Send(chat, what, opts...)
	if err != nil {
		n.log.WithError(err).Error("Failed to send notification message")
		return nil, err
	}
	return msg, nil
}

func (n *NotifierRateLimiter) chatLimiter(chatID int64) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.chatLimiters[chatID]
	if !ok {
		entry = &chatLimiterEntry{limiter: rate.NewLimiter(rate.Every(time.Second), 1)}
		n.chatLimiters[chatID] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

// CleanupExpired drops per-chat limiters idle for longer than maxIdle.
func (n *NotifierRateLimiter) CleanupExpired(maxIdle time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for id, entry := range n.chatLimiters {
		if entry.lastAccess.Before(cutoff) {
			delete(n.chatLimiters, id)
		}
	}
}
