// Package notify sends operator alerts to Telegram chats.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-multierror"
)

const maxMessageLength = 4096

type telegramNotifier struct {
	bot      *tgbotapi.BotAPI
	chatIDs  []int64
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTelegramNotifier connects the bot. endpoint may be empty to use the public Bot API.
func NewTelegramNotifier(token string, chatIDs []int64, cooldown time.Duration, endpoint string, hc *http.Client) (*telegramNotifier, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if hc == nil {
		hc = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %w", err)
	}

	slog.Info("authorized on telegram", "account", bot.Self.UserName, "chats", chatIDs)

	return &telegramNotifier{
		bot:      bot,
		chatIDs:  chatIDs,
		cooldown: cooldown,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}, nil
}

// Alert sends text to every operator chat. Alerts with the same key are sent at most
// once per cooldown.
func (t *telegramNotifier) Alert(ctx context.Context, key, text string) error {
	if !t.claim(key) {
		slog.DebugContext(ctx, "alert suppressed", "key", key)
		return nil
	}

	if r := []rune(text); len(r) > maxMessageLength {
		text = string(r[:maxMessageLength])
	}

	var result *multierror.Error
	for _, chatID := range t.chatIDs {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			result = multierror.Append(result, fmt.Errorf("sending alert to chat %d: %w", chatID, err))
		}
	}
	return result.ErrorOrNil()
}

func (t *telegramNotifier) claim(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.lastSent[key] = now
	return true
}

type nop struct{}

// Nop drops every alert. It is used when no bot token is configured.
func Nop() nop {
	return nop{}
}

func (nop) Alert(ctx context.Context, key, text string) error {
	slog.DebugContext(ctx, "alert dropped, notifier disabled", "key", key)
	return nil
}
