package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts review notifications to one chat.
type Telegram struct {
	bot    sender
	chatID int64
	logger *slog.Logger
}

// NewTelegram authorises the bot token against the Telegram API.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram notifier authorised", "account", api.Self.UserName, "chat_id", chatID)
	return newTelegram(api, chatID, logger), nil
}

func newTelegram(bot sender, chatID int64, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger}
}

// PendingManual sends one message. Failures are logged; review still works
// without notifications.
func (t *Telegram) PendingManual(ctx context.Context, identities []string) {
	if len(identities) == 0 || ctx.Err() != nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, Message(identities))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("telegram notification failed", "count", len(identities), "error", err)
	}
}
