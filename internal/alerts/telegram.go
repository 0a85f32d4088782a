// Package alerts mirrors infrastructure-level pipeline failures to an
// operator Telegram chat. User-facing notifications stay on WhatsApp; this
// channel only tells the operator that a collaborator is misbehaving.
package alerts

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gastobot/internal/domain"
)

// Alerter reports an infrastructure failure. NopAlerter satisfies it when
// alerts are disabled.
type Alerter interface {
	Alert(kind domain.FailureKind, eventID string, err error)
}

// NopAlerter discards alerts.
type NopAlerter struct{}

func (NopAlerter) Alert(domain.FailureKind, string, error) {}

// TelegramAlerter sends alerts to a fixed admin chat.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewTelegramAlerter(token string, chatID int64, logger *slog.Logger) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramAlerter{bot: bot, chatID: chatID, logger: logger}, nil
}

// Alert sends one message per failure. Only collaborator-infrastructure
// kinds are worth waking an operator for.
func (a *TelegramAlerter) Alert(kind domain.FailureKind, eventID string, err error) {
	switch kind {
	case domain.FailExtraction, domain.FailPersistence, domain.FailMedia:
	default:
		return
	}

	text := fmt.Sprintf("gastobot: %s on event %s: %v", kind, eventID, err)
	msg := tgbotapi.NewMessage(a.chatID, text)
	if _, sendErr := a.bot.Send(msg); sendErr != nil {
		a.logger.Error("telegram alert failed", "error", sendErr)
	}
}
