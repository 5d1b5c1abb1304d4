// Package notify delivers operator notifications. Telegram when a
// token is configured, process log otherwise.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"arb_bot/pkg/logger"
)

type Notifier interface {
	Send(text string)
	Sendf(format string, args ...interface{})
}

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (n *TelegramNotifier) Sendf(format string, args ...interface{}) {
	n.Send(fmt.Sprintf(format, args...))
}

// LogNotifier writes notifications to the process log. Used when no
// telegram token is configured and in tests.
type LogNotifier struct{}

func (LogNotifier) Send(text string) { logger.Info("notify: %s", text) }

func (LogNotifier) Sendf(format string, args ...interface{}) {
	logger.Info("notify: "+format, args...)
}
