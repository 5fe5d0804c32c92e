// Package alert delivers one-shot notifications when the account hits a
// configured equity target.
package alert

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Alerter interface {
	Notify(msg string) error
}

// Nop discards alerts. Used when no channel is configured.
type Nop struct{}

func (Nop) Notify(string) error { return nil }

// Telegram sends alerts to a single chat.
type Telegram struct {
	bot  *tgbotapi.BotAPI
	chat int64
	log  *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	bot.Debug = false
	log.Info("telegram connected", zap.String("bot", bot.Self.UserName))
	return &Telegram{bot: bot, chat: chatID, log: log}, nil
}

func (t *Telegram) Notify(msg string) error {
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chat, msg)); err != nil {
		t.log.Error("telegram send failed", zap.Error(err))
		return err
	}
	return nil
}

// EquityWatcher fires Notify once when equity crosses the target and
// rearms after equity falls back below it.
type EquityWatcher struct {
	Target  float64
	Alerter Alerter

	fired bool
}

// Observe reports whether an alert was sent for this observation.
func (w *EquityWatcher) Observe(equity float64) bool {
	if w.Target <= 0 || w.Alerter == nil {
		return false
	}
	if equity >= w.Target {
		if w.fired {
			return false
		}
		w.fired = true
		msg := fmt.Sprintf("Equity target reached: %.2f (target %.2f)", equity, w.Target)
		if err := w.Alerter.Notify(msg); err != nil {
			// retry on the next observation
			w.fired = false
			return false
		}
		return true
	}
	w.fired = false
	return false
}
