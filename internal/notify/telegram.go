package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram sends messages to a single chat via the Bot API. The bot runs
// without a poller: pagewatch only pushes, it never handles updates.
type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chat: &tele.Chat{ID: chatID}}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, text string) error {
	// telebot has no context-aware send; bound the call with a goroutine so
	// cancellation can't hang the notifier.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(t.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("telegram send timed out")
	}
}
