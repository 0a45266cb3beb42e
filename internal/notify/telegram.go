package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// telegramTimeout bounds one Bot API request.
const telegramTimeout = 10 * time.Second

// Telegram posts alerts to one chat through the Bot API.
type Telegram struct {
	bot    telegramSender
	chatID int64
}

// NewTelegram logs in with token. endpoint overrides the Bot API URL
// pattern; "" uses the public API.
func NewTelegram(token string, chatID int64, endpoint string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram: missing bot token")
	}
	if chatID == 0 {
		return nil, errors.New("telegram: missing chat id")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: telegramTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: login: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, Subject(a)+"\n\n"+Body(a))
	msg.DisableWebPagePreview = true

	// The Bot API client takes no context; ctx still bounds the caller.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram: send: %w", ctx.Err())
	}
}
