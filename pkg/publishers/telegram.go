package publishers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMessageLimit = 4096
	telegramTimeout      = 10 * time.Second
)

// telegramPublisher posts a plain-text headline list to one chat.
type telegramPublisher struct {
	id     string
	chatID int64
	bot    *tgbotapi.BotAPI
	log    Logger
}

func newTelegramPublisher(_ context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("publisher %q missing telegram configuration", cfg.ID)
	}
	endpoint := cfg.Telegram.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, endpoint, &http.Client{Timeout: telegramTimeout})
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	return &telegramPublisher{
		id:     cfg.ID,
		chatID: cfg.Telegram.ChatID,
		bot:    bot,
		log:    ensureLogger(log),
	}, nil
}

func (p *telegramPublisher) ID() string   { return p.id }
func (p *telegramPublisher) Type() string { return TypeTelegram }

// Publish sends the headlines. The bot client has no context support, so a
// cancelled ctx is only checked up front.
func (p *telegramPublisher) Publish(ctx context.Context, evt DigestEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(p.chatID, telegramText(evt))
	msg.DisableWebPagePreview = true

	sent, err := p.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", p.chatID, err)
	}

	p.log.DebugObj("telegram publisher delivered event", "publisher_telegram_delivery", map[string]any{
		"publisher_id": p.id,
		"run_id":       evt.RunID,
		"message_id":   sent.MessageID,
	})
	return nil
}

// telegramText renders the event as a plain-text headline list.
func telegramText(evt DigestEvent) string {
	var b strings.Builder
	b.WriteString(evt.Subject)
	for _, s := range evt.Sections {
		b.WriteString("\n\n")
		b.WriteString(strings.ToUpper(s.Name))
		for _, a := range s.Articles {
			b.WriteString("\n• ")
			b.WriteString(a.Title)
			b.WriteString("\n")
			b.WriteString(a.URL)
		}
	}
	return truncateRunes(b.String(), telegramMessageLimit)
}
