package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// Sender is the transport contract the notification engine depends on.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, html string) error
}

// Bot is a send-only Bot API client. It never polls for updates; linking a
// user's chat id to their account is the responsibility of the bot that does.
type Bot struct {
	bot     *tele.Bot
	limiter *rate.Limiter
	logger  *slog.Logger
}

// BotOption configures a Bot.
type BotOption func(*Bot)

// WithLogger sets the logger for the Bot.
func WithLogger(logger *slog.Logger) BotOption {
	return func(b *Bot) {
		b.logger = logger
	}
}

// NewBot creates a send-only Bot API client with a client-side token bucket
// sized from cfg.RatePerSec. The local limiter keeps us under the Bot API
// budget most of the time; a 429 that slips through is surfaced as a
// RateLimitedError with the server's backoff.
func NewBot(cfg Config, opts ...BotOption) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: Token is required", ErrInvalidConfig)
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 20
	}

	tb, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	b := &Bot{
		bot:     tb,
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// SendMessage delivers one HTML message to a chat. It blocks on the local
// rate limiter first, so bulk sends spread out instead of tripping the API.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, html string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := b.bot.Send(tele.ChatID(chatID), html, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		classified := classifySendError(err)
		b.logger.Debug("telegram send failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", classified.Error()))
		return classified
	}
	return nil
}

// classifySendError maps Bot API errors onto the package's error taxonomy.
func classifySendError(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &RateLimitedError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}
	switch {
	case errors.Is(err, tele.ErrBlockedByUser), errors.Is(err, tele.ErrUserIsDeactivated):
		return errors.Join(ErrFailedToSend, ErrRecipientBlocked, err)
	case errors.Is(err, tele.ErrChatNotFound):
		return errors.Join(ErrFailedToSend, ErrChatNotFound, err)
	default:
		return errors.Join(ErrFailedToSend, err)
	}
}
