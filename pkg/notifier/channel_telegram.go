package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/letsrevel/revel-backend-sub006/pkg/telegram"
)

// TelegramDriver delivers notifications to a linked telegram chat. The
// underlying client rate limits itself; flood errors surface here with the
// server-mandated backoff.
type TelegramDriver struct {
	sender telegram.Sender
}

// NewTelegramDriver wires the telegram channel driver on top of a sender.
func NewTelegramDriver(sender telegram.Sender) (*TelegramDriver, error) {
	if sender == nil {
		return nil, errors.New("telegram sender is nil")
	}
	return &TelegramDriver{sender: sender}, nil
}

func (d *TelegramDriver) Channel() Channel { return ChannelTelegram }

func (d *TelegramDriver) CanDeliver(ctx context.Context, r Recipient, t Type) bool {
	return r.CanReceiveTelegram()
}

func (d *TelegramDriver) Deliver(ctx context.Context, rc *RenderContext, tmpl Template, rec *DeliveryRecord) error {
	tt, ok := tmpl.(TelegramTemplate)
	if !ok {
		return &PermanentDeliveryError{Err: fmt.Errorf("template for %s has no telegram rendering", rc.Notification.Type)}
	}

	body := telegram.SanitizeHTML(tt.TelegramBody(rc))
	if err := d.sender.SendMessage(ctx, rc.Recipient.TelegramChatID, body); err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

func (d *TelegramDriver) ShouldRetry(err error) bool {
	return retryableError(err)
}

// classifyTelegramError maps client errors onto the delivery taxonomy.
// A blocked bot or vanished chat is permanent and marks the chat
// unreachable; flood control carries the server backoff through as
// transient.
func classifyTelegramError(err error) error {
	var rl *telegram.RateLimitedError
	if errors.As(err, &rl) {
		return &TransientDeliveryError{Err: err, RetryAfter: rl.RetryAfter}
	}
	switch {
	case errors.Is(err, telegram.ErrRecipientBlocked),
		errors.Is(err, telegram.ErrChatNotFound):
		return &PermanentDeliveryError{Err: err, Unreachable: true}
	default:
		return &TransientDeliveryError{Err: err}
	}
}
