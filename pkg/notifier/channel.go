package notifier

import (
	"context"
	"errors"
)

// Driver delivers rendered notifications over one channel. The set of
// drivers is closed: in-app, email, telegram. Drivers classify their own
// transport errors into the delivery error taxonomy; the dispatcher owns
// persistence and retry scheduling.
type Driver interface {
	// Channel identifies the channel this driver serves.
	Channel() Channel

	// CanDeliver reports whether delivery can be attempted for this
	// recipient at all: prerequisites present and the channel reachable.
	// A false return records a skipped delivery, not a failure.
	CanDeliver(ctx context.Context, r Recipient, t Type) bool

	// Deliver renders and sends one notification. Errors are returned as
	// *TransientDeliveryError or *PermanentDeliveryError; rec may receive
	// transport metadata but status transitions stay with the dispatcher.
	Deliver(ctx context.Context, rc *RenderContext, tmpl Template, rec *DeliveryRecord) error

	// ShouldRetry reports whether a Deliver error is worth another attempt.
	ShouldRetry(err error) bool
}

// retryableError is the shared ShouldRetry classification: transient errors
// retry, permanent errors never do, unclassified errors default to retry so
// an unexpected transport failure is not silently terminal.
func retryableError(err error) bool {
	var perm *PermanentDeliveryError
	if errors.As(err, &perm) {
		return false
	}
	return true
}

// templateSupports reports whether tmpl can render for channel c.
func templateSupports(tmpl Template, c Channel) bool {
	switch c {
	case ChannelInApp:
		return true
	case ChannelEmail:
		_, ok := tmpl.(EmailTemplate)
		return ok
	case ChannelTelegram:
		_, ok := tmpl.(TelegramTemplate)
		return ok
	}
	return false
}
