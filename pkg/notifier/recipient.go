package notifier

import (
	"context"

	"github.com/google/uuid"
)

// Recipient is the engine's view of a deliverable user. It carries only the
// fields the channel drivers need; the application resolves it from its own
// user model via a RecipientResolver.
type Recipient struct {
	ID                uuid.UUID
	Name              string
	Email             string
	EmailVerified     bool
	EmailReachable    bool
	TelegramChatID    int64
	TelegramReachable bool
	Locale            string
	Guest             bool
}

// CanReceiveEmail reports whether the email driver may attempt delivery.
func (r Recipient) CanReceiveEmail() bool {
	return r.Email != "" && r.EmailVerified && r.EmailReachable
}

// CanReceiveTelegram reports whether the telegram driver may attempt delivery.
func (r Recipient) CanReceiveTelegram() bool {
	return r.TelegramChatID != 0 && r.TelegramReachable
}

// RecipientResolver looks up delivery details for a user. Implemented by the
// application on top of its user storage.
type RecipientResolver interface {
	// Resolve returns the recipient for the given user ID, or
	// ErrRecipientNotFound when the user does not exist.
	Resolve(ctx context.Context, userID uuid.UUID) (Recipient, error)

	// SetChannelReachability flips the reachability flag for one channel,
	// recorded when a driver reports the recipient permanently unreachable.
	SetChannelReachability(ctx context.Context, userID uuid.UUID, channel Channel, reachable bool) error
}
