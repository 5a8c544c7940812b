package telegram

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig = errors.New("telegram.errors.invalid_config")
	ErrFailedToSend  = errors.New("telegram.errors.failed_to_send")

	// ErrRecipientBlocked means the user blocked the bot. Retrying cannot
	// succeed until the user unblocks it.
	ErrRecipientBlocked = errors.New("telegram.errors.recipient_blocked")

	// ErrChatNotFound means the chat id is stale or the user never started
	// a conversation with the bot.
	ErrChatNotFound = errors.New("telegram.errors.chat_not_found")
)

// RateLimitedError reports a 429 from the Bot API with the server-specified
// backoff. The send may be retried after RetryAfter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("telegram: rate limited, retry after %s", e.RetryAfter)
}
