package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("email.errors.failed_to_send_email")
	ErrInvalidConfig     = errors.New("email.errors.invalid_config")
	ErrInvalidMessage    = errors.New("email.errors.invalid_message")

	// ErrInvalidRecipient marks addresses the provider rejected outright
	// (malformed address, missing domain). Retrying cannot succeed.
	ErrInvalidRecipient = errors.New("email.errors.invalid_recipient")

	// ErrInactiveRecipient marks addresses on the provider's suppression
	// list (hard bounce, spam complaint). Retrying cannot succeed.
	ErrInactiveRecipient = errors.New("email.errors.inactive_recipient")

	// ErrRateLimited signals the provider asked us to slow down. The send
	// may be retried after a backoff.
	ErrRateLimited = errors.New("email.errors.rate_limited")
)
