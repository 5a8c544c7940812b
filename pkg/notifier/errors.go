package notifier

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotificationNotFound = errors.New("notifier.errors.notification_not_found")
	ErrDeliveryNotFound     = errors.New("notifier.errors.delivery_record_not_found")
	ErrPreferencesNotFound  = errors.New("notifier.errors.preferences_not_found")
	ErrRecipientNotFound    = errors.New("notifier.errors.recipient_not_found")

	// ErrDuplicateDelivery is returned when a second DeliveryRecord for the
	// same (notification, channel) pair is inserted. The uniqueness
	// constraint makes concurrent digest scanners safe: the loser of the
	// race fails here instead of double-sending.
	ErrDuplicateDelivery = errors.New("notifier.errors.duplicate_delivery_record")

	// ErrUnknownType is returned for a NotificationType the engine has no
	// schema for. Operator bug, not a user error.
	ErrUnknownType = errors.New("notifier.errors.unknown_notification_type")

	// ErrTemplateNotRegistered is returned when dispatch needs a template
	// that was never registered. Missing templates fail loudly, never fall
	// back silently.
	ErrTemplateNotRegistered = errors.New("notifier.errors.template_not_registered")
)

// SchemaError reports context payload fields that failed validation for a
// notification type. Nothing is persisted when it is returned.
type SchemaError struct {
	Type   Type
	Fields map[string]string // field -> reason
}

func (e *SchemaError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f, reason := range e.Fields {
		fields = append(fields, f+": "+reason)
	}
	sort.Strings(fields)
	return fmt.Sprintf("invalid context for %s: %s", e.Type, strings.Join(fields, "; "))
}

// TransientDeliveryError marks a delivery failure worth retrying: network
// hiccup, rate limit, provider 5xx. RetryAfter carries a server-specified
// backoff when the transport provided one.
type TransientDeliveryError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientDeliveryError) Error() string {
	return "transient delivery failure: " + e.Err.Error()
}

func (e *TransientDeliveryError) Unwrap() error { return e.Err }

// PermanentDeliveryError marks a delivery failure no retry can fix: invalid
// address, blocked recipient, hard bounce. Unreachable means the recipient's
// channel reachability flag was cleared so CanDeliver short-circuits future
// attempts.
type PermanentDeliveryError struct {
	Err         error
	Unreachable bool
}

func (e *PermanentDeliveryError) Error() string {
	return "permanent delivery failure: " + e.Err.Error()
}

func (e *PermanentDeliveryError) Unwrap() error { return e.Err }
