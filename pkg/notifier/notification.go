package notifier

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a persisted record that "user U should be told about
// context C of type T". Title and Body are empty until dispatch renders
// them for the recipient's locale; they are never filled at creation.
type Notification struct {
	ID         uuid.UUID      `json:"id"`
	Type       Type           `json:"type"`
	UserID     uuid.UUID      `json:"user_id"`
	Context    map[string]any `json:"context,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	CreatedAt  time.Time      `json:"created_at"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
}

// NewNotification creates an unrendered notification row for userID.
func NewNotification(t Type, userID uuid.UUID, contextData map[string]any) *Notification {
	return &Notification{
		ID:        uuid.New(),
		Type:      t,
		UserID:    userID,
		Context:   contextData,
		CreatedAt: time.Now(),
	}
}

// Read reports whether the owning user has read the notification.
func (n *Notification) Read() bool {
	return n.ReadAt != nil
}

// MarkRead sets the read timestamp. Idempotent: the first read wins.
func (n *Notification) MarkRead() {
	if n.ReadAt == nil {
		now := time.Now()
		n.ReadAt = &now
	}
}

// DeliveryStatus is the lifecycle state of one delivery attempt row.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// DeliveryRecord tracks delivery attempts for one (notification, channel)
// pair. The pair is unique: re-attempts mutate the same row, incrementing
// RetryCount, and never create a second record.
type DeliveryRecord struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	Channel        Channel        `json:"channel"`
	Status         DeliveryStatus `json:"status"`
	RetryCount     int            `json:"retry_count"`
	AttemptedAt    *time.Time     `json:"attempted_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewDeliveryRecord creates a pending record for a (notification, channel)
// pair.
func NewDeliveryRecord(notificationID uuid.UUID, ch Channel) *DeliveryRecord {
	return &DeliveryRecord{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Channel:        ch,
		Status:         DeliveryPending,
		CreatedAt:      time.Now(),
	}
}

// markAttempt stamps the start of a delivery attempt.
func (r *DeliveryRecord) markAttempt() {
	now := time.Now()
	r.AttemptedAt = &now
	r.RetryCount++
}

// markSent records a successful attempt.
func (r *DeliveryRecord) markSent() {
	now := time.Now()
	r.Status = DeliverySent
	r.DeliveredAt = &now
	r.ErrorMessage = ""
}

// markFailed records a failed attempt.
func (r *DeliveryRecord) markFailed(err error) {
	r.Status = DeliveryFailed
	r.ErrorMessage = err.Error()
}

// markTerminal flags a failed record as beyond retry: permanent error or
// exhausted attempt budget.
func (r *DeliveryRecord) markTerminal() {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata["terminal"] = true
}

// Terminal reports whether a failed record may never be retried.
func (r *DeliveryRecord) Terminal() bool {
	v, ok := r.Metadata["terminal"].(bool)
	return ok && v
}

// markSkipped records that the channel declined the notification without
// attempting transport (prerequisites missing, recipient unreachable).
func (r *DeliveryRecord) markSkipped(reason string) {
	r.Status = DeliverySkipped
	r.ErrorMessage = reason
}
