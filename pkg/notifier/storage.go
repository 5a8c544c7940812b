package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows inbox queries. Zero value lists everything, newest first.
type ListFilter struct {
	UnreadOnly bool
	Type       *Type
	Since      *time.Time
	Limit      int
	Offset     int
}

// NotificationStore persists notifications and serves the inbox surface.
// All reads and mutations are scoped by user ID so one user can never touch
// another user's rows.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	// CreateNotifications inserts the whole batch atomically. Either every
	// row lands or none do.
	CreateNotifications(ctx context.Context, ns []*Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error)
	UpdateNotification(ctx context.Context, n *Notification) error

	ListNotifications(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Archive(ctx context.Context, userID, id uuid.UUID) error

	// PendingDigestNotifications returns the user's unread notifications
	// created after since that have no SENT email delivery record.
	PendingDigestNotifications(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Notification, error)
}

// DeliveryStore persists per-channel delivery records. At most one record may
// exist per (notification, channel); CreateDelivery returns
// ErrDuplicateDelivery when the pair is already taken.
type DeliveryStore interface {
	CreateDelivery(ctx context.Context, r *DeliveryRecord) error
	GetDelivery(ctx context.Context, notificationID uuid.UUID, channel Channel) (*DeliveryRecord, error)
	UpdateDelivery(ctx context.Context, r *DeliveryRecord) error
	ListDeliveries(ctx context.Context, notificationID uuid.UUID) ([]*DeliveryRecord, error)
}

// PreferenceStore persists per-user notification preferences.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	SavePreferences(ctx context.Context, p *Preferences) error
	// ListDigestUsers returns the IDs of users whose digest frequency is not
	// immediate. The batcher's periodic scan iterates this set.
	ListDigestUsers(ctx context.Context) ([]uuid.UUID, error)
}

// Storage bundles the three stores behind one dependency.
type Storage interface {
	NotificationStore
	DeliveryStore
	PreferenceStore
}
