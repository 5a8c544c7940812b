package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Inbox is the read-and-mutate surface for a user's own notifications. It
// exists independently of channel delivery: a notification is listed here
// even when every outbound channel skipped or failed. Every operation is
// scoped to the owning user.
type Inbox struct {
	store  NotificationStore
	logger *slog.Logger
}

// NewInbox wires the inbox surface.
func NewInbox(store NotificationStore, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{store: store, logger: logger}
}

// List returns the user's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Notification, error) {
	ns, err := i.store.ListNotifications(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return ns, nil
}

// CountUnread returns the user's unread notification count.
func (i *Inbox) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return i.store.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications as read. A notification
// owned by another user is reported as not found, never touched.
func (i *Inbox) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return i.store.MarkRead(ctx, userID, id)
}

// MarkAllRead marks every unread notification of the user as read.
func (i *Inbox) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return i.store.MarkAllRead(ctx, userID)
}

// Archive hides a notification from the user's inbox listing.
func (i *Inbox) Archive(ctx context.Context, userID, id uuid.UUID) error {
	return i.store.Archive(ctx, userID, id)
}
