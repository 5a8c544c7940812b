package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/letsrevel/revel-backend-sub006/pkg/logger"
)

// DispatchQueue schedules background dispatch work. Implemented by the
// engine on top of the jobs queue; a nil queue makes Notify dispatch inline,
// which tests rely on.
type DispatchQueue interface {
	EnqueueDispatch(ctx context.Context, notificationID uuid.UUID, delay time.Duration) error
}

// CreateInput is one notification in a bulk creation request.
type CreateInput struct {
	Type    Type
	UserID  uuid.UUID
	Context map[string]any
}

// Dispatcher owns the notification lifecycle: validated creation, channel
// resolution, delivery orchestration, and retry scheduling. Transport work
// happens in the channel drivers; the dispatcher persists every outcome.
type Dispatcher struct {
	storage     Storage
	resolver    RecipientResolver
	registry    *Registry
	renderer    *Renderer
	drivers     map[Channel]Driver
	queue       DispatchQueue
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueue routes Notify and retry scheduling through a background queue.
func WithQueue(q DispatchQueue) DispatcherOption {
	return func(d *Dispatcher) { d.queue = q }
}

// WithMaxAttempts caps delivery attempts per record. Values below 1 are
// ignored.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the base delay between delivery attempts. The actual
// delay grows linearly with the retry count unless the transport dictates
// its own backoff.
func WithRetryDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if delay > 0 {
			d.retryDelay = delay
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher wires a dispatcher with the given drivers. Driver order in
// the slice does not matter; dispatch iterates channels in the fixed
// in-app, email, telegram order.
func NewDispatcher(storage Storage, resolver RecipientResolver, registry *Registry, renderer *Renderer, drivers []Driver, opts ...DispatcherOption) (*Dispatcher, error) {
	if storage == nil {
		return nil, errors.New("storage is nil")
	}
	if resolver == nil {
		return nil, errors.New("recipient resolver is nil")
	}
	if registry == nil {
		return nil, errors.New("template registry is nil")
	}
	if renderer == nil {
		return nil, errors.New("renderer is nil")
	}

	byChannel := make(map[Channel]Driver, len(drivers))
	for _, drv := range drivers {
		if _, dup := byChannel[drv.Channel()]; dup {
			return nil, fmt.Errorf("duplicate driver for channel %s", drv.Channel())
		}
		byChannel[drv.Channel()] = drv
	}

	d := &Dispatcher{
		storage:     storage,
		resolver:    resolver,
		registry:    registry,
		renderer:    renderer,
		drivers:     byChannel,
		maxAttempts: 3,
		retryDelay:  30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// CreateNotification validates the context against the type's schema and
// persists a notification with empty title and body. Rendering is deferred
// to dispatch time so the recipient's locale and latest template apply.
func (d *Dispatcher) CreateNotification(ctx context.Context, t Type, userID uuid.UUID, contextData map[string]any) (*Notification, error) {
	if err := ValidateContext(t, contextData); err != nil {
		return nil, err
	}

	n := NewNotification(t, userID, contextData)
	if err := d.storage.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// BulkCreateNotifications validates every input before any write, then
// inserts the whole batch atomically. One invalid input fails the entire
// batch with nothing persisted.
func (d *Dispatcher) BulkCreateNotifications(ctx context.Context, inputs []CreateInput) ([]*Notification, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	for i, in := range inputs {
		if err := ValidateContext(in.Type, in.Context); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	ns := make([]*Notification, len(inputs))
	for i, in := range inputs {
		ns[i] = NewNotification(in.Type, in.UserID, in.Context)
	}
	if err := d.storage.CreateNotifications(ctx, ns); err != nil {
		return nil, fmt.Errorf("bulk create notifications: %w", err)
	}
	return ns, nil
}

// DetermineDeliveryChannels resolves the user's effective channel set for a
// type: preferences crossed with the type's channel policy, narrowed to
// in-app for digest-mode users. A user without stored preferences gets the
// defaults. The returned slice follows the fixed channel order; empty means
// deliver nowhere, which is not an error.
func (d *Dispatcher) DetermineDeliveryChannels(ctx context.Context, userID uuid.UUID, t Type) ([]Channel, error) {
	prefs, err := d.preferencesFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	enabled := prefs.ChannelsForType(t)
	out := make([]Channel, 0, len(enabled))
	for _, c := range AllChannels() {
		if enabled[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *Dispatcher) preferencesFor(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	prefs, err := d.storage.GetPreferences(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return NewPreferences(userID, false), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return prefs, nil
}

// Notify is the single inbound boundary: validate, persist, and schedule
// background dispatch. Only validation and persistence errors reach the
// caller; delivery failures stay inside the dispatch pipeline.
func (d *Dispatcher) Notify(ctx context.Context, t Type, userID uuid.UUID, contextData map[string]any) (uuid.UUID, error) {
	n, err := d.CreateNotification(ctx, t, userID, contextData)
	if err != nil {
		return uuid.Nil, err
	}

	if d.queue != nil {
		if err := d.queue.EnqueueDispatch(ctx, n.ID, 0); err != nil {
			d.logger.ErrorContext(ctx, "failed to enqueue dispatch",
				logger.NotificationID(n.ID), logger.Error(err))
		}
		return n.ID, nil
	}

	if err := d.Dispatch(ctx, n.ID); err != nil {
		d.logger.ErrorContext(ctx, "inline dispatch failed",
			logger.NotificationID(n.ID), logger.Error(err))
	}
	return n.ID, nil
}

// NotifyMany bulk-creates and schedules dispatch for each notification.
func (d *Dispatcher) NotifyMany(ctx context.Context, inputs []CreateInput) ([]uuid.UUID, error) {
	ns, err := d.BulkCreateNotifications(ctx, inputs)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(ns))
	for i, n := range ns {
		ids[i] = n.ID
		if d.queue != nil {
			if err := d.queue.EnqueueDispatch(ctx, n.ID, 0); err != nil {
				d.logger.ErrorContext(ctx, "failed to enqueue dispatch",
					logger.NotificationID(n.ID), logger.Error(err))
			}
			continue
		}
		if err := d.Dispatch(ctx, n.ID); err != nil {
			d.logger.ErrorContext(ctx, "inline dispatch failed",
				logger.NotificationID(n.ID), logger.Error(err))
		}
	}
	return ids, nil
}

// Dispatch delivers one notification across its effective channels. Each
// (notification, channel) pair gets exactly one delivery record; an
// already-sent record is left untouched with no transport call. A missing
// template aborts the whole dispatch loudly.
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID uuid.UUID) error {
	n, err := d.storage.GetNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}

	tmpl, err := d.registry.Get(n.Type)
	if err != nil {
		d.logger.ErrorContext(ctx, "no template registered for notification type",
			logger.NotificationID(n.ID),
			logger.NotificationType(n.Type))
		return err
	}

	recipient, err := d.resolver.Resolve(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	channels, err := d.DetermineDeliveryChannels(ctx, n.UserID, n.Type)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		d.logger.DebugContext(ctx, "no effective channels for notification",
			logger.NotificationID(n.ID),
			logger.NotificationType(n.Type))
		return nil
	}

	rc := d.renderer.Context(n, recipient)

	var retryAfter time.Duration
	for _, ch := range channels {
		if after := d.deliverChannel(ctx, rc, tmpl, ch); after > retryAfter {
			retryAfter = after
		}
	}

	if retryAfter > 0 {
		d.scheduleRetry(ctx, n.ID, retryAfter)
	}
	return nil
}

// DispatchBatch dispatches each notification, collecting per-notification
// errors instead of stopping at the first.
func (d *Dispatcher) DispatchBatch(ctx context.Context, ids []uuid.UUID) error {
	var errs []error
	for _, id := range ids {
		if err := d.Dispatch(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("dispatch %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// deliverChannel runs one channel's delivery attempt and persists the
// outcome. A non-zero return requests a retry pass for this notification
// after that delay.
func (d *Dispatcher) deliverChannel(ctx context.Context, rc *RenderContext, tmpl Template, ch Channel) time.Duration {
	n := rc.Notification

	rec, err := d.findOrCreateRecord(ctx, n.ID, ch)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to prepare delivery record",
			logger.NotificationID(n.ID),
			logger.Channel(ch), logger.Error(err))
		return 0
	}

	switch rec.Status {
	case DeliverySent, DeliverySkipped:
		return 0
	case DeliveryFailed:
		// A failed record retries in place until its budget is spent or the
		// failure was permanent.
		if rec.Terminal() || rec.RetryCount >= d.maxAttempts {
			return 0
		}
	}

	drv, ok := d.drivers[ch]
	if !ok {
		rec.markSkipped("no driver configured")
		d.persistRecord(ctx, rec)
		return 0
	}

	if !templateSupports(tmpl, ch) {
		rec.markSkipped("template does not render for channel")
		d.persistRecord(ctx, rec)
		return 0
	}

	if !drv.CanDeliver(ctx, rc.Recipient, n.Type) {
		rec.markSkipped("recipient not deliverable")
		d.persistRecord(ctx, rec)
		return 0
	}

	rec.markAttempt()

	deliverErr := drv.Deliver(ctx, rc, tmpl, rec)
	if deliverErr == nil {
		rec.markSent()
		d.persistRecord(ctx, rec)
		if ch == ChannelInApp {
			// The in-app driver rendered title and body into the row.
			if err := d.storage.UpdateNotification(ctx, n); err != nil {
				d.logger.ErrorContext(ctx, "failed to persist rendered notification",
					logger.NotificationID(n.ID), logger.Error(err))
			}
		}
		return 0
	}

	return d.handleDeliveryError(ctx, rc, rec, drv, deliverErr)
}

func (d *Dispatcher) handleDeliveryError(ctx context.Context, rc *RenderContext, rec *DeliveryRecord, drv Driver, deliverErr error) time.Duration {
	n := rc.Notification
	ch := rec.Channel

	var perm *PermanentDeliveryError
	if errors.As(deliverErr, &perm) && perm.Unreachable {
		if err := d.resolver.SetChannelReachability(ctx, rc.Recipient.ID, ch, false); err != nil {
			d.logger.ErrorContext(ctx, "failed to update recipient reachability",
				logger.UserID(rc.Recipient.ID),
				logger.Channel(ch), logger.Error(err))
		}
	}

	if drv.ShouldRetry(deliverErr) && rec.RetryCount < d.maxAttempts {
		rec.markFailed(deliverErr)
		d.persistRecord(ctx, rec)
		d.logger.WarnContext(ctx, "delivery attempt failed, will retry",
			logger.NotificationID(n.ID),
			logger.Channel(ch),
			logger.RetryCount(rec.RetryCount),
			logger.Error(deliverErr))

		delay := d.retryDelay * time.Duration(rec.RetryCount)
		var transient *TransientDeliveryError
		if errors.As(deliverErr, &transient) && transient.RetryAfter > delay {
			delay = transient.RetryAfter
		}
		return delay
	}

	rec.markFailed(deliverErr)
	rec.markTerminal()
	d.persistRecord(ctx, rec)
	d.logger.ErrorContext(ctx, "delivery failed terminally",
		logger.NotificationID(n.ID),
		logger.Channel(ch),
		logger.RetryCount(rec.RetryCount),
		logger.Error(deliverErr))
	return 0
}

func (d *Dispatcher) findOrCreateRecord(ctx context.Context, notificationID uuid.UUID, ch Channel) (*DeliveryRecord, error) {
	rec, err := d.storage.GetDelivery(ctx, notificationID, ch)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrDeliveryNotFound) {
		return nil, err
	}

	rec = NewDeliveryRecord(notificationID, ch)
	createErr := d.storage.CreateDelivery(ctx, rec)
	if errors.Is(createErr, ErrDuplicateDelivery) {
		// Lost a race with a concurrent dispatch; use the winner's record.
		return d.storage.GetDelivery(ctx, notificationID, ch)
	}
	if createErr != nil {
		return nil, createErr
	}
	return rec, nil
}

func (d *Dispatcher) persistRecord(ctx context.Context, rec *DeliveryRecord) {
	if err := d.storage.UpdateDelivery(ctx, rec); err != nil {
		d.logger.ErrorContext(ctx, "failed to persist delivery record",
			logger.NotificationID(rec.NotificationID),
			logger.Channel(rec.Channel), logger.Error(err))
	}
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, notificationID uuid.UUID, delay time.Duration) {
	if d.queue == nil {
		return
	}
	if err := d.queue.EnqueueDispatch(ctx, notificationID, delay); err != nil {
		d.logger.ErrorContext(ctx, "failed to schedule dispatch retry",
			logger.NotificationID(notificationID), logger.Error(err))
	}
}
