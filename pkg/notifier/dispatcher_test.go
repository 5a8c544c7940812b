package notifier_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/email"
	"github.com/letsrevel/revel-backend-sub006/pkg/notifier"
	"github.com/letsrevel/revel-backend-sub006/pkg/telegram"
)

type fakeEmailSender struct {
	mu     sync.Mutex
	sent   []email.Message
	errs   []error
	always error
	calls  int
}

func (f *fakeEmailSender) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.always != nil {
		return f.always
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmailSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTelegramSender struct {
	mu     sync.Mutex
	sent   []string
	always error
	calls  int
}

func (f *fakeTelegramSender) SendMessage(ctx context.Context, chatID int64, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.always != nil {
		return f.always
	}
	f.sent = append(f.sent, html)
	return nil
}

func (f *fakeTelegramSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type queuedDispatch struct {
	notificationID uuid.UUID
	delay          time.Duration
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []queuedDispatch
}

func (q *fakeQueue) EnqueueDispatch(ctx context.Context, notificationID uuid.UUID, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, queuedDispatch{notificationID: notificationID, delay: delay})
	return nil
}

type dispatcherFixture struct {
	storage    *notifier.MemoryStorage
	dir        *notifier.MemoryDirectory
	emails     *fakeEmailSender
	tg         *fakeTelegramSender
	dispatcher *notifier.Dispatcher
}

func newDispatcherFixture(t *testing.T, opts ...notifier.DispatcherOption) *dispatcherFixture {
	t.Helper()

	storage := notifier.NewMemoryStorage()
	dir := notifier.NewMemoryDirectory()

	translator, err := notifier.NewTranslator()
	require.NoError(t, err)

	registry := notifier.NewRegistry(nil)
	registry.RegisterDefaults()

	emails := &fakeEmailSender{}
	tg := &fakeTelegramSender{}

	emailDrv, err := notifier.NewEmailDriver(emails)
	require.NoError(t, err)
	tgDrv, err := notifier.NewTelegramDriver(tg)
	require.NoError(t, err)

	drivers := []notifier.Driver{notifier.NewInAppDriver(), emailDrv, tgDrv}

	d, err := notifier.NewDispatcher(storage, dir, registry, notifier.NewRenderer(translator, nil), drivers, opts...)
	require.NoError(t, err)

	return &dispatcherFixture{storage: storage, dir: dir, emails: emails, tg: tg, dispatcher: d}
}

func (f *dispatcherFixture) seedRecipient(t *testing.T) notifier.Recipient {
	t.Helper()
	r := notifier.Recipient{
		ID:                uuid.New(),
		Name:              "Ada",
		Email:             "ada@example.com",
		EmailVerified:     true,
		EmailReachable:    true,
		TelegramChatID:    4242,
		TelegramReachable: true,
		Locale:            "en",
	}
	f.dir.Put(r)
	return r
}

func (f *dispatcherFixture) savePrefs(t *testing.T, p *notifier.Preferences) {
	t.Helper()
	require.NoError(t, f.storage.SavePreferences(context.Background(), p))
}

func eventContext() map[string]any {
	return map[string]any{
		"event_id":   uuid.NewString(),
		"event_name": "Summer Meetup",
		"starts_at":  time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC),
	}
}

func TestDispatcherCreateNotification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores unrendered row", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)

		// Rendering happens at delivery time, never at creation.
		assert.Empty(t, n.Title)
		assert.Empty(t, n.Body)
		assert.False(t, n.CreatedAt.IsZero())

		stored, err := f.storage.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Title)
		assert.Empty(t, stored.Body)
		assert.Nil(t, stored.ReadAt)
	})

	t.Run("rejects invalid context", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		_, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, map[string]any{
			"event_name": "Summer Meetup",
		})

		var schemaErr *notifier.SchemaError
		require.ErrorAs(t, err, &schemaErr)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		_, err := f.dispatcher.CreateNotification(ctx, notifier.Type("comet_sighted"), r.ID, nil)
		require.ErrorIs(t, err, notifier.ErrUnknownType)
	})
}

func TestDispatcherBulkCreateNotifications(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates all rows", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		inputs := []notifier.CreateInput{
			{Type: notifier.TypeEventReminder, UserID: r.ID, Context: eventContext()},
			{Type: notifier.TypeSystemAnnouncement, UserID: r.ID, Context: map[string]any{
				"subject": "Maintenance",
				"message": "Downtime tonight at 02:00 UTC.",
			}},
		}

		ns, err := f.dispatcher.BulkCreateNotifications(ctx, inputs)
		require.NoError(t, err)
		require.Len(t, ns, 2)

		listed, err := f.storage.ListNotifications(ctx, r.ID, notifier.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})

	t.Run("one invalid input creates nothing", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		inputs := []notifier.CreateInput{
			{Type: notifier.TypeEventReminder, UserID: r.ID, Context: eventContext()},
			{Type: notifier.TypeEventReminder, UserID: r.ID, Context: map[string]any{"event_name": "no id"}},
		}

		_, err := f.dispatcher.BulkCreateNotifications(ctx, inputs)
		require.Error(t, err)

		listed, err := f.storage.ListNotifications(ctx, r.ID, notifier.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, listed, "a failed batch must not leave partial rows")
	})
}

func TestDispatcherDetermineDeliveryChannels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("defaults when no preferences saved", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		channels, err := f.dispatcher.DetermineDeliveryChannels(ctx, r.ID, notifier.TypeEventReminder)
		require.NoError(t, err)
		assert.ElementsMatch(t, notifier.AllChannels(), channels)
	})

	t.Run("silenced user gets no channels", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.DisableAll()
		f.savePrefs(t, p)

		channels, err := f.dispatcher.DetermineDeliveryChannels(ctx, r.ID, notifier.TypeEventReminder)
		require.NoError(t, err)
		assert.Empty(t, channels)
	})

	t.Run("digest user keeps only in-app", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.DigestFrequency = notifier.DigestDaily
		f.savePrefs(t, p)

		channels, err := f.dispatcher.DetermineDeliveryChannels(ctx, r.ID, notifier.TypeEventReminder)
		require.NoError(t, err)
		assert.Equal(t, []notifier.Channel{notifier.ChannelInApp}, channels)
	})
}

func TestDispatcherDispatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delivers email and in-app", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelTelegram] = false
		f.savePrefs(t, p)

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		recs, err := f.storage.ListDeliveries(ctx, n.ID)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, rec := range recs {
			assert.Equal(t, notifier.DeliverySent, rec.Status, "channel %s", rec.Channel)
			assert.Equal(t, 1, rec.RetryCount)
			require.NotNil(t, rec.DeliveredAt)
		}

		require.Equal(t, 1, f.emails.callCount())
		assert.Equal(t, r.Email, f.emails.sent[0].To)
		assert.Contains(t, f.emails.sent[0].Subject, "Summer Meetup")
		assert.Zero(t, f.tg.callCount())

		stored, err := f.storage.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.Title)
		assert.NotEmpty(t, stored.Body)
	})

	t.Run("silenced user yields zero records", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.DisableAll()
		f.savePrefs(t, p)

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		recs, err := f.storage.ListDeliveries(ctx, n.ID)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Zero(t, f.emails.callCount())
		assert.Zero(t, f.tg.callCount())
	})

	t.Run("already sent record is never resent", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelTelegram] = false
		p.EnabledChannels[notifier.ChannelInApp] = false
		f.savePrefs(t, p)

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)

		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		assert.Equal(t, 1, f.emails.callCount())

		rec, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliverySent, rec.Status)
		assert.Equal(t, 1, rec.RetryCount)
	})

	t.Run("missing template fails loudly and leaves the row alone", func(t *testing.T) {
		t.Parallel()

		storage := notifier.NewMemoryStorage()
		dir := notifier.NewMemoryDirectory()
		translator, err := notifier.NewTranslator()
		require.NoError(t, err)

		// Empty registry: the type is schema-known but has no template.
		d, err := notifier.NewDispatcher(storage, dir, notifier.NewRegistry(nil),
			notifier.NewRenderer(translator, nil), []notifier.Driver{notifier.NewInAppDriver()})
		require.NoError(t, err)

		userID := uuid.New()
		dir.Put(notifier.Recipient{ID: userID, Name: "Ada", Locale: "en"})

		n, err := d.CreateNotification(ctx, notifier.TypeEventReminder, userID, eventContext())
		require.NoError(t, err)

		err = d.Dispatch(ctx, n.ID)
		require.ErrorIs(t, err, notifier.ErrTemplateNotRegistered)

		recs, err := storage.ListDeliveries(ctx, n.ID)
		require.NoError(t, err)
		assert.Empty(t, recs)

		stored, err := storage.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Title)
	})

	t.Run("transient failure retries and then succeeds", func(t *testing.T) {
		t.Parallel()

		queue := &fakeQueue{}
		f := newDispatcherFixture(t, notifier.WithQueue(queue), notifier.WithRetryDelay(time.Minute))
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelTelegram] = false
		p.EnabledChannels[notifier.ChannelInApp] = false
		f.savePrefs(t, p)

		f.emails.errs = []error{email.ErrFailedToSendEmail}

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)

		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		rec, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliveryFailed, rec.Status)
		assert.Equal(t, 1, rec.RetryCount)
		assert.NotEmpty(t, rec.ErrorMessage)
		assert.Nil(t, rec.DeliveredAt)

		require.Len(t, queue.enqueued, 1)
		assert.Equal(t, n.ID, queue.enqueued[0].notificationID)
		assert.Equal(t, time.Minute, queue.enqueued[0].delay)

		// The worker re-runs the dispatch after the delay.
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		rec, err = f.storage.GetDelivery(ctx, n.ID, notifier.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliverySent, rec.Status)
		assert.Equal(t, 2, rec.RetryCount)
		assert.Empty(t, rec.ErrorMessage)
		require.NotNil(t, rec.DeliveredAt)
		assert.Len(t, queue.enqueued, 1, "a successful retry must not re-enqueue")
	})

	t.Run("transient failures stop after the attempt budget", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t, notifier.WithMaxAttempts(3))
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelTelegram] = false
		p.EnabledChannels[notifier.ChannelInApp] = false
		f.savePrefs(t, p)

		f.emails.always = email.ErrFailedToSendEmail

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)

		for range 3 {
			require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))
		}
		assert.Equal(t, 3, f.emails.callCount())

		rec, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliveryFailed, rec.Status)
		assert.Equal(t, 3, rec.RetryCount)

		// The budget is spent; further dispatches never touch the transport.
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))
		assert.Equal(t, 3, f.emails.callCount())
	})

	t.Run("rate limit backoff overrides the retry delay", func(t *testing.T) {
		t.Parallel()

		queue := &fakeQueue{}
		f := newDispatcherFixture(t, notifier.WithQueue(queue), notifier.WithRetryDelay(time.Minute))
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelEmail] = false
		p.EnabledChannels[notifier.ChannelInApp] = false
		f.savePrefs(t, p)

		f.tg.always = &telegram.RateLimitedError{RetryAfter: 5 * time.Minute}

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		rec, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelTelegram)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliveryFailed, rec.Status)

		require.Len(t, queue.enqueued, 1)
		assert.Equal(t, 5*time.Minute, queue.enqueued[0].delay)
	})

	t.Run("permanent failure marks the channel unreachable", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelEmail] = false
		p.EnabledChannels[notifier.ChannelInApp] = false
		f.savePrefs(t, p)

		f.tg.always = telegram.ErrRecipientBlocked

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		rec, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelTelegram)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliveryFailed, rec.Status)
		assert.Equal(t, 1, rec.RetryCount)
		assert.Equal(t, 1, f.tg.callCount())

		got, err := f.dir.Resolve(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.TelegramReachable)

		// Later notifications to the same user skip the dead channel.
		n2, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Dispatch(ctx, n2.ID))

		rec2, err := f.storage.GetDelivery(ctx, n2.ID, notifier.ChannelTelegram)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliverySkipped, rec2.Status)
		assert.Equal(t, 1, f.tg.callCount())
	})

	t.Run("unverified email is skipped", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		userID := uuid.New()
		f.dir.Put(notifier.Recipient{
			ID:             userID,
			Name:           "Ada",
			Email:          "ada@example.com",
			EmailReachable: true,
			Locale:         "en",
		})

		p := notifier.NewPreferences(userID, false)
		p.EnabledChannels[notifier.ChannelTelegram] = false
		f.savePrefs(t, p)

		n, err := f.dispatcher.CreateNotification(ctx, notifier.TypeEventReminder, userID, eventContext())
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Dispatch(ctx, n.ID))

		rec, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliverySkipped, rec.Status)
		assert.Zero(t, f.emails.callCount())

		inApp, err := f.storage.GetDelivery(ctx, n.ID, notifier.ChannelInApp)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliverySent, inApp.Status)
	})
}

func TestDispatcherNotify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("with queue enqueues instead of dispatching inline", func(t *testing.T) {
		t.Parallel()

		queue := &fakeQueue{}
		f := newDispatcherFixture(t, notifier.WithQueue(queue))
		r := f.seedRecipient(t)

		id, err := f.dispatcher.Notify(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, id)

		require.Len(t, queue.enqueued, 1)
		assert.Equal(t, id, queue.enqueued[0].notificationID)
		assert.Zero(t, queue.enqueued[0].delay)
		assert.Zero(t, f.emails.callCount())
	})

	t.Run("without queue dispatches inline", func(t *testing.T) {
		t.Parallel()

		f := newDispatcherFixture(t)
		r := f.seedRecipient(t)

		p := notifier.NewPreferences(r.ID, false)
		p.EnabledChannels[notifier.ChannelTelegram] = false
		f.savePrefs(t, p)

		id, err := f.dispatcher.Notify(ctx, notifier.TypeEventReminder, r.ID, eventContext())
		require.NoError(t, err)

		rec, err := f.storage.GetDelivery(ctx, id, notifier.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifier.DeliverySent, rec.Status)
	})
}
