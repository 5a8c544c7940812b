package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/letsrevel/revel-backend-sub006/pkg/email"
	"github.com/letsrevel/revel-backend-sub006/pkg/logger"
)

// digestSendWindow is how far from the preferred send time a daily or
// weekly digest may still go out. The periodic scan runs on a coarse
// cadence, so an exact-minute match would skip users forever.
const digestSendWindow = 30 * time.Minute

// maxDigestItemsPerType caps the per-type item list in a digest; the rest
// collapses into a count.
const maxDigestItemsPerType = 5

// Batcher assembles and sends digest emails for users who opted out of
// immediate email delivery. One digest email covers every pending
// notification since the user's previous window; each included notification
// gets a SENT email record so it is never digested twice.
type Batcher struct {
	storage    Storage
	resolver   RecipientResolver
	registry   *Registry
	renderer   *Renderer
	translator *Translator
	linker     *UnsubscribeLinker
	sender     email.Sender
	logger     *slog.Logger
}

// NewBatcher wires a digest batcher. linker may be nil; the digest then
// carries no unsubscribe link.
func NewBatcher(storage Storage, resolver RecipientResolver, registry *Registry, renderer *Renderer, translator *Translator, linker *UnsubscribeLinker, sender email.Sender, logger *slog.Logger) (*Batcher, error) {
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
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	if sender == nil {
		return nil, errors.New("email sender is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		storage:    storage,
		resolver:   resolver,
		registry:   registry,
		renderer:   renderer,
		translator: translator,
		linker:     linker,
		sender:     sender,
		logger:     logger,
	}, nil
}

// PendingForDigest returns the user's notifications eligible for the next
// digest: created after since, unread, and never emailed.
func (b *Batcher) PendingForDigest(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Notification, error) {
	return b.storage.PendingDigestNotifications(ctx, userID, since)
}

// ShouldSendNow reports whether prefs call for a digest at the given time.
// A user gets at most one digest per frequency period: the gap since
// LastDigestAt must cover the period before anything else is considered.
// Hourly digests then send on the next scan; daily and weekly digests send
// within the window around the preferred send time, weekly additionally
// only on the configured weekday.
func ShouldSendNow(prefs *Preferences, now time.Time) bool {
	if prefs.LastDigestAt != nil && now.Sub(*prefs.LastDigestAt) < minDigestGap(prefs.DigestFrequency) {
		return false
	}
	switch prefs.DigestFrequency {
	case DigestHourly:
		return true
	case DigestDaily:
		return withinSendWindow(prefs, now)
	case DigestWeekly:
		return now.Weekday() == prefs.DigestWeekday && withinSendWindow(prefs, now)
	default:
		return false
	}
}

// minDigestGap is the minimum spacing between two digests of a frequency.
// Daily and weekly leave slack for the scan landing at the far edges of
// consecutive send windows.
func minDigestGap(f DigestFrequency) time.Duration {
	switch f {
	case DigestHourly:
		return time.Hour
	case DigestWeekly:
		return 7*24*time.Hour - 2*digestSendWindow
	default:
		return 24*time.Hour - 2*digestSendWindow
	}
}

func withinSendWindow(prefs *Preferences, now time.Time) bool {
	target := time.Date(now.Year(), now.Month(), now.Day(), prefs.DigestSendHour, prefs.DigestSendMinute, 0, 0, now.Location())
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= digestSendWindow
}

// windowStart returns how far back the digest window reaches for prefs.
// Anchoring to the previous digest keeps notifications from falling
// through when a scan window was missed entirely; the frequency lookback
// only applies before the first digest.
func windowStart(prefs *Preferences, now time.Time) time.Time {
	if prefs.LastDigestAt != nil {
		return *prefs.LastDigestAt
	}
	switch prefs.DigestFrequency {
	case DigestHourly:
		return now.Add(-time.Hour)
	case DigestWeekly:
		return now.AddDate(0, 0, -7)
	default:
		return now.AddDate(0, 0, -1)
	}
}

// BuildDigest renders the digest subject and bodies for the given
// notifications, grouped by type with per-item summaries and a single
// unsubscribe link.
func (b *Batcher) BuildDigest(recipient Recipient, notifs []*Notification) (subject, textBody, htmlBody string, err error) {
	if len(notifs) == 0 {
		return "", "", "", errors.New("digest has no notifications")
	}

	locale := b.translator.MatchLocale(recipient.Locale)
	count := strconv.Itoa(len(notifs))

	groups := make(map[Type][]*Notification)
	var order []Type
	for _, n := range notifs {
		if _, seen := groups[n.Type]; !seen {
			order = append(order, n.Type)
		}
		groups[n.Type] = append(groups[n.Type], n)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	subject = b.translator.T(locale, "digest.subject", "count", count)

	var unsubscribeURL string
	if b.linker != nil {
		unsubscribeURL = b.linker.URLForAll(recipient.ID)
	}

	var text, htm strings.Builder
	text.WriteString(b.translator.T(locale, "digest.greeting", "name", recipient.Name))
	text.WriteString("\n\n")
	text.WriteString(b.translator.T(locale, "digest.intro"))
	text.WriteString("\n")

	htm.WriteString("<p>")
	htm.WriteString(html.EscapeString(b.translator.T(locale, "digest.greeting", "name", recipient.Name)))
	htm.WriteString("</p>\n<p>")
	htm.WriteString(html.EscapeString(b.translator.T(locale, "digest.intro")))
	htm.WriteString("</p>\n")

	for _, t := range order {
		items := groups[t]

		text.WriteString("\n")
		htm.WriteString("<ul>\n")

		shown := items
		if len(shown) > maxDigestItemsPerType {
			shown = shown[:maxDigestItemsPerType]
		}
		for _, n := range shown {
			line := b.summaryLine(n, recipient)
			text.WriteString("- " + line + "\n")
			htm.WriteString("<li>" + html.EscapeString(line) + "</li>\n")
		}
		if rest := len(items) - len(shown); rest > 0 {
			more := b.translator.T(locale, "digest.group_more", "count", strconv.Itoa(rest))
			text.WriteString("- " + more + "\n")
			htm.WriteString("<li>" + html.EscapeString(more) + "</li>\n")
		}
		htm.WriteString("</ul>\n")
	}

	text.WriteString("\n")
	text.WriteString(b.translator.T(locale, "digest.footer"))
	htm.WriteString("<p>")
	htm.WriteString(html.EscapeString(b.translator.T(locale, "digest.footer")))
	htm.WriteString("</p>\n")

	if unsubscribeURL != "" {
		label := b.translator.T(locale, "unsubscribe.label")
		text.WriteString("\n" + label + ": " + unsubscribeURL)
		htm.WriteString("<p><a href=\"" + html.EscapeString(unsubscribeURL) + "\">" + html.EscapeString(label) + "</a></p>\n")
	}

	return subject, text.String(), htm.String(), nil
}

// summaryLine renders one notification's digest line via its template's
// in-app title, falling back to the raw type when no template is
// registered.
func (b *Batcher) summaryLine(n *Notification, recipient Recipient) string {
	tmpl, err := b.registry.Get(n.Type)
	if err != nil {
		return string(n.Type)
	}
	rc := b.renderer.Context(n, recipient)
	return tmpl.InAppTitle(rc)
}

// SendDigest sends one digest email and records a SENT email delivery for
// every included notification. A duplicate record means a concurrent scan
// already claimed that notification; the duplicate is logged and skipped,
// never re-sent.
func (b *Batcher) SendDigest(ctx context.Context, recipient Recipient, notifs []*Notification) error {
	subject, textBody, htmlBody, err := b.BuildDigest(recipient, notifs)
	if err != nil {
		return err
	}

	msg := email.Message{
		To:       recipient.Email,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
		Tag:      "digest",
	}
	if err := b.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	now := time.Now()
	for _, n := range notifs {
		rec := NewDeliveryRecord(n.ID, ChannelEmail)
		rec.Status = DeliverySent
		rec.AttemptedAt = &now
		rec.DeliveredAt = &now
		rec.Metadata = map[string]any{"digest": true}

		if err := b.storage.CreateDelivery(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicateDelivery) {
				b.logger.DebugContext(ctx, "notification already claimed by another digest",
					logger.NotificationID(n.ID))
				continue
			}
			b.logger.ErrorContext(ctx, "failed to record digest delivery",
				logger.NotificationID(n.ID), logger.Error(err))
		}
	}

	b.logger.InfoContext(ctx, "digest sent",
		logger.UserID(recipient.ID),
		slog.Int("notifications", len(notifs)))
	return nil
}

// RunOnce scans every digest-enabled user and sends due digests. Idempotent
// within a window: already-emailed notifications never reappear, and a user
// with nothing pending gets no email.
func (b *Batcher) RunOnce(ctx context.Context) error {
	userIDs, err := b.storage.ListDigestUsers(ctx)
	if err != nil {
		return fmt.Errorf("list digest users: %w", err)
	}

	now := time.Now()
	var errs []error
	for _, userID := range userIDs {
		if err := b.runUser(ctx, userID, now); err != nil {
			errs = append(errs, fmt.Errorf("digest for %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Batcher) runUser(ctx context.Context, userID uuid.UUID, now time.Time) error {
	prefs, err := b.storage.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if prefs.Silenced || !prefs.EnabledChannels[ChannelEmail] || !ShouldSendNow(prefs, now) {
		return nil
	}

	recipient, err := b.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !recipient.CanReceiveEmail() {
		return nil
	}

	pending, err := b.PendingForDigest(ctx, userID, windowStart(prefs, now))
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	if err := b.SendDigest(ctx, recipient, pending); err != nil {
		return err
	}

	// The stored digest time gates the next scan; the per-notification SENT
	// records keep content from repeating even when this save fails.
	prefs.LastDigestAt = &now
	prefs.UpdatedAt = now
	if err := b.storage.SavePreferences(ctx, prefs); err != nil {
		return fmt.Errorf("record digest time: %w", err)
	}
	return nil
}
