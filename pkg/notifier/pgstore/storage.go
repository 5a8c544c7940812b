package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/letsrevel/revel-backend-sub006/pkg/notifier"
)

// Storage implements notifier.Storage on PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage wraps a connection pool.
func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

const notificationColumns = "id, user_id, type, context, title, body, created_at, read_at, archived_at"

func (s *Storage) CreateNotification(ctx context.Context, n *notifier.Notification) error {
	contextJSON, err := marshalJSON(n.Context)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, context, title, body, created_at, read_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, string(n.Type), contextJSON, n.Title, n.Body, n.CreatedAt, n.ReadAt, n.ArchivedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Storage) CreateNotifications(ctx context.Context, ns []*notifier.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range ns {
		contextJSON, err := marshalJSON(n.Context)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO notifications (id, user_id, type, context, title, body, created_at, read_at, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			n.ID, n.UserID, string(n.Type), contextJSON, n.Title, n.Body, n.CreatedAt, n.ReadAt, n.ArchivedAt)
	}

	// A batch inside a transaction keeps the all-or-nothing contract of
	// bulk creation.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	br := tx.SendBatch(ctx, batch)
	for range ns {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck
			return fmt.Errorf("bulk insert notification: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close bulk insert: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Storage) GetNotification(ctx context.Context, id uuid.UUID) (*notifier.Notification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if isNotFound(err) {
		return nil, notifier.ErrNotificationNotFound
	}
	return n, err
}

func (s *Storage) UpdateNotification(ctx context.Context, n *notifier.Notification) error {
	contextJSON, err := marshalJSON(n.Context)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET context = $2, title = $3, body = $4, read_at = $5, archived_at = $6
		WHERE id = $1`,
		n.ID, contextJSON, n.Title, n.Body, n.ReadAt, n.ArchivedAt)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifier.ErrNotificationNotFound
	}
	return nil
}

func (s *Storage) ListNotifications(ctx context.Context, userID uuid.UUID, f notifier.ListFilter) ([]*notifier.Notification, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 AND archived_at IS NULL`)
	args := []any{userID}

	if f.UnreadOnly {
		sb.WriteString(` AND read_at IS NULL`)
	}
	if f.Type != nil {
		args = append(args, string(*f.Type))
		sb.WriteString(` AND type = $` + strconv.Itoa(len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		sb.WriteString(` AND created_at > $` + strconv.Itoa(len(args)))
	}

	sb.WriteString(` ORDER BY created_at DESC`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sb.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *Storage) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND read_at IS NULL AND archived_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *Storage) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing, foreign, or already read. Only the first two are
		// errors; disambiguate with an ownership check.
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
			id, userID).Scan(&exists); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		if !exists {
			return notifier.ErrNotificationNotFound
		}
	}
	return nil
}

func (s *Storage) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *Storage) Archive(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET archived_at = now()
		WHERE id = $1 AND user_id = $2 AND archived_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("archive notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifier.ErrNotificationNotFound
	}
	return nil
}

func (s *Storage) PendingDigestNotifications(ctx context.Context, userID uuid.UUID, since time.Time) ([]*notifier.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications n
		WHERE n.user_id = $1
		  AND n.created_at > $2
		  AND n.read_at IS NULL
		  AND n.archived_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM delivery_records d
			WHERE d.notification_id = n.id AND d.channel = 'email' AND d.status = 'sent'
		  )
		ORDER BY n.created_at`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("pending digest notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *Storage) CreateDelivery(ctx context.Context, r *notifier.DeliveryRecord) error {
	metadataJSON, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO delivery_records (id, notification_id, channel, status, retry_count, attempted_at, delivered_at, error_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.NotificationID, string(r.Channel), string(r.Status), r.RetryCount,
		r.AttemptedAt, r.DeliveredAt, r.ErrorMessage, metadataJSON, r.CreatedAt)
	if isDuplicateKey(err) {
		return notifier.ErrDuplicateDelivery
	}
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

const deliveryColumns = "id, notification_id, channel, status, retry_count, attempted_at, delivered_at, error_message, metadata, created_at"

func (s *Storage) GetDelivery(ctx context.Context, notificationID uuid.UUID, channel notifier.Channel) (*notifier.DeliveryRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM delivery_records
		WHERE notification_id = $1 AND channel = $2`, notificationID, string(channel))
	r, err := scanDelivery(row)
	if isNotFound(err) {
		return nil, notifier.ErrDeliveryNotFound
	}
	return r, err
}

func (s *Storage) UpdateDelivery(ctx context.Context, r *notifier.DeliveryRecord) error {
	metadataJSON, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET status = $2, retry_count = $3, attempted_at = $4, delivered_at = $5, error_message = $6, metadata = $7
		WHERE id = $1`,
		r.ID, string(r.Status), r.RetryCount, r.AttemptedAt, r.DeliveredAt, r.ErrorMessage, metadataJSON)
	if err != nil {
		return fmt.Errorf("update delivery record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifier.ErrDeliveryNotFound
	}
	return nil
}

func (s *Storage) ListDeliveries(ctx context.Context, notificationID uuid.UUID) ([]*notifier.DeliveryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM delivery_records
		WHERE notification_id = $1 ORDER BY channel`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("list delivery records: %w", err)
	}
	defer rows.Close()

	var out []*notifier.DeliveryRecord
	for rows.Next() {
		r, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Storage) GetPreferences(ctx context.Context, userID uuid.UUID) (*notifier.Preferences, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, silenced, enabled_channels, digest_frequency, digest_send_hour, digest_send_minute, digest_weekday, last_digest_at, type_overrides, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID)

	var (
		p             notifier.Preferences
		frequency     string
		weekday       int
		channelsJSON  []byte
		overridesJSON []byte
	)
	err := row.Scan(&p.UserID, &p.Silenced, &channelsJSON, &frequency, &p.DigestSendHour, &p.DigestSendMinute, &weekday, &p.LastDigestAt, &overridesJSON, &p.UpdatedAt)
	if isNotFound(err) {
		return nil, notifier.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	p.DigestFrequency = notifier.DigestFrequency(frequency)
	p.DigestWeekday = time.Weekday(weekday)
	if err := json.Unmarshal(channelsJSON, &p.EnabledChannels); err != nil {
		return nil, fmt.Errorf("decode enabled channels: %w", err)
	}
	if err := json.Unmarshal(overridesJSON, &p.TypeOverrides); err != nil {
		return nil, fmt.Errorf("decode type overrides: %w", err)
	}
	return &p, nil
}

func (s *Storage) SavePreferences(ctx context.Context, p *notifier.Preferences) error {
	channelsJSON, err := json.Marshal(p.EnabledChannels)
	if err != nil {
		return fmt.Errorf("encode enabled channels: %w", err)
	}
	overridesJSON, err := json.Marshal(p.TypeOverrides)
	if err != nil {
		return fmt.Errorf("encode type overrides: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, silenced, enabled_channels, digest_frequency, digest_send_hour, digest_send_minute, digest_weekday, last_digest_at, type_overrides, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			silenced = EXCLUDED.silenced,
			enabled_channels = EXCLUDED.enabled_channels,
			digest_frequency = EXCLUDED.digest_frequency,
			digest_send_hour = EXCLUDED.digest_send_hour,
			digest_send_minute = EXCLUDED.digest_send_minute,
			digest_weekday = EXCLUDED.digest_weekday,
			last_digest_at = EXCLUDED.last_digest_at,
			type_overrides = EXCLUDED.type_overrides,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Silenced, channelsJSON, string(p.DigestFrequency),
		p.DigestSendHour, p.DigestSendMinute, int(p.DigestWeekday), p.LastDigestAt, overridesJSON, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (s *Storage) ListDigestUsers(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM notification_preferences WHERE digest_frequency <> 'immediate'`)
	if err != nil {
		return nil, fmt.Errorf("list digest users: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return data, nil
}

func scanNotification(row pgx.Row) (*notifier.Notification, error) {
	var (
		n           notifier.Notification
		typ         string
		contextJSON []byte
	)
	if err := row.Scan(&n.ID, &n.UserID, &typ, &contextJSON, &n.Title, &n.Body, &n.CreatedAt, &n.ReadAt, &n.ArchivedAt); err != nil {
		return nil, err
	}
	n.Type = notifier.Type(typ)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &n.Context); err != nil {
			return nil, fmt.Errorf("decode notification context: %w", err)
		}
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*notifier.Notification, error) {
	var out []*notifier.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (*notifier.DeliveryRecord, error) {
	var (
		r            notifier.DeliveryRecord
		channel      string
		status       string
		metadataJSON []byte
	)
	if err := row.Scan(&r.ID, &r.NotificationID, &channel, &status, &r.RetryCount, &r.AttemptedAt, &r.DeliveredAt, &r.ErrorMessage, &metadataJSON, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Channel = notifier.Channel(channel)
	r.Status = notifier.DeliveryStatus(status)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode delivery metadata: %w", err)
		}
	}
	return &r, nil
}
