package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage implementation for tests and local
// development. Safe for concurrent use.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*Notification
	deliveries    map[uuid.UUID]map[Channel]*DeliveryRecord
	preferences   map[uuid.UUID]*Preferences
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[uuid.UUID]*Notification),
		deliveries:    make(map[uuid.UUID]map[Channel]*DeliveryRecord),
		preferences:   make(map[uuid.UUID]*Preferences),
	}
}

func (s *MemoryStorage) CreateNotification(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *MemoryStorage) CreateNotifications(ctx context.Context, ns []*Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range ns {
		cp := *n
		s.notifications[n.ID] = &cp
	}
	return nil
}

func (s *MemoryStorage) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStorage) UpdateNotification(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		return ErrNotificationNotFound
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *MemoryStorage) ListNotifications(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Notification
	for _, n := range s.notifications {
		if n.UserID != userID || n.ArchivedAt != nil {
			continue
		}
		if f.UnreadOnly && n.Read() {
			continue
		}
		if f.Type != nil && n.Type != *f.Type {
			continue
		}
		if f.Since != nil && !n.CreatedAt.After(*f.Since) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read() && n.ArchivedAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	n.MarkRead()
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read() {
			n.MarkRead()
		}
	}
	return nil
}

func (s *MemoryStorage) Archive(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	now := time.Now()
	n.ArchivedAt = &now
	return nil
}

func (s *MemoryStorage) PendingDigestNotifications(ctx context.Context, userID uuid.UUID, since time.Time) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Notification
	for id, n := range s.notifications {
		if n.UserID != userID || n.ArchivedAt != nil || n.Read() {
			continue
		}
		if !n.CreatedAt.After(since) {
			continue
		}
		if rec, ok := s.deliveries[id][ChannelEmail]; ok && rec.Status == DeliverySent {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) CreateDelivery(ctx context.Context, r *DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChannel, ok := s.deliveries[r.NotificationID]
	if !ok {
		byChannel = make(map[Channel]*DeliveryRecord)
		s.deliveries[r.NotificationID] = byChannel
	}
	if _, exists := byChannel[r.Channel]; exists {
		return ErrDuplicateDelivery
	}
	cp := *r
	byChannel[r.Channel] = &cp
	return nil
}

func (s *MemoryStorage) GetDelivery(ctx context.Context, notificationID uuid.UUID, channel Channel) (*DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.deliveries[notificationID][channel]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStorage) UpdateDelivery(ctx context.Context, r *DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[r.NotificationID][r.Channel]; !ok {
		return ErrDeliveryNotFound
	}
	cp := *r
	s.deliveries[r.NotificationID][r.Channel] = &cp
	return nil
}

func (s *MemoryStorage) ListDeliveries(ctx context.Context, notificationID uuid.UUID) ([]*DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DeliveryRecord
	for _, rec := range s.deliveries[notificationID] {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

func (s *MemoryStorage) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preferences[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	return clonePreferences(p), nil
}

func (s *MemoryStorage) SavePreferences(ctx context.Context, p *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[p.UserID] = clonePreferences(p)
	return nil
}

func (s *MemoryStorage) ListDigestUsers(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for id, p := range s.preferences {
		if p.DigestFrequency != DigestImmediate {
			out = append(out, id)
		}
	}
	return out, nil
}

func clonePreferences(p *Preferences) *Preferences {
	cp := *p
	if p.LastDigestAt != nil {
		at := *p.LastDigestAt
		cp.LastDigestAt = &at
	}
	cp.EnabledChannels = make(map[Channel]bool, len(p.EnabledChannels))
	for c, v := range p.EnabledChannels {
		cp.EnabledChannels[c] = v
	}
	cp.TypeOverrides = make(map[Type]TypeOverride, len(p.TypeOverrides))
	for t, o := range p.TypeOverrides {
		oc := o
		if o.Channels != nil {
			oc.Channels = make(map[Channel]bool, len(o.Channels))
			for c, v := range o.Channels {
				oc.Channels[c] = v
			}
		}
		cp.TypeOverrides[t] = oc
	}
	return &cp
}

// MemoryDirectory is an in-memory RecipientResolver for tests.
type MemoryDirectory struct {
	mu         sync.RWMutex
	recipients map[uuid.UUID]Recipient
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{recipients: make(map[uuid.UUID]Recipient)}
}

// Put registers or replaces a recipient.
func (d *MemoryDirectory) Put(r Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients[r.ID] = r
}

func (d *MemoryDirectory) Resolve(ctx context.Context, userID uuid.UUID) (Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.recipients[userID]
	if !ok {
		return Recipient{}, ErrRecipientNotFound
	}
	return r, nil
}

func (d *MemoryDirectory) SetChannelReachability(ctx context.Context, userID uuid.UUID, channel Channel, reachable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.recipients[userID]
	if !ok {
		return ErrRecipientNotFound
	}
	switch channel {
	case ChannelEmail:
		r.EmailReachable = reachable
	case ChannelTelegram:
		r.TelegramReachable = reachable
	}
	d.recipients[userID] = r
	return nil
}
