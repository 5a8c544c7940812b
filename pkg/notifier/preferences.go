package notifier

import (
	"time"

	"github.com/google/uuid"
)

// DigestFrequency controls how email deliveries are batched for a user.
type DigestFrequency string

const (
	DigestImmediate DigestFrequency = "immediate"
	DigestHourly    DigestFrequency = "hourly"
	DigestDaily     DigestFrequency = "daily"
	DigestWeekly    DigestFrequency = "weekly"
)

// ValidDigestFrequency reports whether f is one of the supported frequencies.
func ValidDigestFrequency(f DigestFrequency) bool {
	switch f {
	case DigestImmediate, DigestHourly, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// TypeOverride is a per-type exception to the global channel settings.
// An override can only restrict: Enabled=false mutes the type entirely,
// and a non-nil Channels set replaces the global set for that type.
type TypeOverride struct {
	Enabled  bool
	Channels map[Channel]bool
}

// Preferences holds one user's notification settings. The zero value is not
// usable; construct with NewPreferences.
type Preferences struct {
	UserID          uuid.UUID
	Silenced        bool
	EnabledChannels map[Channel]bool
	DigestFrequency DigestFrequency
	// DigestSendHour and DigestSendMinute are the preferred local send time
	// for daily and weekly digests.
	DigestSendHour   int
	DigestSendMinute int
	// DigestWeekday applies to weekly digests only.
	DigestWeekday time.Weekday
	// LastDigestAt is when the user's most recent digest went out. Nil until
	// the first digest. The batcher both reads it (cadence gate, window
	// anchor) and writes it.
	LastDigestAt  *time.Time
	TypeOverrides map[Type]TypeOverride
	UpdatedAt     time.Time
}

// NewPreferences returns the default preferences for a user: all channels on,
// immediate delivery, no overrides. For guest accounts a fixed set of
// engagement-style types is muted at creation time. The guest preset is a
// snapshot taken once; later changes to the preset never alter existing rows.
func NewPreferences(userID uuid.UUID, guest bool) *Preferences {
	p := &Preferences{
		UserID:          userID,
		EnabledChannels: map[Channel]bool{ChannelInApp: true, ChannelEmail: true, ChannelTelegram: true},
		DigestFrequency: DigestImmediate,
		DigestSendHour:  9,
		DigestWeekday:   time.Monday,
		TypeOverrides:   make(map[Type]TypeOverride),
		UpdatedAt:       time.Now(),
	}
	if guest {
		for _, t := range GuestDisabledTypes() {
			p.TypeOverrides[t] = TypeOverride{Enabled: false}
		}
	}
	return p
}

// IsChannelEnabled reports whether the user has the channel globally enabled.
// A silenced user has no channels enabled.
func (p *Preferences) IsChannelEnabled(c Channel) bool {
	if p.Silenced {
		return false
	}
	return p.EnabledChannels[c]
}

// IsTypeEnabled reports whether the user receives notifications of type t at
// all. Absence of an override means enabled.
func (p *Preferences) IsTypeEnabled(t Type) bool {
	if p.Silenced {
		return false
	}
	if o, ok := p.TypeOverrides[t]; ok {
		return o.Enabled
	}
	return true
}

// ChannelsForType resolves the user's effective channel set for type t:
// global enabled channels, narrowed by a per-type override when present,
// intersected with the channels the type itself permits. Digest mode narrows
// the immediate path to in-app only; the batcher owns email for those users.
func (p *Preferences) ChannelsForType(t Type) map[Channel]bool {
	out := make(map[Channel]bool)
	if !p.IsTypeEnabled(t) {
		return out
	}

	allowed := p.EnabledChannels
	if o, ok := p.TypeOverrides[t]; ok && o.Channels != nil {
		allowed = o.Channels
	}

	for _, c := range TypeEnabledChannels(t) {
		if !allowed[c] || !p.EnabledChannels[c] {
			continue
		}
		if c != ChannelInApp && p.DigestFrequency != DigestImmediate {
			continue
		}
		out[c] = true
	}
	return out
}

// DisableAll mutes every type by silencing the user. Used by the
// unsubscribe-all path.
func (p *Preferences) DisableAll() {
	p.Silenced = true
	p.UpdatedAt = time.Now()
}

// DisableType mutes a single type, preserving any channel narrowing already
// set on its override.
func (p *Preferences) DisableType(t Type) {
	o := p.TypeOverrides[t]
	o.Enabled = false
	p.TypeOverrides[t] = o
	p.UpdatedAt = time.Now()
}
