package notifier

// Channel is a transport for notification content. The set is closed:
// adding a channel means adding a driver, a template capability, and a
// column value, so it is deliberately not extensible from outside.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// AllChannels returns every channel in dispatch order. In-app first so the
// inbox row is visible even if outbound transports are slow.
func AllChannels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelTelegram}
}

// ValidChannel reports whether ch is one of the closed channel set.
func ValidChannel(ch Channel) bool {
	switch ch {
	case ChannelInApp, ChannelEmail, ChannelTelegram:
		return true
	default:
		return false
	}
}

// Type identifies what a notification is about. Each type has a context
// schema (see schema.go) and a set of type-enabled channels.
type Type string

const (
	// Ticket lifecycle.
	TypeTicketCreated         Type = "ticket_created"
	TypeTicketConfirmed       Type = "ticket_confirmed"
	TypeTicketWaitlisted      Type = "ticket_waitlisted"
	TypeTicketCancelled       Type = "ticket_cancelled"
	TypeTicketCheckedIn       Type = "ticket_checked_in"
	TypeTicketTransferred     Type = "ticket_transferred"
	TypeTicketPaymentRequired Type = "ticket_payment_required"

	// Event lifecycle.
	TypeEventPublished         Type = "event_published"
	TypeEventUpdated           Type = "event_updated"
	TypeEventCancelled         Type = "event_cancelled"
	TypeEventRescheduled       Type = "event_rescheduled"
	TypeEventReminder          Type = "event_reminder"
	TypeEventStartingSoon      Type = "event_starting_soon"
	TypeEventCapacityReached   Type = "event_capacity_reached"
	TypeEventFeedbackRequested Type = "event_feedback_requested"

	// RSVP.
	TypeRSVPReceived            Type = "rsvp_received"
	TypeRSVPConfirmed           Type = "rsvp_confirmed"
	TypeRSVPDeclined            Type = "rsvp_declined"
	TypeRSVPWaitlistPromoted    Type = "rsvp_waitlist_promoted"
	TypeRSVPDeadlineApproaching Type = "rsvp_deadline_approaching"

	// Potluck.
	TypePotluckItemClaimed   Type = "potluck_item_claimed"
	TypePotluckItemUnclaimed Type = "potluck_item_unclaimed"
	TypePotluckItemAssigned  Type = "potluck_item_assigned"
	TypePotluckListUpdated   Type = "potluck_list_updated"
	TypePotluckReminder      Type = "potluck_reminder"

	// Payments.
	TypePaymentReceived Type = "payment_received"
	TypePaymentFailed   Type = "payment_failed"
	TypePaymentRefunded Type = "payment_refunded"
	TypePaymentDisputed Type = "payment_disputed"
	TypePayoutSent      Type = "payout_sent"

	// Questionnaires.
	TypeQuestionnaireAssigned    Type = "questionnaire_assigned"
	TypeQuestionnaireSubmitted   Type = "questionnaire_submitted"
	TypeQuestionnaireApproved    Type = "questionnaire_approved"
	TypeQuestionnaireRejected    Type = "questionnaire_rejected"
	TypeQuestionnaireNeedsReview Type = "questionnaire_needs_review"

	// Membership and social.
	TypeNewFollower             Type = "new_follower"
	TypeFollowRequestApproved   Type = "follow_request_approved"
	TypeOrganizationInvite      Type = "organization_invite"
	TypeOrganizationRoleChanged Type = "organization_role_changed"
	TypeMembershipRevoked       Type = "membership_revoked"

	// System.
	TypeStaffMessage       Type = "staff_message"
	TypeSystemAnnouncement Type = "system_announcement"
)

// inAppOnly lists types too chatty for outbound transports; they surface in
// the inbox only.
var inAppOnly = map[Type]bool{
	TypeNewFollower:          true,
	TypePotluckItemClaimed:   true,
	TypePotluckItemUnclaimed: true,
	TypePotluckListUpdated:   true,
	TypeEventCapacityReached: true,
}

// noTelegram lists types whose content carries money or attachments; they
// stay on email + in-app.
var noTelegram = map[Type]bool{
	TypePaymentReceived: true,
	TypePaymentRefunded: true,
	TypePayoutSent:      true,
	TypePaymentDisputed: true,
}

// TypeEnabledChannels returns the channels a type may ever use, before any
// user preference is applied.
func TypeEnabledChannels(t Type) []Channel {
	switch {
	case inAppOnly[t]:
		return []Channel{ChannelInApp}
	case noTelegram[t]:
		return []Channel{ChannelInApp, ChannelEmail}
	default:
		return AllChannels()
	}
}

// GuestDisabledTypes is the conservative preset applied to guest-tier users
// at preference-creation time. It is a snapshot default: changing this set
// later never retroactively alters existing preferences.
func GuestDisabledTypes() []Type {
	return []Type{
		TypeNewFollower,
		TypeFollowRequestApproved,
		TypeEventPublished,
		TypeEventFeedbackRequested,
		TypePotluckItemClaimed,
		TypePotluckItemUnclaimed,
		TypePotluckListUpdated,
		TypeSystemAnnouncement,
	}
}
