package notifier

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ContextSchema maps a context field to its validation rule. Rules use
// validator tag syntax; a field with a "required" rule must be present.
// Fields not named in the schema are allowed through untouched, because the
// rendering pipeline enriches the context with derived values later.
type ContextSchema map[string]string

var validate = validator.New()

func schema(fragments ...ContextSchema) ContextSchema {
	merged := make(ContextSchema)
	for _, f := range fragments {
		for field, rule := range f {
			merged[field] = rule
		}
	}
	return merged
}

var (
	eventCtx = ContextSchema{
		"event_id":   "required,uuid4",
		"event_name": "required",
		"starts_at":  "required",
	}
	ticketCtx = ContextSchema{
		"ticket_id": "required,uuid4",
	}
	moneyCtx = ContextSchema{
		"amount":   "required,numeric",
		"currency": "required,len=3",
	}
	potluckCtx = ContextSchema{
		"item_name": "required",
	}
	questionnaireCtx = ContextSchema{
		"questionnaire_id":   "required,uuid4",
		"questionnaire_name": "required",
	}
	actorCtx = ContextSchema{
		"actor_id":   "required,uuid4",
		"actor_name": "required",
	}
	orgCtx = ContextSchema{
		"organization_id":   "required,uuid4",
		"organization_name": "required",
	}
	messageCtx = ContextSchema{
		"subject": "required",
		"message": "required",
	}
)

// contextSchemas is the closed registry of context shapes, one per type.
// A type absent from this map is unknown to the engine.
var contextSchemas = map[Type]ContextSchema{
	TypeTicketCreated:         schema(eventCtx, ticketCtx),
	TypeTicketConfirmed:       schema(eventCtx, ticketCtx),
	TypeTicketWaitlisted:      schema(eventCtx, ticketCtx),
	TypeTicketCancelled:       schema(eventCtx, ticketCtx),
	TypeTicketCheckedIn:       schema(eventCtx, ticketCtx),
	TypeTicketTransferred:     schema(eventCtx, ticketCtx, actorCtx),
	TypeTicketPaymentRequired: schema(eventCtx, ticketCtx, moneyCtx),

	TypeEventPublished:         schema(eventCtx),
	TypeEventUpdated:           schema(eventCtx, ContextSchema{"changes": "required"}),
	TypeEventCancelled:         schema(eventCtx),
	TypeEventRescheduled:       schema(eventCtx, ContextSchema{"previous_starts_at": "required"}),
	TypeEventReminder:          schema(eventCtx),
	TypeEventStartingSoon:      schema(eventCtx),
	TypeEventCapacityReached:   schema(eventCtx),
	TypeEventFeedbackRequested: schema(eventCtx),

	TypeRSVPReceived:            schema(eventCtx, actorCtx),
	TypeRSVPConfirmed:           schema(eventCtx),
	TypeRSVPDeclined:            schema(eventCtx, actorCtx),
	TypeRSVPWaitlistPromoted:    schema(eventCtx),
	TypeRSVPDeadlineApproaching: schema(eventCtx, ContextSchema{"deadline_at": "required"}),

	TypePotluckItemClaimed:   schema(eventCtx, potluckCtx, actorCtx),
	TypePotluckItemUnclaimed: schema(eventCtx, potluckCtx),
	TypePotluckItemAssigned:  schema(eventCtx, potluckCtx),
	TypePotluckListUpdated:   schema(eventCtx),
	TypePotluckReminder:      schema(eventCtx, potluckCtx),

	TypePaymentReceived: schema(eventCtx, moneyCtx),
	TypePaymentFailed:   schema(eventCtx, moneyCtx, ContextSchema{"failure_reason": "required"}),
	TypePaymentRefunded: schema(eventCtx, moneyCtx),
	TypePaymentDisputed: schema(eventCtx, moneyCtx),
	TypePayoutSent:      schema(moneyCtx),

	TypeQuestionnaireAssigned:    schema(eventCtx, questionnaireCtx),
	TypeQuestionnaireSubmitted:   schema(eventCtx, questionnaireCtx, actorCtx),
	TypeQuestionnaireApproved:    schema(eventCtx, questionnaireCtx),
	TypeQuestionnaireRejected:    schema(eventCtx, questionnaireCtx),
	TypeQuestionnaireNeedsReview: schema(eventCtx, questionnaireCtx, ContextSchema{"pending_count": "required,numeric"}),

	TypeNewFollower:             schema(actorCtx),
	TypeFollowRequestApproved:   schema(orgCtx),
	TypeOrganizationInvite:      schema(orgCtx, actorCtx),
	TypeOrganizationRoleChanged: schema(orgCtx, ContextSchema{"role": "required"}),
	TypeMembershipRevoked:       schema(orgCtx),

	TypeStaffMessage:       schema(orgCtx, messageCtx),
	TypeSystemAnnouncement: schema(messageCtx),
}

// KnownType reports whether t has a registered context schema.
func KnownType(t Type) bool {
	_, ok := contextSchemas[t]
	return ok
}

// KnownTypes returns every type the engine has a schema for.
func KnownTypes() []Type {
	out := make([]Type, 0, len(contextSchemas))
	for t := range contextSchemas {
		out = append(out, t)
	}
	return out
}

// ValidateContext checks a context payload against the type's schema.
// Pure and side-effect free; the dispatcher calls it exactly once before
// any write. An unknown type yields ErrUnknownType; a missing required
// field or a field failing its rule yields a *SchemaError naming every
// offending field.
func ValidateContext(t Type, context map[string]any) error {
	rules, ok := contextSchemas[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	if context == nil {
		context = map[string]any{}
	}

	ruleMap := make(map[string]any, len(rules))
	for field, rule := range rules {
		ruleMap[field] = rule
	}

	failures := validate.ValidateMap(context, ruleMap)
	if len(failures) == 0 {
		return nil
	}

	fields := make(map[string]string, len(failures))
	for field, failure := range failures {
		if _, present := context[field]; !present {
			fields[field] = "missing required field"
			continue
		}
		if errs, ok := failure.(validator.ValidationErrors); ok && len(errs) > 0 {
			fields[field] = "failed rule " + errs[0].Tag()
			continue
		}
		fields[field] = fmt.Sprintf("%v", failure)
	}

	return &SchemaError{Type: t, Fields: fields}
}
