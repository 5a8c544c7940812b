// Package notifier is the notification dispatch and delivery engine: it
// decides which user receives which notification through which channels,
// renders per-channel content lazily, delivers it, tracks outcomes, retries
// transient failures, and batches pending notifications into email digests.
//
// Domain code interacts with the engine through a single boundary:
//
//	id, err := engine.Notify(ctx, notifier.TypeTicketConfirmed, userID, map[string]any{
//	    "event_id":   eventID.String(),
//	    "event_name": "Winter Gala",
//	    "starts_at":  startsAt,
//	})
//
// Notify validates the context against the type's schema, persists the
// notification with empty title/body (rendering happens at dispatch time,
// per recipient locale), and enqueues background delivery. Validation errors
// propagate to the caller; delivery errors never do - they are visible only
// through DeliveryRecord state and logs, because a ticket purchase must not
// fail on a broken SMTP relay.
//
// Channels form a closed set (in-app, email, telegram). Each driver owns
// the failure semantics of its transport: it classifies errors as transient
// (retried up to a ceiling) or permanent (terminal, optionally flagging the
// recipient unreachable so future attempts short-circuit).
package notifier
