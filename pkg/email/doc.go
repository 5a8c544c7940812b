// Package email provides the outbound email transport boundary for the
// notification engine.
//
// The package is built around the Sender interface so providers can be
// swapped without touching delivery code. Two implementations ship with it:
//   - PostmarkClient for production delivery with open/click tracking
//   - DevSender for local development (saves emails to disk)
//
// All implementations validate message parameters before sending and report
// failures through sentinel errors so callers can classify them:
//
//	err := sender.Send(ctx, email.Message{
//	    To:       "user@example.com",
//	    Subject:  "Your ticket is confirmed",
//	    HTMLBody: html,
//	    Tag:      "ticket-confirmed",
//	})
//	if errors.Is(err, email.ErrInactiveRecipient) {
//	    // hard bounce or suppressed address: do not retry
//	}
package email
