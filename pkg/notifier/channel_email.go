package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/letsrevel/revel-backend-sub006/pkg/email"
)

// EmailDriver delivers notifications over the email transport. It requires a
// verified, reachable address and a template with email rendering.
type EmailDriver struct {
	sender email.Sender
}

// NewEmailDriver wires the email channel driver on top of an email sender.
func NewEmailDriver(sender email.Sender) (*EmailDriver, error) {
	if sender == nil {
		return nil, errors.New("email sender is nil")
	}
	return &EmailDriver{sender: sender}, nil
}

func (d *EmailDriver) Channel() Channel { return ChannelEmail }

func (d *EmailDriver) CanDeliver(ctx context.Context, r Recipient, t Type) bool {
	return r.CanReceiveEmail()
}

func (d *EmailDriver) Deliver(ctx context.Context, rc *RenderContext, tmpl Template, rec *DeliveryRecord) error {
	et, ok := tmpl.(EmailTemplate)
	if !ok {
		return &PermanentDeliveryError{Err: fmt.Errorf("template for %s has no email rendering", rc.Notification.Type)}
	}

	msg := email.Message{
		To:       rc.Recipient.Email,
		Subject:  et.EmailSubject(rc),
		TextBody: et.EmailTextBody(rc),
		Tag:      string(rc.Notification.Type),
	}
	if ht, ok := tmpl.(EmailHTMLTemplate); ok {
		msg.HTMLBody = ht.EmailHTMLBody(rc)
	}
	if at, ok := tmpl.(EmailAttachmentsTemplate); ok {
		attachments := at.EmailAttachments(rc)
		if len(attachments) > 0 {
			msg.Attachments = make(map[string]email.Attachment, len(attachments))
			for name, a := range attachments {
				msg.Attachments[name] = email.Attachment{Content: a.Bytes, MIMEType: a.MIMEType}
			}
		}
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		return classifyEmailError(err)
	}
	return nil
}

func (d *EmailDriver) ShouldRetry(err error) bool {
	return retryableError(err)
}

// classifyEmailError maps transport errors onto the delivery taxonomy.
// Invalid and inactive recipients are permanent and mark the address
// unreachable; rate limits and everything else (network, provider 5xx) are
// transient.
func classifyEmailError(err error) error {
	switch {
	case errors.Is(err, email.ErrInvalidRecipient),
		errors.Is(err, email.ErrInactiveRecipient):
		return &PermanentDeliveryError{Err: err, Unreachable: true}
	case errors.Is(err, email.ErrInvalidMessage):
		return &PermanentDeliveryError{Err: err}
	default:
		return &TransientDeliveryError{Err: err}
	}
}
