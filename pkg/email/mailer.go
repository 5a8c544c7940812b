package email

import (
	"context"
	"fmt"
	"regexp"
)

// Sender represents an interface for sending emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Attachment is a single file attached to an outgoing email.
type Attachment struct {
	Content  []byte `json:"content"`
	MIMEType string `json:"mime_type"`
}

// Message represents a fully rendered outgoing email.
type Message struct {
	To          string                `json:"to"`
	Subject     string                `json:"subject"`
	TextBody    string                `json:"text_body,omitempty"`
	HTMLBody    string                `json:"html_body,omitempty"`
	Tag         string                `json:"tag,omitempty"`         // Optional, used for provider-side analytics
	Attachments map[string]Attachment `json:"attachments,omitempty"` // Keyed by filename
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the message is sendable. At least one of TextBody and
// HTMLBody must be present.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if !emailRegex.MatchString(m.To) {
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return fmt.Errorf("%w: message body is required", ErrInvalidMessage)
	}
	return nil
}
