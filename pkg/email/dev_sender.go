package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender implements Sender for local development.
// It saves emails as HTML and JSON files to a directory instead of sending
// them through an email provider.
type DevSender struct {
	dir string
}

// NewDevSender creates a development email sender that saves emails to disk.
// The directory will be created on first send if it doesn't exist.
func NewDevSender(dir string) Sender {
	return &DevSender{dir: dir}
}

// emailMetadata contains the email data saved to JSON (excluding the HTML body).
type emailMetadata struct {
	Timestamp   string   `json:"timestamp"`
	To          string   `json:"to"`
	Subject     string   `json:"subject"`
	Tag         string   `json:"tag,omitempty"`
	TextBody    string   `json:"text_body,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Send saves the email as HTML and metadata as JSON to the configured directory.
func (d *DevSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	base := msg.Tag
	if base == "" {
		base = msg.Subject
	}
	base = strings.ToLower(unsafeFilenameChars.ReplaceAllString(base, "_"))
	base = time.Now().Format("2006_01_02_150405") + "_" + base

	meta := emailMetadata{
		Timestamp: time.Now().Format(time.RFC3339),
		To:        msg.To,
		Subject:   msg.Subject,
		Tag:       msg.Tag,
		TextBody:  msg.TextBody,
	}
	for name := range msg.Attachments {
		meta.Attachments = append(meta.Attachments, name)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write metadata: %v", ErrFailedToSendEmail, err)
	}

	if msg.HTMLBody != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(msg.HTMLBody), 0o644); err != nil {
			return fmt.Errorf("%w: failed to write html body: %v", ErrFailedToSendEmail, err)
		}
	}

	return nil
}
