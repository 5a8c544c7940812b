package email_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/email"
)

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	valid := email.Message{
		To:       "user@example.com",
		Subject:  "Ticket confirmed",
		HTMLBody: "<p>See you there</p>",
	}

	tests := []struct {
		name    string
		mutate  func(*email.Message)
		wantErr string
	}{
		{name: "valid html only", mutate: func(m *email.Message) {}},
		{name: "valid text only", mutate: func(m *email.Message) {
			m.HTMLBody = ""
			m.TextBody = "See you there"
		}},
		{name: "missing recipient", mutate: func(m *email.Message) { m.To = "" }, wantErr: "recipient is required"},
		{name: "malformed recipient", mutate: func(m *email.Message) { m.To = "not-an-email" }, wantErr: "valid email address"},
		{name: "missing subject", mutate: func(m *email.Message) { m.Subject = "" }, wantErr: "subject is required"},
		{name: "missing body", mutate: func(m *email.Message) { m.HTMLBody = "" }, wantErr: "body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := valid
			tt.mutate(&msg)

			err := msg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, email.ErrInvalidMessage)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDevSender_Send(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	err := sender.Send(context.Background(), email.Message{
		To:       "user@example.com",
		Subject:  "Weekly digest",
		HTMLBody: "<h1>3 new notifications</h1>",
		TextBody: "3 new notifications",
		Tag:      "digest",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var haveHTML, haveJSON bool
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			haveHTML = true
			body, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			assert.Contains(t, string(body), "3 new notifications")
		case ".json":
			haveJSON = true
			assert.True(t, strings.Contains(e.Name(), "digest"))
		}
	}
	assert.True(t, haveHTML)
	assert.True(t, haveJSON)
}

func TestDevSender_RejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	sender := email.NewDevSender(t.TempDir())
	err := sender.Send(context.Background(), email.Message{To: "user@example.com"})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
}
