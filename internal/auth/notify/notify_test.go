package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		kind    string
		subject string
		want    string
	}{
		{NoticeTwoFactorEnabled, "Two-factor authentication enabled", "was turned on"},
		{NoticeTwoFactorDisabled, "Two-factor authentication disabled", "was turned off"},
		{NoticeBackupCodesRenewed, "New backup codes generated", "previous codes no longer work"},
		{NoticeBackupCodeUsed, "A backup code was used to sign in", "You have 7 backup codes left"},
		{NoticeAccountDeleted, "Your account was deleted", "were deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			msg, ok := Render(tt.kind, "a@example.com", NoticeData{App: "Starterkit", Name: "Ann", At: at, Remaining: 7})
			require.True(t, ok)
			require.Equal(t, "a@example.com", msg.To)
			require.Equal(t, tt.subject, msg.Subject)
			require.Contains(t, msg.Body, "Hi Ann")
			require.Contains(t, msg.Body, tt.want)
		})
	}

	_, ok := Render("nope", "a@example.com", NoticeData{})
	require.False(t, ok)
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	m, err := buildMessage("noreply@example.com", Message{To: "a@example.com", Subject: "hi", Body: "body"})
	require.NoError(t, err)
	require.Len(t, m.GetTo(), 1)
	require.Equal(t, "a@example.com", m.GetTo()[0].Address)

	_, err = buildMessage("noreply@example.com", Message{Subject: "hi"})
	require.Error(t, err)

	_, err = buildMessage("not an address", Message{To: "a@example.com"})
	require.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, n.Notify(context.Background(), Message{To: "a@example.com", Subject: "hello"}))
	require.Contains(t, buf.String(), "subject=hello")
}
