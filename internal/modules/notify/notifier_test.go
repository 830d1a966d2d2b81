package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/mail"
	"github.com/campusdocs/portal/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockTransport struct {
	mock.Mock
	name string
}

func (m *mockTransport) Name() string { return m.name }

func (m *mockTransport) Send(ctx context.Context, msg mail.Message) (int, error) {
	args := m.Called(ctx, msg)
	return args.Int(0), args.Error(1)
}

type panicTransport struct{}

func (panicTransport) Name() string { return "smtp" }

func (panicTransport) Send(context.Context, mail.Message) (int, error) { panic("boom") }

type namePanicTransport struct{}

func (namePanicTransport) Name() string { panic("name lookup failed") }

func (namePanicTransport) Send(context.Context, mail.Message) (int, error) { return 1, nil }

func newMessage(to ...string) mail.Message {
	return mail.Message{
		From:    "portal@example.edu",
		To:      to,
		Subject: "New file uploaded: Thermodynamics",
		Body:    "Title: Thermodynamics\n",
	}
}

func loadLogs(t *testing.T, db *gorm.DB) []models.DeliveryLogModel {
	t.Helper()
	var logs []models.DeliveryLogModel
	require.NoError(t, db.Order("created_at ASC").Find(&logs).Error)
	return logs
}

func TestNotifier_PrimarySuccess(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	fallback := &mockTransport{name: "sendgrid"}
	primary.On("Send", mock.Anything, mock.Anything).Return(1, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary, WithFallback(fallback))
	out := n.Notify(context.Background(), newMessage("a@example.edu", "b@example.edu"))

	assert.True(t, out.Sent)
	assert.Equal(t, "smtp", out.Via)
	assert.Empty(t, out.Failures)
	primary.AssertExpectations(t)
	fallback.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.Equal(t, out.LogID, logs[0].ID)
	assert.True(t, logs[0].Sent)
	assert.Empty(t, logs[0].Error)
	assert.Equal(t, "a@example.edu,b@example.edu", logs[0].Recipients)
	assert.Equal(t, "portal@example.edu", logs[0].FromEmail)
}

func TestNotifier_FallbackSuccess(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	fallback := &mockTransport{name: "sendgrid"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("connection refused")).Once()
	fallback.On("Send", mock.Anything, mock.Anything).Return(1, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary, WithFallback(fallback))
	out := n.Notify(context.Background(), newMessage("a@example.edu"))

	assert.True(t, out.Sent)
	assert.Equal(t, "sendgrid", out.Via)
	assert.True(t, out.Has(KindPrimary))
	assert.False(t, out.Has(KindSecondary))
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)

	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Sent)
	assert.Contains(t, logs[0].Error, "SMTP send error: connection refused")
	assert.Contains(t, logs[0].Error, "\n\nTraceback:\n")
	assert.Contains(t, logs[0].Error, "\nFallback: sent via SendGrid.")
	assert.Less(t, indexOf(logs[0].Error, "SMTP send error"), indexOf(logs[0].Error, "Fallback: sent via SendGrid."))
}

func TestNotifier_BothFail(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	fallback := &mockTransport{name: "sendgrid"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("timeout")).Once()
	fallback.On("Send", mock.Anything, mock.Anything).
		Return(0, &mail.StatusError{StatusCode: 500, Body: "internal"}).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary, WithFallback(fallback))
	out := n.Notify(context.Background(), newMessage("a@example.edu"))

	assert.False(t, out.Sent)
	assert.True(t, out.Has(KindPrimary))
	assert.True(t, out.Has(KindSecondary))
	var statusErr *mail.StatusError
	require.ErrorAs(t, out.Err(), &statusErr)
	assert.Equal(t, 500, statusErr.StatusCode)

	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Sent)
	assert.Contains(t, logs[0].Error, "SMTP send error: timeout")
	assert.Contains(t, logs[0].Error, "\nSendGrid fallback failed: sendgrid returned 500: internal")
}

func TestNotifier_NoFallbackConfigured(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary, WithFallback(nil))
	out := n.Notify(context.Background(), newMessage("a@example.edu"))

	assert.False(t, out.Sent)
	require.Len(t, out.Failures, 1)
	assert.ErrorIs(t, out.Failures[0], errNothingAccepted)

	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Sent)
	assert.Contains(t, logs[0].Error, "SMTP send error: transport accepted no messages")
	assert.NotContains(t, logs[0].Error, "SendGrid")
}

func TestNotifier_PrimaryPanicIsContained(t *testing.T) {
	db := testhelpers.NewDB(t)
	fallback := &mockTransport{name: "sendgrid"}
	fallback.On("Send", mock.Anything, mock.Anything).Return(1, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", panicTransport{}, WithFallback(fallback))
	var out Outcome
	require.NotPanics(t, func() {
		out = n.Notify(context.Background(), newMessage("a@example.edu"))
	})

	assert.True(t, out.Sent)
	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Error, "SMTP send error: panic: boom")
	assert.Contains(t, logs[0].Error, "Fallback: sent via SendGrid.")
}

func TestNotifier_EmptyRecipients(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	fallback := &mockTransport{name: "sendgrid"}

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary, WithFallback(fallback))
	out := n.Notify(context.Background(), newMessage(" ", ""))

	assert.False(t, out.Sent)
	assert.True(t, out.Has(KindNoRecipients))
	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	fallback.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Recipients)
	assert.False(t, logs[0].Sent)
}

func TestNotifier_LogUnavailableSkipsSend(t *testing.T) {
	db := testhelpers.NewDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.DeliveryLogModel{}))
	primary := &mockTransport{name: "smtp"}

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary)
	var out Outcome
	require.NotPanics(t, func() {
		out = n.Notify(context.Background(), newMessage("a@example.edu"))
	})

	assert.False(t, out.Sent)
	assert.True(t, out.Has(KindOrchestration))
	assert.Empty(t, out.LogID)
	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotifier_DefaultFrom(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.MatchedBy(func(m mail.Message) bool {
		return m.From == "default@example.edu"
	})).Return(1, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "default@example.edu", primary)
	msg := newMessage("a@example.edu")
	msg.From = ""
	out := n.Notify(context.Background(), msg)

	assert.True(t, out.Sent)
	primary.AssertExpectations(t)
}

func TestNotifier_OneEntryPerAttempt(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.Anything).Return(1, nil).Times(2)
	primary.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("down")).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary)
	for i := 0; i < 3; i++ {
		n.Notify(context.Background(), newMessage("a@example.edu"))
	}

	logs := loadLogs(t, db)
	require.Len(t, logs, 3)
	sent := 0
	for _, l := range logs {
		if l.Sent {
			sent++
		}
	}
	assert.Equal(t, 2, sent)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestNotifier_CancelDuringSendStillRecordsDelivery(t *testing.T) {
	db := testhelpers.NewDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(1, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary)
	out := n.Notify(ctx, newMessage("a@example.edu"))

	assert.True(t, out.Sent)
	assert.False(t, out.Has(KindOrchestration))
	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Sent)
	assert.Empty(t, logs[0].Error)
}

func TestNotifier_CancelledContextRecordsFailure(t *testing.T) {
	db := testhelpers.NewDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, context.Canceled).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary)
	out := n.Notify(ctx, newMessage("a@example.edu"))

	assert.False(t, out.Sent)
	assert.True(t, out.Has(KindPrimary))
	assert.False(t, out.Has(KindOrchestration))
	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Sent)
	assert.Contains(t, logs[0].Error, "SMTP send error: context canceled")
}

func TestNotifier_PanicOutsideTransportUpdatesEntry(t *testing.T) {
	db := testhelpers.NewDB(t)
	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", namePanicTransport{})

	var out Outcome
	require.NotPanics(t, func() {
		out = n.Notify(context.Background(), newMessage("a@example.edu"))
	})

	assert.False(t, out.Sent)
	assert.True(t, out.Has(KindOrchestration))
	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.Equal(t, out.LogID, logs[0].ID)
	assert.False(t, logs[0].Sent)
	assert.Equal(t, "notifier panic: name lookup failed", logs[0].Error)
}

func TestNotifier_NilPrimaryLogsFailure(t *testing.T) {
	db := testhelpers.NewDB(t)
	fallback := &mockTransport{name: "sendgrid"}
	fallback.On("Send", mock.Anything, mock.Anything).Return(1, nil).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", nil, WithFallback(fallback))
	var out Outcome
	require.NotPanics(t, func() {
		out = n.Notify(context.Background(), newMessage("a@example.edu"))
	})

	assert.True(t, out.Sent)
	assert.Equal(t, "sendgrid", out.Via)
	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Error, "unconfigured send error: no transport configured")
	assert.Contains(t, logs[0].Error, "Fallback: sent via SendGrid.")
}

func TestNotifier_LogTextUsesTransportNames(t *testing.T) {
	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "postmark"}
	fallback := &mockTransport{name: "mailgun"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("relay down")).Once()
	fallback.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("quota exceeded")).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary, WithFallback(fallback))
	out := n.Notify(context.Background(), newMessage("a@example.edu"))

	assert.False(t, out.Sent)
	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Error, "postmark send error: relay down")
	assert.Contains(t, logs[0].Error, "mailgun fallback failed: quota exceeded")
	assert.NotContains(t, logs[0].Error, "SMTP")
	assert.NotContains(t, logs[0].Error, "SendGrid")
}

func TestNotifier_SendGridFallbackRejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal")
	}))
	defer srv.Close()

	db := testhelpers.NewDB(t)
	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("connection refused")).Once()

	n := NewNotifier(NewDeliveryLog(db), "portal@example.edu", primary,
		WithFallback(mail.NewSendGridTransport("SG.key", srv.URL)))
	out := n.Notify(context.Background(), newMessage("a@example.edu"))

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, out.Sent)
	assert.True(t, out.Has(KindPrimary))
	assert.True(t, out.Has(KindSecondary))

	var statusErr *mail.StatusError
	require.ErrorAs(t, out.Err(), &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)

	logs := loadLogs(t, db)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Sent)
	assert.Contains(t, logs[0].Error, "SMTP send error: connection refused")
	assert.Contains(t, logs[0].Error, "\nSendGrid fallback failed: sendgrid returned 500: internal")
}
