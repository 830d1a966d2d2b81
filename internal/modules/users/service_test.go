package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/modules/notify"
	"github.com/campusdocs/portal/internal/pkg/mail"
	"github.com/campusdocs/portal/internal/pkg/pagination"
	sessionpkg "github.com/campusdocs/portal/internal/pkg/session"
	"github.com/campusdocs/portal/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
	ok   bool
}

func (f *fakeSender) Notify(_ context.Context, msg mail.Message) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return notify.Outcome{Sent: f.ok, LogID: "log-1"}
}

func newService(t *testing.T) (*Service, *fakeSender) {
	t.Helper()
	loginDelay = 0
	sender := &fakeSender{ok: true}
	return NewService(testhelpers.NewDB(t), sender, "portal@example.edu", nil), sender
}

func TestService_Create(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &CreateUserDTO{Username: " Zoe ", Password: "password1", Email: "zoe@example.edu", Level: 2})
	require.NoError(t, err)
	assert.Equal(t, "Zoe", u.Username)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
	assert.NotEqual(t, "password1", u.Password)

	_, err = svc.Create(ctx, &CreateUserDTO{Username: "zoe", Password: "password2"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	inactive, err := svc.Create(ctx, &CreateUserDTO{Username: "dormant", Password: "password1", Inactive: true})
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)
	assert.Equal(t, models.MinLevel, inactive.Level)
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, &CreateUserDTO{Username: "Zoe", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateUserDTO{Username: "dormant", Password: "password1", Inactive: true})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ZOE", "password1")
	require.NoError(t, err)
	assert.Equal(t, "Zoe", u.Username)

	_, err = svc.Authenticate(ctx, "zoe", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "dormant", "password1")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestService_UpdateDeactivateRevokesSessions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, &CreateUserDTO{Username: "zoe", Password: "password1"})
	require.NoError(t, err)
	_, s, err := sessionpkg.Issue(ctx, svc.db, u.ID, "", "", time.Hour)
	require.NoError(t, err)

	level := 4
	active := false
	email := "zoe@example.edu"
	got, err := svc.Update(ctx, u.ID, &UpdateUserDTO{Level: &level, IsActive: &active, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Level)
	assert.False(t, got.IsActive)
	assert.Equal(t, "zoe@example.edu", got.Email)

	live, err := sessionpkg.IsActive(ctx, svc.db, u.ID, s.ID)
	require.NoError(t, err)
	assert.False(t, live)

	_, err = svc.Update(ctx, "missing", &UpdateUserDTO{Level: &level})
	assert.ErrorIs(t, err, errUserNotFound)
}

func TestService_ListAndSearch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := svc.Create(ctx, &CreateUserDTO{Username: name, Password: "password1", Email: name + "@example.edu"})
		require.NoError(t, err)
	}

	items, pag, err := svc.List(ctx, pagination.Query{Page: 1, Size: 2}, "", nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "alice", items[0].Username)
	assert.EqualValues(t, 3, pag.Total)
	assert.True(t, pag.HasNextPage)

	items, _, err = svc.List(ctx, pagination.Query{Page: 1, Size: 10}, "BOB@", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bob", items[0].Username)
}

func TestService_ChangePassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, &CreateUserDTO{Username: "zoe", Password: "password1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "nope", "password2"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, u.ID, "password1", "password2"))
	_, err = svc.Authenticate(ctx, "zoe", "password2")
	assert.NoError(t, err)
}

func TestService_SendWelcome(t *testing.T) {
	svc, sender := newService(t)
	ctx := context.Background()

	withMail, err := svc.Create(ctx, &CreateUserDTO{Username: "zoe", Password: "password1", Email: "zoe@example.edu"})
	require.NoError(t, err)
	out, err := svc.SendWelcome(ctx, withMail)
	require.NoError(t, err)
	assert.True(t, out.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Welcome to our platform", sender.sent[0].Subject)
	assert.Equal(t, "portal@example.edu", sender.sent[0].From)

	noMail, err := svc.Create(ctx, &CreateUserDTO{Username: "anon", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.SendWelcome(ctx, noMail)
	assert.ErrorIs(t, err, errNoEmail)
	assert.Len(t, sender.sent, 1)
}
