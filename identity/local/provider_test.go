package local_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/identity/local"
	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/token"
	"github.com/jrsteele09/crm-session/users"
	fakeuserrepo "github.com/jrsteele09/crm-session/users/repofake"
	"github.com/stretchr/testify/require"
)

const testPassword = "Sup3rSecret"

type providerFixture struct {
	provider *local.Provider
	users    *fakeuserrepo.FakeUserRepo
	now      time.Time
}

func newProviderFixture(t *testing.T) *providerFixture {
	t.Helper()
	f := &providerFixture{
		users: fakeuserrepo.NewFakeUserRepo(),
		now:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	issuer, err := token.NewIssuer([]byte("test-secret"), token.WithNowTime(clock))
	require.NoError(t, err)

	f.provider, err = local.NewProvider(f.users, issuer,
		local.WithNowTime(clock),
		local.WithAttemptLimit(3, time.Minute),
	)
	require.NoError(t, err)
	t.Cleanup(f.provider.Close)
	return f
}

func (f *providerFixture) register(t *testing.T, email string) *users.User {
	t.Helper()
	u, err := f.provider.Register(context.Background(), email, testPassword, "Dana Reyes", users.RoleSalesAgent)
	require.NoError(t, err)
	return u
}

type collector struct {
	mu   sync.Mutex
	seen []identity.Notification
}

func (c *collector) handle(_ context.Context, n identity.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, n)
}

func (c *collector) snapshot() []identity.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]identity.Notification(nil), c.seen...)
}

func TestNewProvider_Validation(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("s"))
	require.NoError(t, err)

	_, err = local.NewProvider(nil, issuer)
	require.Error(t, err)
	_, err = local.NewProvider(fakeuserrepo.NewFakeUserRepo(), nil)
	require.Error(t, err)
}

func TestSignIn_Success(t *testing.T) {
	f := newProviderFixture(t)
	u := f.register(t, "Dana@Example.com")

	id, err := f.provider.SignIn(context.Background(), " dana@example.com ", testPassword)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UID)
	require.Equal(t, "dana@example.com", id.Email)

	tok, err := f.provider.IDToken(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
}

func TestSignIn_ErrorCodes(t *testing.T) {
	f := newProviderFixture(t)
	u := f.register(t, "dana@example.com")
	ctx := context.Background()

	_, err := f.provider.SignIn(ctx, "nobody@example.com", testPassword)
	require.Equal(t, identity.CodeUserNotFound, identity.CodeOf(err))

	_, err = f.provider.SignIn(ctx, "dana@example.com", "wrong")
	require.Equal(t, identity.CodeWrongPassword, identity.CodeOf(err))

	require.NoError(t, f.users.SetDisabled(ctx, u.ID, true))
	_, err = f.provider.SignIn(ctx, "dana@example.com", testPassword)
	require.Equal(t, identity.CodeUserDisabled, identity.CodeOf(err))
}

func TestSignIn_TooManyAttempts(t *testing.T) {
	f := newProviderFixture(t)
	f.register(t, "dana@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.provider.SignIn(ctx, "dana@example.com", "wrong")
		require.Equal(t, identity.CodeWrongPassword, identity.CodeOf(err))
	}
	_, err := f.provider.SignIn(ctx, "dana@example.com", testPassword)
	require.Equal(t, identity.CodeTooManyRequests, identity.CodeOf(err))

	f.now = f.now.Add(2 * time.Minute)
	_, err = f.provider.SignIn(ctx, "dana@example.com", testPassword)
	require.NoError(t, err)
}

func TestSubscribe_ReportsStateChanges(t *testing.T) {
	f := newProviderFixture(t)
	u := f.register(t, "dana@example.com")
	ctx := context.Background()

	c := &collector{}
	unsubscribe, err := f.provider.Subscribe(ctx, c.handle)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = f.provider.SignIn(ctx, "dana@example.com", testPassword)
	require.NoError(t, err)
	f.provider.Refresh()
	require.NoError(t, f.provider.SignOut(ctx))

	require.Eventually(t, func() bool { return len(c.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	seen := c.snapshot()
	require.Equal(t, identity.UserAbsent, seen[0].Kind)
	require.Equal(t, identity.UserPresent, seen[1].Kind)
	require.Equal(t, u.ID, seen[1].Identity.UID)
	require.Equal(t, identity.UserPresent, seen[2].Kind)
	require.Equal(t, identity.UserAbsent, seen[3].Kind)
}

func TestSubscribe_InitialStateOnlyReachesNewSubscriber(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	first := &collector{}
	unsubscribe, err := f.provider.Subscribe(ctx, first.handle)
	require.NoError(t, err)
	defer unsubscribe()

	later := make([]*collector, 4)
	for i := range later {
		later[i] = &collector{}
		unsub, err := f.provider.Subscribe(ctx, later[i].handle)
		require.NoError(t, err)
		defer unsub()
	}

	for _, c := range later {
		require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	require.Len(t, first.snapshot(), 1)
	require.Equal(t, identity.UserAbsent, first.snapshot()[0].Kind)
}

func TestResume_AnnouncesIdentityToNewSubscribers(t *testing.T) {
	f := newProviderFixture(t)
	u := f.register(t, "dana@example.com")
	ctx := context.Background()

	f.provider.Resume(identity.Identity{UID: u.ID, Email: u.Email, DisplayName: u.Name})
	current, ok := f.provider.Current()
	require.True(t, ok)
	require.Equal(t, u.ID, current.UID)

	c := &collector{}
	unsubscribe, err := f.provider.Subscribe(ctx, c.handle)
	require.NoError(t, err)
	defer unsubscribe()
	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, identity.UserPresent, c.snapshot()[0].Kind)

	tok, err := f.provider.IDToken(ctx, false)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
}

func TestIDToken_NoCurrentUser(t *testing.T) {
	f := newProviderFixture(t)
	_, err := f.provider.IDToken(context.Background(), true)
	require.Equal(t, identity.CodeNoCurrentUser, identity.CodeOf(err))
}

func TestRegister_Validation(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	_, err := f.provider.Register(ctx, "not-an-email", testPassword, "X", users.RoleAdmin)
	require.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = f.provider.Register(ctx, "a@example.com", "weak", "X", users.RoleAdmin)
	require.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = f.provider.Register(ctx, "a@example.com", testPassword, "X", users.Role("root"))
	require.ErrorIs(t, err, errors.ErrInvalidInput)

	f.register(t, "a@example.com")
	_, err = f.provider.Register(ctx, "A@example.com", testPassword, "X", users.RoleAdmin)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}
