package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/internal/testbackend"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/jrsteele09/go-underwriter/tokenstore/repofake"
	"github.com/jrsteele09/go-underwriter/users"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	states []auth.State
}

func (r *recorder) observe(s auth.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) seen() []auth.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.State(nil), r.states...)
}

func newService(t *testing.T) (*auth.Service, *repofake.FakeStore, *testbackend.Backend) {
	t.Helper()
	backend := testbackend.New(t)
	backend.AddAccount("alice@example.com", "Alice", "s3cret")
	store := repofake.NewFakeStore()
	svc, err := auth.NewService(store, backend.URL())
	require.NoError(t, err)
	return svc, store, backend
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := auth.NewService(nil, "http://localhost")
	require.Error(t, err)

	_, err = auth.NewService(repofake.NewFakeStore(), "")
	require.Error(t, err)
}

func TestService_Login(t *testing.T) {
	t.Run("success persists the session and notifies once", func(t *testing.T) {
		svc, store, _ := newService(t)
		svc.Init()
		rec := &recorder{}
		svc.Subscribe(rec.observe)

		require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))

		user, ok := svc.User()
		require.True(t, ok)
		require.Equal(t, users.User{ID: users.PlaceholderID, Email: "alice@example.com", UserName: "Alice"}, user)
		require.Equal(t, auth.StateAuthenticated, svc.State())
		require.Equal(t, []auth.State{auth.StateAuthenticated}, rec.seen())

		token, ok := store.Get(tokenstore.KeyToken)
		require.True(t, ok)
		require.NotEmpty(t, token)
		_, ok = store.Get(tokenstore.KeyRefreshToken)
		require.True(t, ok)

		raw, ok := store.Get(tokenstore.KeyUser)
		require.True(t, ok)
		stored, changed, err := users.Migrate(raw)
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, user, stored)
	})

	t.Run("rejected credentials leave state unchanged", func(t *testing.T) {
		svc, store, _ := newService(t)
		svc.Init()
		rec := &recorder{}
		svc.Subscribe(rec.observe)

		err := svc.Login(context.Background(), "alice@example.com", "wrong")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.Equal(t, auth.StateUnauthenticated, svc.State())
		require.Empty(t, store.Keys())
		require.Empty(t, rec.seen())
	})

	t.Run("invalid input never reaches the backend", func(t *testing.T) {
		svc, _, backend := newService(t)
		err := svc.Login(context.Background(), "not-an-email", "pw")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.Zero(t, backend.LoginCalls.Load())
	})

	t.Run("failed user write removes the stored tokens", func(t *testing.T) {
		svc, store, _ := newService(t)
		svc.Init()
		rec := &recorder{}
		svc.Subscribe(rec.observe)
		store.FailSet(tokenstore.KeyUser, errors.New("disk full"))

		err := svc.Login(context.Background(), "alice@example.com", "s3cret")
		require.Error(t, err)
		require.Equal(t, auth.StateUnauthenticated, svc.State())
		require.Empty(t, store.Keys())
		require.Empty(t, rec.seen())
	})

	t.Run("failed refresh token write removes the access token", func(t *testing.T) {
		svc, store, _ := newService(t)
		store.FailSet(tokenstore.KeyRefreshToken, errors.New("disk full"))

		require.Error(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
		_, ok := store.Get(tokenstore.KeyToken)
		require.False(t, ok)
	})

	t.Run("missing refresh token drops a stale one", func(t *testing.T) {
		svc, store, backend := newService(t)
		backend.Configure(func(b *testbackend.Behaviour) { b.OmitRefreshToken = true })
		require.NoError(t, store.Set(tokenstore.KeyRefreshToken, "stale"))

		require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
		_, ok := store.Get(tokenstore.KeyRefreshToken)
		require.False(t, ok)
	})
}

func TestService_Register(t *testing.T) {
	t.Run("registers then logs in", func(t *testing.T) {
		svc, _, backend := newService(t)
		require.NoError(t, svc.Register(context.Background(), "bob@example.com", "Bob", "pw"))
		require.Equal(t, int32(1), backend.RegisterCalls.Load())
		require.Equal(t, int32(1), backend.LoginCalls.Load())

		user, ok := svc.User()
		require.True(t, ok)
		require.Equal(t, "Bob", user.UserName)
	})

	t.Run("backend rejection skips login", func(t *testing.T) {
		svc, _, backend := newService(t)
		err := svc.Register(context.Background(), "alice@example.com", "Alice", "pw")
		require.ErrorIs(t, err, auth.ErrRegistrationFailed)
		require.Zero(t, backend.LoginCalls.Load())
		require.Equal(t, auth.StateUnauthenticated, svc.State())
	})
}

func TestService_Logout(t *testing.T) {
	svc, store, _ := newService(t)
	require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
	rec := &recorder{}
	svc.Subscribe(rec.observe)

	svc.Logout()
	require.Equal(t, auth.StateUnauthenticated, svc.State())
	require.Empty(t, store.Keys())

	svc.Logout()
	require.Equal(t, []auth.State{auth.StateUnauthenticated}, rec.seen())
}

func TestService_Init(t *testing.T) {
	t.Run("fresh store stays signed out", func(t *testing.T) {
		svc, _, _ := newService(t)
		require.True(t, svc.Loading())
		svc.Init()
		require.False(t, svc.Loading())
		require.Equal(t, auth.StateUnauthenticated, svc.State())
	})

	t.Run("token without user stays signed out", func(t *testing.T) {
		svc, store, _ := newService(t)
		require.NoError(t, store.Set(tokenstore.KeyToken, "tok"))
		svc.Init()
		require.Equal(t, auth.StateUnauthenticated, svc.State())
	})

	t.Run("legacy user string is migrated and re-persisted", func(t *testing.T) {
		svc, store, _ := newService(t)
		require.NoError(t, store.Set(tokenstore.KeyToken, "tok"))
		require.NoError(t, store.Set(tokenstore.KeyUser, "Jane%20Doe)"))

		svc.Init()
		user, ok := svc.User()
		require.True(t, ok)
		require.Equal(t, users.User{ID: users.PlaceholderID, Email: "", UserName: "Jane Doe"}, user)

		raw, _ := store.Get(tokenstore.KeyUser)
		require.NotEqual(t, "Jane%20Doe)", raw)
		again, changed, err := users.Migrate(raw)
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, user, again)
	})

	t.Run("object user with stray characters is cleaned", func(t *testing.T) {
		svc, store, _ := newService(t)
		require.NoError(t, store.Set(tokenstore.KeyToken, "tok"))
		require.NoError(t, store.Set(tokenstore.KeyUser, `{"id":"user-id","email":"a@b.com}","userName":"Al )"}`))

		svc.Init()
		user, ok := svc.User()
		require.True(t, ok)
		require.Equal(t, "a@b.com", user.Email)
		require.Equal(t, "Al", user.UserName)
	})
}

func TestService_RefreshToken(t *testing.T) {
	t.Run("no refresh token makes no call", func(t *testing.T) {
		svc, _, backend := newService(t)
		require.False(t, svc.RefreshToken(context.Background()))
		require.Zero(t, backend.RefreshCalls.Load())
	})

	t.Run("root token replaces the stored token", func(t *testing.T) {
		svc, store, _ := newService(t)
		require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
		before, _ := store.Get(tokenstore.KeyToken)

		require.True(t, svc.RefreshToken(context.Background()))
		after, _ := store.Get(tokenstore.KeyToken)
		require.NotEqual(t, before, after)
	})

	t.Run("nested token and user name are merged", func(t *testing.T) {
		svc, _, backend := newService(t)
		require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
		backend.Configure(func(b *testbackend.Behaviour) {
			b.RefreshNested = true
			b.RefreshUserName = "Alice Renamed"
		})

		require.True(t, svc.RefreshToken(context.Background()))
		user, _ := svc.User()
		require.Equal(t, "Alice Renamed", user.UserName)
		require.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("user name is not merged when signed out", func(t *testing.T) {
		svc, store, backend := newService(t)
		_, refresh := backend.IssueTokens("alice@example.com")
		require.NoError(t, store.Set(tokenstore.KeyRefreshToken, refresh))
		backend.Configure(func(b *testbackend.Behaviour) { b.RefreshUserName = "Ghost" })

		require.True(t, svc.RefreshToken(context.Background()))
		_, ok := svc.User()
		require.False(t, ok)
		_, ok = store.Get(tokenstore.KeyUser)
		require.False(t, ok)
	})

	t.Run("rejection returns false", func(t *testing.T) {
		svc, _, backend := newService(t)
		require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
		backend.Configure(func(b *testbackend.Behaviour) { b.FailRefresh = true })
		require.False(t, svc.RefreshToken(context.Background()))
	})
}

func TestService_SetUser(t *testing.T) {
	svc, store, _ := newService(t)
	u := users.New("c@d.com", "Carol")
	require.NoError(t, svc.SetUser(&u))
	require.Equal(t, auth.StateAuthenticated, svc.State())
	_, ok := store.Get(tokenstore.KeyUser)
	require.True(t, ok)

	require.NoError(t, svc.SetUser(nil))
	require.Equal(t, auth.StateUnauthenticated, svc.State())
	_, ok = store.Get(tokenstore.KeyUser)
	require.False(t, ok)
}

func TestService_TokenAndUnsubscribe(t *testing.T) {
	svc, _, _ := newService(t)
	_, ok := svc.Token()
	require.False(t, ok)

	rec := &recorder{}
	unsubscribe := svc.Subscribe(rec.observe)
	unsubscribe()
	require.NoError(t, svc.Login(context.Background(), "alice@example.com", "s3cret"))
	require.Empty(t, rec.seen())

	token, ok := svc.Token()
	require.True(t, ok)
	require.Equal(t, "Bearer", token.TokenType)
	require.NotEmpty(t, token.RefreshToken)
}
