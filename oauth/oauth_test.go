package oauth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/oauth"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/jrsteele09/go-underwriter/tokenstore/repofake"
	"github.com/stretchr/testify/require"
)

const deskOrigin = "http://localhost:3000"

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, message)
}

func (a *alerts) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

type fakeLauncher struct {
	window  *oauth.TrackedWindow
	err     error
	blocked bool
	onOpen  func()
	opened  []string
	spec    oauth.WindowSpec
}

func (l *fakeLauncher) Open(rawURL string, spec oauth.WindowSpec) (oauth.Window, error) {
	l.opened = append(l.opened, rawURL)
	l.spec = spec
	if l.err != nil {
		return nil, l.err
	}
	if l.blocked {
		return nil, nil
	}
	if l.onOpen != nil {
		go l.onOpen()
	}
	return l.window, nil
}

type fixture struct {
	store    *repofake.FakeStore
	session  *auth.Service
	nav      *navigation.Recorder
	alerts   *alerts
	bus      *oauth.MessageBus
	deps     oauth.Deps
	posted   []oauthmodel.Envelope
	postedMu sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  repofake.NewFakeStore(),
		nav:    &navigation.Recorder{},
		alerts: &alerts{},
		bus:    oauth.NewMessageBus(),
	}
	session, err := auth.NewService(f.store, "http://backend.invalid")
	require.NoError(t, err)
	session.Init()
	f.session = session
	f.deps = oauth.Deps{
		Session:   session,
		Store:     f.store,
		Navigator: f.nav,
		Notifier:  f.alerts,
		Bus:       f.bus,
		Origin:    deskOrigin,
	}
	return f
}

// watch records every message posted to the bus.
func (f *fixture) watch() func() {
	return f.bus.Listen(func(env oauthmodel.Envelope) {
		f.postedMu.Lock()
		defer f.postedMu.Unlock()
		f.posted = append(f.posted, env)
	})
}

func (f *fixture) messages() []oauthmodel.Envelope {
	f.postedMu.Lock()
	defer f.postedMu.Unlock()
	return append([]oauthmodel.Envelope(nil), f.posted...)
}

func waitForListeners(bus *oauth.MessageBus, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for bus.Listeners() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

func successParams() oauthmodel.CallbackParameters {
	return oauthmodel.CallbackParameters{Token: "tok-1", User: "Jane%20Doe)", Email: "jane%40example.com"}
}

func TestWindowSpec_Features(t *testing.T) {
	spec := oauth.WindowSpec{Name: oauth.PopupName, Width: 500, Height: 600, Scrollbars: true, Resizable: true}
	require.Equal(t, "width=500,height=600,scrollbars=yes,resizable=yes", spec.Features())
}

func TestEntryURL(t *testing.T) {
	require.Equal(t, "http://api.example.com/api/v1/google", oauth.EntryURL("http://api.example.com/api/v1", "/google"))
}

func TestPopupFlow_Blocked(t *testing.T) {
	t.Run("nil window", func(t *testing.T) {
		f := newFixture(t)
		flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{blocked: true})
		_, err := flow.Start(context.Background())
		require.ErrorIs(t, err, oauth.ErrPopupBlocked)
		require.Equal(t, []string{oauth.PopupBlockedMessage}, f.alerts.all())
		require.False(t, flow.Loading())
	})

	t.Run("launcher error", func(t *testing.T) {
		f := newFixture(t)
		cause := errors.New("no browser")
		flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{err: cause})
		_, err := flow.Start(context.Background())
		require.ErrorIs(t, err, oauth.ErrPopupBlocked)
		require.ErrorIs(t, err, cause)
	})
}

func TestPopupFlow_Success(t *testing.T) {
	f := newFixture(t)
	window := oauth.NewTrackedWindow(nil)
	var flow *oauth.PopupFlow
	launcher := &fakeLauncher{window: window}
	launcher.onOpen = func() {
		waitForListeners(f.bus, 1)
		flow.Receive(successParams())
	}
	flow = oauth.NewPopupFlow(f.deps, "http://backend/google", launcher, oauth.WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := flow.Start(ctx)
	require.NoError(t, err)

	success, ok := result.(oauth.Success)
	require.True(t, ok)
	require.Equal(t, "tok-1", success.Token)
	require.Equal(t, "Jane Doe", success.User.UserName)
	require.Equal(t, "jane@example.com", success.User.Email)

	require.Equal(t, []string{"http://backend/google"}, launcher.opened)
	require.Equal(t, oauth.PopupName, launcher.spec.Name)
	require.True(t, window.Closed())
	require.Equal(t, navigation.Root, f.nav.Last())
	require.Equal(t, auth.StateAuthenticated, f.session.State())
	require.Zero(t, f.bus.Listeners())

	token, ok := f.store.Get(tokenstore.KeyToken)
	require.True(t, ok)
	require.Equal(t, "tok-1", token)
	_, ok = f.store.Get(tokenstore.KeyUser)
	require.True(t, ok)
}

func TestPopupFlow_ErrorMessage(t *testing.T) {
	f := newFixture(t)
	window := oauth.NewTrackedWindow(nil)
	var flow *oauth.PopupFlow
	launcher := &fakeLauncher{window: window}
	launcher.onOpen = func() {
		waitForListeners(f.bus, 1)
		flow.Receive(oauthmodel.CallbackParameters{Error: "access_denied"})
	}
	flow = oauth.NewPopupFlow(f.deps, "http://backend/google", launcher, oauth.WithPollInterval(10*time.Millisecond))

	result, err := flow.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, oauth.Failure{Reason: "access_denied"}, result)
	require.ErrorIs(t, result.(oauth.Failure).Err(), oauth.ErrOAuthFailed)
	require.Equal(t, []string{"Authentication failed: access_denied"}, f.alerts.all())
	require.True(t, window.Closed())
	require.Equal(t, auth.StateUnauthenticated, f.session.State())
	require.Empty(t, f.nav.Paths())
}

func TestPopupFlow_IgnoresForeignOrigin(t *testing.T) {
	f := newFixture(t)
	window := oauth.NewTrackedWindow(nil)
	launcher := &fakeLauncher{window: window}
	launcher.onOpen = func() {
		waitForListeners(f.bus, 1)
		user := successParams().SessionUser()
		f.bus.Post("https://evil.example", oauthmodel.SuccessMessage("stolen", user))
		time.Sleep(30 * time.Millisecond)
		window.Close()
	}
	flow := oauth.NewPopupFlow(f.deps, "http://backend/google", launcher, oauth.WithPollInterval(10*time.Millisecond))

	_, err := flow.Start(context.Background())
	require.ErrorIs(t, err, oauth.ErrPopupClosed)
	require.Equal(t, auth.StateUnauthenticated, f.session.State())
	require.Empty(t, f.store.Keys())
	require.False(t, flow.Loading())
}

func TestPopupFlow_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	window := oauth.NewTrackedWindow(nil)
	flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{window: window}, oauth.WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := flow.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, window.Closed())
}

func TestPopupFlow_Cancel(t *testing.T) {
	f := newFixture(t)
	window := oauth.NewTrackedWindow(nil)
	flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{window: window}, oauth.WithPollInterval(5*time.Millisecond))
	require.False(t, flow.Cancel())

	done := make(chan error, 1)
	go func() {
		_, err := flow.Start(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.bus.Listeners() == 1 }, time.Second, time.Millisecond)

	require.True(t, flow.Cancel())
	select {
	case err := <-done:
		require.ErrorIs(t, err, oauth.ErrPopupClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not end the handshake")
	}
	require.True(t, window.Closed())
	require.False(t, flow.Loading())
	require.False(t, flow.Cancel())
}

func TestPageLauncher(t *testing.T) {
	window, err := oauth.PageLauncher{}.Open("http://backend/google", oauth.WindowSpec{Name: oauth.PopupName})
	require.NoError(t, err)
	require.False(t, window.Closed())
	window.Close()
	require.True(t, window.Closed())
}

func TestPopupFlow_Receive(t *testing.T) {
	t.Run("error posts exactly one message and closes", func(t *testing.T) {
		f := newFixture(t)
		defer f.watch()()
		flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{})

		action := flow.Receive(oauthmodel.CallbackParameters{Error: "access_denied"})
		require.Equal(t, oauth.ActionClose, action.Kind)

		msgs := f.messages()
		require.Len(t, msgs, 1)
		require.Equal(t, deskOrigin, msgs[0].Origin)
		require.Equal(t, oauthmodel.ErrorMessage("access_denied"), msgs[0].Message)
	})

	t.Run("no data posts the generic failure", func(t *testing.T) {
		f := newFixture(t)
		defer f.watch()()
		flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{})

		flow.Receive(oauthmodel.CallbackParameters{})
		msgs := f.messages()
		require.Len(t, msgs, 1)
		require.Equal(t, oauthmodel.GenericFailure, msgs[0].Message.Error)
	})

	t.Run("session is stored before posting success", func(t *testing.T) {
		f := newFixture(t)
		defer f.watch()()
		flow := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{})

		action := flow.Receive(successParams())
		require.Equal(t, oauth.ActionClose, action.Kind)
		require.Equal(t, oauthmodel.MessageSuccess, action.Message.Type)
		require.Len(t, f.messages(), 1)
		require.Equal(t, auth.StateAuthenticated, f.session.State())
	})
}

func TestRedirectFlow(t *testing.T) {
	t.Run("start navigates to the entry url", func(t *testing.T) {
		f := newFixture(t)
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")
		result, err := flow.Start(context.Background())
		require.NoError(t, err)
		require.Nil(t, result)
		require.Equal(t, "http://backend/google", f.nav.Last())
	})

	t.Run("error goes to the login page without a message", func(t *testing.T) {
		f := newFixture(t)
		defer f.watch()()
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")

		action := flow.Receive(oauthmodel.CallbackParameters{Error: "access_denied"})
		require.Equal(t, oauth.ActionNavigate, action.Kind)
		require.Equal(t, "/login?error=access_denied", action.Location)
		require.Nil(t, action.Message)
		require.Empty(t, f.messages())
	})

	t.Run("generic failure is escaped", func(t *testing.T) {
		f := newFixture(t)
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")
		action := flow.Receive(oauthmodel.CallbackParameters{Token: "only-token"})
		require.Equal(t, "/login?error=Authentication+failed+-+no+data+received", action.Location)
	})

	t.Run("success stores the session and goes to the root", func(t *testing.T) {
		f := newFixture(t)
		defer f.watch()()
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")

		action := flow.Receive(successParams())
		require.Equal(t, oauth.CallbackAction{Kind: oauth.ActionNavigate, Location: navigation.Root}, action)
		require.Empty(t, f.messages())

		token, _ := f.store.Get(tokenstore.KeyToken)
		require.Equal(t, "tok-1", token)
		user, ok := f.session.User()
		require.True(t, ok)
		require.Equal(t, "Jane Doe", user.UserName)
	})

	t.Run("wait reports success when already signed in", func(t *testing.T) {
		f := newFixture(t)
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")
		flow.Receive(successParams())
		require.Equal(t, auth.StateAuthenticated, f.session.State())

		_, err := flow.Start(context.Background())
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		go flow.Receive(successParams())

		result, err := flow.Wait(ctx)
		require.NoError(t, err)
		require.True(t, result.Succeeded())
		require.Equal(t, "tok-1", result.(oauth.Success).Token)
	})

	t.Run("wait reports a failed callback", func(t *testing.T) {
		f := newFixture(t)
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")
		_, err := flow.Start(context.Background())
		require.NoError(t, err)
		flow.Receive(oauthmodel.CallbackParameters{Error: "access_denied"})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		result, err := flow.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, oauth.Failure{Reason: "access_denied"}, result)
		require.ErrorIs(t, result.(oauth.Failure).Err(), oauth.ErrOAuthFailed)
	})

	t.Run("start discards an earlier outcome", func(t *testing.T) {
		f := newFixture(t)
		flow := oauth.NewRedirectFlow(f.deps, "http://backend/google")
		flow.Receive(oauthmodel.CallbackParameters{Error: "stale"})
		_, err := flow.Start(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = flow.Wait(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestDispatcher(t *testing.T) {
	f := newFixture(t)
	redirect := oauth.NewRedirectFlow(f.deps, "http://backend/google")
	popup := oauth.NewPopupFlow(f.deps, "http://backend/google", &fakeLauncher{})
	d := oauth.NewDispatcher(redirect)

	require.Equal(t, oauth.RedirectFlowName, d.Active().Name())
	release := d.Activate(popup)
	require.Equal(t, oauth.PopupFlowName, d.Active().Name())
	require.Equal(t, oauth.ActionClose, d.Receive(oauthmodel.CallbackParameters{Error: "x"}).Kind)

	release()
	require.Equal(t, oauth.ActionNavigate, d.Receive(oauthmodel.CallbackParameters{Error: "x"}).Kind)
}
