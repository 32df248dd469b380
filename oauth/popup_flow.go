package oauth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/rs/zerolog/log"
)

const PopupFlowName = "popup"

// PopupFlow opens the entry URL in a popup and waits for the callback page inside it to post a
// message back. It also gives up when the popup is closed by hand, checked every poll interval.
type PopupFlow struct {
	deps         Deps
	entryURL     string
	spec         WindowSpec
	launcher     Launcher
	pollInterval time.Duration
	loading      atomic.Bool

	mu     sync.Mutex
	window Window
}

type PopupOption func(*PopupFlow)

func WithPollInterval(interval time.Duration) PopupOption {
	return func(f *PopupFlow) {
		f.pollInterval = interval
	}
}

func WithWindowSpec(spec WindowSpec) PopupOption {
	return func(f *PopupFlow) {
		f.spec = spec
	}
}

func NewPopupFlow(deps Deps, entryURL string, launcher Launcher, options ...PopupOption) *PopupFlow {
	f := &PopupFlow{
		deps:         deps,
		entryURL:     entryURL,
		launcher:     launcher,
		pollInterval: time.Second,
		spec:         WindowSpec{Name: PopupName, Width: 500, Height: 600, Scrollbars: true, Resizable: true},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *PopupFlow) Name() string { return PopupFlowName }

func (f *PopupFlow) EntryURL() string { return f.entryURL }

// Loading reports whether a handshake is in progress.
func (f *PopupFlow) Loading() bool { return f.loading.Load() }

// Start opens the popup and blocks until it reports back, is closed, or ctx ends. A reported
// error is returned as a Failure result, not as an error.
func (f *PopupFlow) Start(ctx context.Context) (Result, error) {
	f.loading.Store(true)
	defer f.loading.Store(false)

	window, err := f.launcher.Open(f.entryURL, f.spec)
	if err != nil || window == nil {
		f.deps.Notifier.Alert(PopupBlockedMessage)
		if err != nil {
			return nil, &blockedError{cause: err}
		}
		return nil, ErrPopupBlocked
	}

	f.track(window)
	defer f.track(nil)

	messages := make(chan oauthmodel.Message, 1)
	remove := f.deps.Bus.Listen(func(env oauthmodel.Envelope) {
		if env.Origin != f.deps.Origin {
			log.Debug().Str("origin", env.Origin).Msg("oauth: dropped message from foreign origin")
			return
		}
		if env.Message.Type != oauthmodel.MessageSuccess && env.Message.Type != oauthmodel.MessageError {
			return
		}
		select {
		case messages <- env.Message:
		default:
		}
	})
	defer remove()

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-messages:
			return f.complete(msg, window)
		case <-ticker.C:
			if window.Closed() {
				log.Info().Msg("oauth: popup closed before completing")
				return nil, ErrPopupClosed
			}
		case <-ctx.Done():
			window.Close()
			return nil, ctx.Err()
		}
	}
}

func (f *PopupFlow) track(window Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = window
}

// Cancel closes the popup of the running handshake, which then ends with ErrPopupClosed at the
// next poll. It reports false when no handshake is waiting on a popup.
func (f *PopupFlow) Cancel() bool {
	f.mu.Lock()
	window := f.window
	f.mu.Unlock()
	if window == nil {
		return false
	}
	window.Close()
	return true
}

func (f *PopupFlow) complete(msg oauthmodel.Message, window Window) (Result, error) {
	defer window.Close()

	if msg.Type == oauthmodel.MessageError || msg.User == nil || msg.Token == "" {
		reason := msg.Error
		if reason == "" {
			reason = oauthmodel.GenericFailure
		}
		log.Warn().Str("reason", reason).Msg("oauth: handshake failed")
		f.deps.Notifier.Alert("Authentication failed: " + reason)
		return Failure{Reason: reason}, nil
	}

	user := msg.User.Clean()
	if err := establish(f.deps, msg.Token, user); err != nil {
		return nil, err
	}
	if f.deps.Navigator != nil {
		f.deps.Navigator.Navigate(navigation.Root)
	}
	log.Info().Str("email", user.Email).Msg("oauth: signed in via popup")
	return Success{Token: msg.Token, User: user}, nil
}

// Receive runs inside the popup: it records the session, posts exactly one message to the
// opener and tells the page to close.
func (f *PopupFlow) Receive(params oauthmodel.CallbackParameters) CallbackAction {
	var msg oauthmodel.Message
	if params.Error == "" && params.HasSession() {
		user := params.SessionUser()
		if err := establish(f.deps, params.Token, user); err != nil {
			log.Err(err).Msg("oauth: failed to record popup session")
			msg = oauthmodel.ErrorMessage("Failed to store session")
		} else {
			msg = oauthmodel.SuccessMessage(params.Token, user)
		}
	} else {
		msg = oauthmodel.ErrorMessage(params.FailureReason())
	}

	f.deps.Bus.Post(f.deps.Origin, msg)
	return CallbackAction{Kind: ActionClose, Message: &msg}
}

type blockedError struct {
	cause error
}

func (e *blockedError) Error() string { return ErrPopupBlocked.Error() + ": " + e.cause.Error() }

func (e *blockedError) Unwrap() []error { return []error{ErrPopupBlocked, e.cause} }
