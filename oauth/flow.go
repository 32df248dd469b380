package oauth

import (
	"context"
	"net/url"

	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/jrsteele09/go-underwriter/users"
)

// Flow is one way of running the handshake. Start begins it from the desk; Receive handles the
// backend's redirect to the callback route and says what the callback page should do next.
type Flow interface {
	Name() string
	Start(ctx context.Context) (Result, error)
	Receive(params oauthmodel.CallbackParameters) CallbackAction
}

// Session is the part of the auth service a flow updates.
type Session interface {
	SetUser(user *users.User) error
}

type ActionKind int

const (
	// ActionClose means the callback page is a popup and should close itself.
	ActionClose ActionKind = iota
	// ActionNavigate means the callback page should move to Location.
	ActionNavigate
)

type CallbackAction struct {
	Kind     ActionKind
	Location string
	// Message is what was posted to the opener, if anything.
	Message *oauthmodel.Message
}

// Deps are the collaborators shared by both flows.
type Deps struct {
	Session   Session
	Store     tokenstore.Store
	Navigator navigation.Navigator
	Notifier  Notifier
	Bus       *MessageBus
	// Origin is the desk's own origin. Messages from any other origin are ignored.
	Origin string
}

// EntryURL is where a handshake starts: the backend URL plus the entry path.
func EntryURL(backendURL, entryPath string) string {
	return navigation.Resolve(backendURL, entryPath)
}

// LoginErrorLocation is the login page showing reason.
func LoginErrorLocation(reason string) string {
	return "/login?error=" + url.QueryEscape(reason)
}

// establish persists the session carried by a successful handshake and updates the auth state.
func establish(deps Deps, token string, user users.User) error {
	if err := deps.Store.Set(tokenstore.KeyToken, token); err != nil {
		return apperrors.Wrapf(err, "[oauth] persist token")
	}
	encoded, err := users.Encode(user)
	if err != nil {
		return err
	}
	if err := deps.Store.Set(tokenstore.KeyUser, encoded); err != nil {
		return apperrors.Wrapf(err, "[oauth] persist user")
	}
	if err := deps.Session.SetUser(&user); err != nil {
		return apperrors.Wrapf(err, "[oauth] set user")
	}
	return nil
}
