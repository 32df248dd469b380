// Package oauth runs the browser handshake with the backend's Google bridge. Two flows exist and
// the caller picks one: PopupFlow keeps the desk open and waits for the popup to report back over
// a MessageBus, RedirectFlow hands the whole page over and finishes on the callback route.
package oauth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/users"
)

var (
	ErrPopupBlocked = apperrors.ErrPopupBlocked
	ErrPopupClosed  = apperrors.ErrPopupClosed
	ErrOAuthFailed  = apperrors.ErrOAuthFailed
)

// PopupBlockedMessage is shown when no popup window could be opened.
const PopupBlockedMessage = "Please allow popups for this site to use Google login"

// Result is the outcome of a completed handshake: Success or Failure.
type Result interface {
	Succeeded() bool
}

type Success struct {
	Token string
	User  users.User
}

func (Success) Succeeded() bool { return true }

type Failure struct {
	Reason string
}

func (Failure) Succeeded() bool { return false }

// Err converts the failure to an error wrapping ErrOAuthFailed.
func (f Failure) Err() error {
	return fmt.Errorf("%w: %s", ErrOAuthFailed, f.Reason)
}
