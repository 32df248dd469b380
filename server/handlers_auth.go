package server

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/oauth"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/rs/zerolog/log"
)

// Messages shown on the login page
const (
	msgInvalidLogin       = "Invalid email or password. Please try again."
	msgPasswordsDontMatch = "Passwords do not match"
	msgRegistrationFailed = "Registration failed. Please try again."
)

// Handshake modes accepted by the Google route
const (
	modePopup    = "popup"
	modeRedirect = "redirect"
)

type sessionView struct {
	State        string `json:"state"`
	Loading      bool   `json:"loading"`
	Email        string `json:"email,omitempty"`
	UserName     string `json:"userName,omitempty"`
	OAuthPending bool   `json:"oauthPending"`
}

type popupStarted struct {
	Flow     string `json:"flow"`
	EntryURL string `json:"entryUrl"`
}

func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLogin, msgInvalidLogin)
			return
		}
		email := r.FormValue("email")
		if err := s.auth.Login(r.Context(), email, r.FormValue("password")); err != nil {
			log.Err(err).Str("email", email).Msg("[LoginSubmissionHandler] login failed")
			redirectWithError(w, r, RouteLogin, msgInvalidLogin)
			return
		}
		redirectSuccess(w, r, RouteRoot)
	}
}

func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLogin, msgRegistrationFailed)
			return
		}
		email := r.FormValue("email")
		userName := r.FormValue("userName")
		password := r.FormValue("password")

		if password != r.FormValue("confirmPassword") {
			redirectWithError(w, r, RouteLogin, msgPasswordsDontMatch)
			return
		}
		if err := s.auth.Register(r.Context(), email, userName, password); err != nil {
			log.Err(err).Str("email", email).Msg("[RegisterSubmissionHandler] registration failed")
			redirectWithError(w, r, RouteLogin, msgRegistrationFailed)
			return
		}
		redirectSuccess(w, r, RouteRoot)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Logout()
		redirectSuccess(w, r, RouteLogin)
	}
}

// GoogleHandler starts a handshake. The redirect mode sends the browser to the backend entry URL and
// leaves the callback to the dispatcher's fallback. The popup mode opens the entry URL in a separate
// window and answers at once while the flow waits in the background.
func (s *Server) GoogleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = modeRedirect
		}

		switch mode {
		case modeRedirect:
			http.Redirect(w, r, s.redirect.EntryURL(), http.StatusFound)
		case modePopup:
			if !s.startPopup() {
				writeJSONError(w, http.StatusConflict, "Google sign in already in progress")
				return
			}
			writeJSON(w, http.StatusAccepted, popupStarted{Flow: oauth.PopupFlowName, EntryURL: s.popup.EntryURL()})
		default:
			writeJSONError(w, http.StatusBadRequest, "unknown mode "+mode)
		}
	}
}

// GoogleCancelHandler is called by the login page when the user closes the popup it opened. Closing
// the tracked window ends the pending handshake at its next poll.
func (s *Server) GoogleCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.popup.Cancel() {
			log.Debug().Msg("[GoogleCancelHandler] no popup handshake to cancel")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// startPopup runs the popup flow on the server's context. It reports false when one is already running.
func (s *Server) startPopup() bool {
	if !s.popupBusy.CompareAndSwap(false, true) {
		return false
	}
	release := s.dispatcher.Activate(s.popup)

	s.flows.Add(1)
	go func() {
		defer s.flows.Done()
		defer s.popupBusy.Store(false)
		defer release()

		ctx, cancel := context.WithTimeout(s.ctx, s.config.GetOAuthTimeout())
		defer cancel()

		result, err := s.popup.Start(ctx)
		switch {
		case err != nil:
			log.Err(err).Msg("[GoogleHandler] popup handshake ended")
		case result.Succeeded():
			log.Info().Msg("[GoogleHandler] popup handshake succeeded")
		default:
			log.Warn().Msg("[GoogleHandler] popup handshake reported a failure")
		}
	}()
	return true
}

// MessageHandler lets a callback page served elsewhere relay its result. The sender's Origin header
// travels with the message; the popup flow drops anything not from the desk's own origin. A sender
// that withholds its origin is refused outright.
func (s *Server) MessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" {
			log.Warn().Str("remote", r.RemoteAddr).Msg("[MessageHandler] message without a usable origin rejected")
			writeJSONError(w, http.StatusForbidden, "Origin required")
			return
		}
		var msg oauthmodel.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeAPIError(w, "post message", apperrors.Wrapf(apperrors.ErrInvalidRequest, "malformed message: %v", err))
			return
		}
		s.bus.Post(origin, msg)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := sessionView{
			State:        s.auth.State().String(),
			Loading:      s.auth.Loading(),
			OAuthPending: s.popupBusy.Load() || s.popup.Loading(),
		}
		if user, ok := s.auth.User(); ok {
			view.Email = user.Email
			view.UserName = user.UserName
		}
		writeJSON(w, http.StatusOK, view)
	}
}
