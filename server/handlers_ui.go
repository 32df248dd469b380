package server

import (
	"net/http"

	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/deals"
	"github.com/jrsteele09/go-underwriter/oauth"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/jrsteele09/go-underwriter/users"
)

type indexPage struct {
	AppName string
	User    users.User
	Draft   deals.Snapshot
}

type loginPage struct {
	AppName string
	Error   string
	Email   string
}

type callbackPage struct {
	Failed bool
	Error  string
}

// IndexHandler shows the current deal to a signed-in user and sends everyone else to the login page.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.auth.User()
		if !ok {
			redirectSuccess(w, r, RouteLogin)
			return
		}
		renderTemplate(w, "index.html", http.StatusOK, indexPage{
			AppName: s.appName,
			User:    user,
			Draft:   s.draft.Snapshot(),
		})
	}
}

func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth.State() == auth.StateAuthenticated {
			redirectSuccess(w, r, RouteRoot)
			return
		}
		renderTemplate(w, "login.html", http.StatusOK, loginPage{
			AppName: s.appName,
			Error:   r.URL.Query().Get("error"),
			Email:   r.URL.Query().Get("email"),
		})
	}
}

// CallbackHandler is where the backend sends the browser after the Google round trip. The active
// flow decides whether the page closes itself or moves on.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.ParseCallbackParameters(r.URL.Query())
		action := s.dispatcher.Receive(params)

		if action.Kind == oauth.ActionNavigate {
			http.Redirect(w, r, action.Location, http.StatusFound)
			return
		}

		page := callbackPage{}
		if action.Message != nil && action.Message.Type == oauthmodel.MessageError {
			page.Failed = true
			page.Error = "Authentication failed: " + action.Message.Error
		}
		renderTemplate(w, "callback.html", http.StatusOK, page)
	}
}
