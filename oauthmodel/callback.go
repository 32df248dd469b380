package oauthmodel

import (
	"net/url"

	"github.com/jrsteele09/go-underwriter/users"
)

// GenericFailure is reported when the callback carries neither a session nor an error.
const GenericFailure = "Authentication failed - no data received"

// CallbackParameters are the query parameters the backend appends when it redirects back to
// the frontend's /auth/callback route.
type CallbackParameters struct {
	// Token is the bearer credential.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	Token string

	// User is the URL-encoded display name. It may carry stray ")" or "}" characters.
	// Example: "Jane%20Doe)"
	User string

	// Email is the account email, present on newer backends.
	Email string

	// Error is set instead of Token/User when the provider or backend rejected the login.
	// Example: "access_denied"
	Error string
}

// ParseCallbackParameters reads the callback query. Values are taken as given; decoding happens
// in SessionUser so that a double-encoded name is still handled.
func ParseCallbackParameters(query url.Values) CallbackParameters {
	return CallbackParameters{
		Token: query.Get("token"),
		User:  query.Get("user"),
		Email: query.Get("email"),
		Error: query.Get("error"),
	}
}

// HasSession reports whether both a token and a user were supplied.
func (p CallbackParameters) HasSession() bool {
	return p.Token != "" && p.User != ""
}

// FailureReason returns the error to report when the callback does not carry a session.
func (p CallbackParameters) FailureReason() string {
	if p.Error != "" {
		return p.Error
	}
	return GenericFailure
}

// SessionUser decodes and cleans the user and email parameters.
func (p CallbackParameters) SessionUser() users.User {
	return users.New(decode(p.Email), decode(p.User))
}

func decode(value string) string {
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}
