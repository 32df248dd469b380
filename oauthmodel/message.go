package oauthmodel

import "github.com/jrsteele09/go-underwriter/users"

// MessageType discriminates the messages a popup relays back to the window that opened it.
type MessageType string

const (
	// MessageSuccess carries the session established by the OAuth round trip.
	// Example: {"type":"OAUTH_SUCCESS","token":"eyJ...","user":{"id":"user-id","email":"a@b.c","userName":"ann"}}
	MessageSuccess MessageType = "OAUTH_SUCCESS"

	// MessageError carries the reason the round trip failed.
	// Example: {"type":"OAUTH_ERROR","error":"access_denied"}
	MessageError MessageType = "OAUTH_ERROR"
)

// Message is the payload exchanged between the callback receiver and the flow that opened the popup.
type Message struct {
	// Type selects which of the remaining fields are meaningful.
	Type MessageType `json:"type"`

	// Token is the bearer credential issued by the backend.
	// Only present: OAUTH_SUCCESS
	Token string `json:"token,omitempty"`

	// User is the cleaned identity built from the callback parameters.
	// Only present: OAUTH_SUCCESS
	User *users.User `json:"user,omitempty"`

	// Error is the provider or backend error code, or a generic description.
	// Only present: OAUTH_ERROR
	Error string `json:"error,omitempty"`
}

func SuccessMessage(token string, user users.User) Message {
	return Message{Type: MessageSuccess, Token: token, User: &user}
}

func ErrorMessage(reason string) Message {
	return Message{Type: MessageError, Error: reason}
}

// Envelope is a message together with the origin of the window that posted it.
// Receivers must compare Origin with their own before acting on the message.
type Envelope struct {
	Origin  string
	Message Message
}
