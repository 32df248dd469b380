package users

import (
	"regexp"
	"strings"
)

// PlaceholderID is the identifier given to users built from a login or OAuth response. The
// backend does not return a stable id there, so it must not be used as an identity key.
const PlaceholderID = "user-id"

// User is the identity shown for the signed-in session.
type User struct {
	ID       string `json:"id"`       // Always PlaceholderID unless a caller sets one explicitly
	Email    string `json:"email"`    // Client-supplied on login; empty for migrated legacy records
	UserName string `json:"userName"` // Display name returned by the backend
}

// strayTrailing matches the ")" and "}" characters (and whitespace) that an old encoding bug
// appended to stored names and emails.
var strayTrailing = regexp.MustCompile(`[)}\s]+$`)

// CleanField removes the stray trailing characters and surrounding whitespace.
func CleanField(value string) string {
	return strings.TrimSpace(strayTrailing.ReplaceAllString(value, ""))
}

// New builds a user with the placeholder id and cleaned fields.
func New(email, userName string) User {
	return User{
		ID:       PlaceholderID,
		Email:    CleanField(email),
		UserName: CleanField(userName),
	}
}

// Clean returns a copy with both display fields cleaned.
func (u User) Clean() User {
	u.Email = CleanField(u.Email)
	u.UserName = CleanField(u.UserName)
	return u
}

// DisplayName prefers the user name and falls back to the email.
func (u User) DisplayName() string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.Email
}
