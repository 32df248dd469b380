package users

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"
)

// SchemaVersion identifies the shape of a persisted user value.
type SchemaVersion int

const (
	// VersionLegacyString is a bare, URL-encoded user name (optionally JSON quoted).
	VersionLegacyString SchemaVersion = iota
	// VersionObject is an unversioned {"id","email","userName"} object that may still carry stray characters.
	VersionObject
	// VersionCurrent is the Record envelope written by Encode.
	VersionCurrent
)

// Record is the persisted envelope.
type Record struct {
	Version SchemaVersion `json:"version"`
	User    User          `json:"user"`
}

// Encode produces the current persisted form of u.
func Encode(u User) (string, error) {
	data, err := json.Marshal(Record{Version: VersionCurrent, User: u})
	if err != nil {
		return "", fmt.Errorf("[users Encode] %w", err)
	}
	return string(data), nil
}

// Detect reports which schema version raw was written with.
func Detect(raw string) SchemaVersion {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return VersionLegacyString
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return VersionLegacyString
	}
	if _, ok := fields["version"]; ok {
		if _, ok := fields["user"]; ok {
			return VersionCurrent
		}
	}
	return VersionObject
}

// Migrate brings a persisted user value of any historic shape to the current schema. changed is
// false when raw was already the current, cleaned encoding, so running Migrate on its own output
// is a no-op.
func Migrate(raw string) (user User, changed bool, err error) {
	switch Detect(raw) {
	case VersionCurrent:
		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return User{}, false, fmt.Errorf("[users Migrate] current record: %w", err)
		}
		user = record.User.Clean()
	case VersionObject:
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return User{}, false, fmt.Errorf("[users Migrate] object: %w", err)
		}
		user = user.Clean()
	default:
		user = fromLegacyString(raw)
	}

	encoded, err := Encode(user)
	if err != nil {
		return User{}, false, err
	}
	return user, encoded != raw, nil
}

func fromLegacyString(raw string) User {
	name := raw
	var quoted string
	if err := json.Unmarshal([]byte(raw), &quoted); err == nil {
		name = quoted
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return User{
		ID:       PlaceholderID,
		Email:    "",
		UserName: CleanField(name),
	}
}
