// Package tokenstore is the durable key-value layer behind the session: the bearer token, the
// refresh token and the persisted user record, plus any draft keys a caller chooses to keep.
// Values are opaque strings; nothing here validates them.
package tokenstore

import "github.com/rs/zerolog/log"

// Session keys
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// SessionKeys are removed together on logout.
var SessionKeys = []string{KeyToken, KeyRefreshToken, KeyUser}

// Store is synchronous; each call is atomic on its own but there is no cross-call transaction.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// RemoveAll removes every key, continuing past failures and returning the first error.
func RemoveAll(store Store, keys ...string) error {
	var firstErr error
	for _, key := range keys {
		if err := store.Remove(key); err != nil {
			log.Err(err).Str("key", key).Msg("tokenstore: remove failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
