package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-underwriter/token"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	t.Run("opaque token", func(t *testing.T) {
		c := token.Inspect("access-1")
		require.True(t, c.Opaque)
		require.False(t, c.Expired(time.Now()))
	})

	t.Run("jwt claims are read without verification", func(t *testing.T) {
		exp := time.Now().Add(-time.Minute).Truncate(time.Second)
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
			Subject:   "alice@example.com",
			Issuer:    "underwriter-api",
			ExpiresAt: jwtlib.NewNumericDate(exp),
		}).SignedString([]byte("unknown-to-the-client"))
		require.NoError(t, err)

		c := token.Inspect(raw)
		require.False(t, c.Opaque)
		require.Equal(t, "alice@example.com", c.Subject)
		require.Equal(t, "underwriter-api", c.Issuer)
		require.NotNil(t, c.ExpiresAt)
		require.True(t, c.ExpiresAt.Equal(exp))
		require.True(t, c.Expired(time.Now()))
	})

	t.Run("garbage with dots is opaque", func(t *testing.T) {
		require.True(t, token.Inspect("a.b.c").Opaque)
	})
}
