package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-underwriter/internal/utils"
)

// Claims is what can be read from a bearer token without its signing key. The backend may issue
// opaque tokens, in which case only Opaque is set.
type Claims struct {
	Opaque    bool
	Subject   string
	Issuer    string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
}

// Inspect reads the registered claims of a JWT without verifying it. It is for display only.
func Inspect(raw string) Claims {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return Claims{Opaque: true}
	}
	var registered jwtlib.RegisteredClaims
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, &registered); err != nil {
		return Claims{Opaque: true}
	}

	claims := Claims{Subject: registered.Subject, Issuer: registered.Issuer}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = utils.Ptr(registered.ExpiresAt.Time)
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = utils.Ptr(registered.IssuedAt.Time)
	}
	return claims
}

// Expired reports whether the token carries an expiry that is before now. Opaque tokens are never
// reported as expired; only the backend can tell.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
