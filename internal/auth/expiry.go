package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiredLocally reports whether token is a JWT whose exp claim has passed.
// The signature is not checked; the backend owns the key. Opaque tokens are
// never considered expired here.
func expiredLocally(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(now)
}
