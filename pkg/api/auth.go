package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerExpiry reads the exp claim out of the bearer token without verifying
// the signature. The client never validates or renews tokens; this exists so
// the CLI can warn when a run is about to outlive its credential.
func BearerExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}

	return exp.Time, nil
}

// TokenExpiresWithin reports whether the token expires inside d. Unparseable
// tokens report false; opaque (non-JWT) bearer tokens are legal.
func TokenExpiresWithin(token string, d time.Duration) bool {
	exp, err := BearerExpiry(token)
	if err != nil {
		return false
	}
	return time.Until(exp) < d
}
