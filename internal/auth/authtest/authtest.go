// Package authtest signs session tokens the way the campus identity service does,
// for use in tests.
package authtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sign returns an HS256 session token for the given user that expires after ttl.
// A negative ttl yields an already expired token.
func Sign(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}
	return signed, nil
}

// Token is Sign for tests, failing t on error.
func Token(t testing.TB, secret, userID, email, role string, ttl time.Duration) string {
	t.Helper()
	token, err := Sign(secret, userID, email, role, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return token
}
