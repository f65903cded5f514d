package tokenfake

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("tokenfake-secret")

// NewAccessToken returns a signed HS256 access token expiring at exp.
// Only the payload matters to the client, so the secret is irrelevant.
func NewAccessToken(username string, exp time.Time) string {
	claims := jwt.MapClaims{
		"token_type": "access",
		"exp":        exp.Unix(),
		"iat":        exp.Add(-5 * time.Minute).Unix(),
		"jti":        uuid.NewString(),
		"sub":        username,
		"username":   username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		panic(err)
	}
	return signed
}

// NewTokenWithoutExpiry returns a well formed token that has no exp claim
func NewTokenWithoutExpiry(username string) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": username}).SignedString(testSecret)
	if err != nil {
		panic(err)
	}
	return signed
}
