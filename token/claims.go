package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
)

// ErrTokenDecode is returned for tokens whose claims cannot be read locally.
// Callers treat it exactly like an expired token.
var ErrTokenDecode = apperrors.ErrTokenDecode

// Claims are the parts of an access token the client reads without verifying the signature.
// Verification is the backend's job; the client only needs to know when to refresh.
type Claims struct {
	ExpiresAt time.Time
	Subject   string
	Username  string
}

// Decode parses the token payload without verifying its signature
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenDecode)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrTokenDecode)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: token has no exp claim", ErrTokenDecode)
	}

	sub, _ := claims.GetSubject()
	username, _ := claims["username"].(string)

	return &Claims{
		ExpiresAt: exp.Time,
		Subject:   sub,
		Username:  username,
	}, nil
}

// DecodeExpiry returns the token's exp claim
func DecodeExpiry(rawToken string) (time.Time, error) {
	claims, err := Decode(rawToken)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt, nil
}

// IsFresh reports whether the token is still usable at now with skew to spare.
// Undecodable tokens are never fresh.
func IsFresh(rawToken string, now time.Time, skew time.Duration) bool {
	exp, err := DecodeExpiry(rawToken)
	if err != nil {
		return false
	}
	return exp.Unix() > now.Add(skew).Unix()
}
