// Package tokens issues HS256 access tokens for authenticated users.
package tokens

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type Service struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

type AccessClaims struct {
	jwt.RegisteredClaims
}

func (s Service) NewAccessToken(userID string, now time.Time) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("missing jwt secret")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(s.AccessTokenTTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
