// Package auth implements the token service: stateless signed access tokens
// and opaque refresh-token strings.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/picvault/picvault/internal/common"
)

const refreshTokenBytes = 32

// TokenService mints and verifies access tokens (HS256 JWTs carrying the
// user's email as subject) and mints opaque refresh-token strings. The
// signing secret is fixed at construction and never mutated afterwards.
type TokenService struct {
	secretKey      []byte
	accessValidity time.Duration
}

func NewTokenService(secretKey string, accessValidity time.Duration) *TokenService {
	return &TokenService{
		secretKey:      []byte(secretKey),
		accessValidity: accessValidity,
	}
}

// Mint produces a signed access token for the given subject email with
// issued-at = now and expiry = now + access lifetime.
func (s *TokenService) Mint(email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessValidity)),
	})

	return token.SignedString(s.secretKey)
}

// MintRefreshOpaque produces a random opaque string used only as a
// refresh-token bearer value. It carries no claims: the server looks it up,
// never decodes it.
func (s *TokenService) MintRefreshOpaque() (string, error) {
	return common.MakeRandHexString(refreshTokenBytes)
}

// Verify checks signature and expiry of an access token and returns the
// subject email. It fails closed: any structural or cryptographic anomaly
// yields common.ErrInvalidToken (common.ErrTokenExpired for tokens past
// their expiry), never a raw library error.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
