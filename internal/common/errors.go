// Package common defines shared constants and sentinel errors used across
// the picvault server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Credential-adjacent errors. Messages are deliberately generic: they
	// must not reveal whether the account, the password, or the code was
	// the wrong factor.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMfaCodeInvalid     = errors.New("invalid verification code")

	// Registration errors.
	ErrEmailTaken = errors.New("email already registered")

	// Access-token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Refresh-token lifecycle errors.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	// Cipher errors. Never surfaced verbatim to remote callers.
	ErrDecryptionFailed = errors.New("decryption failed")
)
