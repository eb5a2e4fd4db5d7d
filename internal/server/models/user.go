// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the identity anchor of the system. Equality is by ID only;
// PasswordHash and TwoFactorSecret never leave the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string

	// TwoFactorEnabled gates the login flow. TwoFactorSecret holds the
	// TOTP seed encrypted by the secret cipher; it is nil until two-factor
	// authentication has been activated.
	TwoFactorEnabled bool
	TwoFactorSecret  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
