package models

import "time"

// RefreshToken is a rotating server-held credential. At most one live row
// exists per user; rotation replaces the previous row rather than updating it.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
