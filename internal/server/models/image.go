package models

import "time"

// Image visibility labels.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Image describes server-side metadata for a stored picture. The binary
// content itself lives in object storage under StorageKey.
type Image struct {
	ID          string
	UserID      string
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	Visibility  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
