// Package users declares the server-side repository contract for principals.
package users

import (
	"context"

	"github.com/picvault/picvault/internal/server/models"
)

// Repository defines persistence operations for users. Implementations
// return common.ErrorNotFound for absent rows and common.ErrEmailTaken for
// duplicate emails on Create.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateName(ctx context.Context, id, name string) (*models.User, error)
	Delete(ctx context.Context, id string) error

	// SetTwoFactor stores the encrypted seed and flips the enabled flag for
	// the user with the given email.
	SetTwoFactor(ctx context.Context, email string, encryptedSecret string, enabled bool) error
}
