// Package images declares the repository contract for picture metadata.
package images

import (
	"context"

	"github.com/picvault/picvault/internal/server/models"
)

// Repository defines persistence operations for image metadata. The binary
// content lives in object storage; only metadata rows are managed here.
type Repository interface {
	Create(ctx context.Context, image *models.Image) (*models.Image, error)
	GetByID(ctx context.Context, id string) (*models.Image, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Image, error)
	Update(ctx context.Context, image *models.Image) (*models.Image, error)
	Delete(ctx context.Context, id string) error
}
