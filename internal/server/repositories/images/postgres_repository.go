package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/picvault/picvault/internal/common"
	"github.com/picvault/picvault/internal/dbx"
	"github.com/picvault/picvault/internal/server/models"
)

const imageColumns = `id, user_id, file_name, content_type, size_bytes, storage_key, visibility, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, image *models.Image) (*models.Image, error) {
	query := `
		INSERT INTO images (user_id, file_name, content_type, size_bytes, storage_key, visibility)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		image.UserID, image.FileName, image.ContentType, image.SizeBytes,
		image.StorageKey, image.Visibility).
		Scan(&image.ID, &image.CreatedAt, &image.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return image, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Image
	for rows.Next() {
		image := &models.Image{}
		if err := rows.Scan(&image.ID, &image.UserID, &image.FileName, &image.ContentType,
			&image.SizeBytes, &image.StorageKey, &image.Visibility,
			&image.CreatedAt, &image.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, image *models.Image) (*models.Image, error) {
	query := `
		UPDATE images SET file_name = $2, visibility = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + imageColumns
	return r.scanOne(r.db.QueryRowContext(ctx, query, image.ID, image.FileName, image.Visibility))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Image, error) {
	image := &models.Image{}
	err := row.Scan(&image.ID, &image.UserID, &image.FileName, &image.ContentType,
		&image.SizeBytes, &image.StorageKey, &image.Visibility,
		&image.CreatedAt, &image.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return image, nil
}
