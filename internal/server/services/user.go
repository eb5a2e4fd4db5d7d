package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/picvault/picvault/internal/common"
	"github.com/picvault/picvault/internal/cryptox"
	"github.com/picvault/picvault/internal/dbx"
	"github.com/picvault/picvault/internal/logging"
	"github.com/picvault/picvault/internal/server/models"
	"github.com/picvault/picvault/internal/server/repositories/repomanager"
)

const defaultRole = "user"

// UserService handles account management: registration, lookup, update,
// and deletion.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "user_service"),
	}
}

// Register creates a new account with a bcrypt-hashed password and the
// default role. A duplicate email yields ErrEmailTaken.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         defaultRole,
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, common.ErrEmailTaken
		}
		s.logger.Error(ctx, "user creation failed", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

// GetByEmail returns the account owning the given email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, email)
}

// GetByID returns the account with the given identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// List returns up to limit accounts starting at offset, ordered by creation
// time.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, limit, offset)
}

// UpdateName renames an account.
func (s *UserService) UpdateName(ctx context.Context, id, name string) (*models.User, error) {
	return s.repomanager.Users(s.db).UpdateName(ctx, id, name)
}

// Delete removes an account and its live refresh token in one transaction.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, id); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, id)
	})
}
