// Package services contains server-side business logic. This file implements
// AuthService, which coordinates credential verification, the two-factor
// login flow, and the access/refresh token lifecycle.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/picvault/picvault/internal/common"
	"github.com/picvault/picvault/internal/cryptox"
	"github.com/picvault/picvault/internal/dbx"
	"github.com/picvault/picvault/internal/logging"
	"github.com/picvault/picvault/internal/server/auth"
	"github.com/picvault/picvault/internal/server/config"
	"github.com/picvault/picvault/internal/server/models"
	"github.com/picvault/picvault/internal/server/repositories/repomanager"
	"github.com/picvault/picvault/internal/server/twofactor"
)

// LoginResult is the outcome of a successful login or 2FA completion.
// When MfaRequired is set, no tokens of any kind have been issued and the
// caller must complete the flow with a TOTP code.
type LoginResult struct {
	MfaRequired  bool
	AccessToken  string
	RefreshToken string
}

// TwoFactorSetup carries the enrollment material returned by SetupTwoFactor.
// The seed is not persisted until the user proves possession via
// VerifyAndEnableTwoFactor.
type TwoFactorSetup struct {
	Seed            string
	ProvisioningURI string
}

// AuthService provides authentication-related operations:
//   - Login / VerifyTwoFactorLogin: verify factors and mint tokens
//   - Refresh: mint new access tokens from a stored refresh token
//   - SetupTwoFactor / VerifyAndEnableTwoFactor: TOTP enrollment
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	tokens                       *auth.TokenService
	cipher                       *cryptox.SecretCipher
	refreshTokenValidityDuration time.Duration
	totpIssuer                   string
	logger                       logging.Logger
}

// NewAuthService constructs an AuthService using repositories, the token
// service, the secret cipher, and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService,
	cipher *cryptox.SecretCipher, cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		tokens:                       tokens,
		cipher:                       cipher,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		totpIssuer:                   cfg.TOTPIssuer,
		logger:                       logger.With("module", "auth_service"),
	}
}

// Login verifies the email/password pair. A missing account and a wrong
// password both collapse to ErrInvalidCredentials so that callers cannot
// enumerate users. If the account has two-factor authentication enabled,
// the result carries MfaRequired and no tokens are issued.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		return &LoginResult{MfaRequired: true}, nil
	}

	return s.issueSession(ctx, user)
}

// VerifyTwoFactorLogin completes a login halted on MfaRequired. A decryption
// fault on the stored seed indicates corrupted server state and is surfaced
// as a generic internal error, never as an invalid code.
func (s *AuthService) VerifyTwoFactorLogin(ctx context.Context, email, code string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		s.logger.Error(ctx, "2fa login attempted without an activated seed", "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	seed, err := s.cipher.Decrypt(*user.TwoFactorSecret)
	if err != nil {
		s.logger.Error(ctx, "stored 2fa seed failed to decrypt", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	if !twofactor.IsCodeValid(seed, code) {
		return nil, common.ErrMfaCodeInvalid
	}

	return s.issueSession(ctx, user)
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is left unchanged; an expired token is deleted on first failed
// use, so a retry yields ErrRefreshTokenNotFound.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrRefreshTokenNotFound
		}
		s.logger.Error(ctx, "refresh token lookup failed", "error", err)
		return "", common.ErrorInternal
	}

	if token.Expires.Before(time.Now()) {
		if err := repo.Delete(ctx, refreshToken); err != nil {
			s.logger.Error(ctx, "stale refresh token cleanup failed", "error", err)
		}
		return "", common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		s.logger.Error(ctx, "refresh token owner lookup failed", "user_id", token.UserID, "error", err)
		return "", common.ErrorInternal
	}

	access, err := s.tokens.Mint(user.Email)
	if err != nil {
		s.logger.Error(ctx, "access token mint failed", "error", err)
		return "", common.ErrorInternal
	}
	return access, nil
}

// SetupTwoFactor generates a fresh seed and provisioning URI for the
// authenticated principal. Nothing is persisted until the follow-up
// verification succeeds.
func (s *AuthService) SetupTwoFactor(email string) (*TwoFactorSetup, error) {
	seed, err := twofactor.GenerateSeed()
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TwoFactorSetup{
		Seed:            seed,
		ProvisioningURI: twofactor.ProvisioningURI(s.totpIssuer, email, seed),
	}, nil
}

// VerifyAndEnableTwoFactor checks that the submitted code matches the seed
// from setup and, on success, activates two-factor authentication for the
// principal.
func (s *AuthService) VerifyAndEnableTwoFactor(ctx context.Context, email, seed, code string) error {
	if !twofactor.IsCodeValid(seed, code) {
		return common.ErrMfaCodeInvalid
	}
	return s.EnableTwoFactor(ctx, email, seed)
}

// EnableTwoFactor encrypts the seed and stores the ciphertext on the
// principal, flipping the enabled flag. The caller is trusted to have
// already validated a code against the seed.
func (s *AuthService) EnableTwoFactor(ctx context.Context, email, seed string) error {
	encrypted, err := s.cipher.Encrypt(seed)
	if err != nil {
		s.logger.Error(ctx, "2fa seed encryption failed", "error", err)
		return common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.SetTwoFactor(ctx, email, encrypted, true); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "2fa activation failed", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// RevokeRefreshTokens deletes the principal's live refresh token, if any.
// Used by destructive account operations.
func (s *AuthService) RevokeRefreshTokens(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, userID); err != nil {
		s.logger.Error(ctx, "refresh token revocation failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}
	return nil
}

// issueSession mints an access token and rotates the refresh token inside a
// transaction: the previous row is deleted and a new one inserted. Two
// concurrent logins for the same principal both succeed; the last writer's
// token is the one left live.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	access, err := s.tokens.Mint(user.Email)
	if err != nil {
		s.logger.Error(ctx, "access token mint failed", "error", err)
		return nil, common.ErrorInternal
	}

	refresh, err := s.tokens.MintRefreshOpaque()
	if err != nil {
		s.logger.Error(ctx, "refresh token mint failed", "error", err)
		return nil, common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return repoTx.Create(ctx, user.ID, refresh, s.refreshTokenValidityDuration)
	})
	if err != nil {
		s.logger.Error(ctx, "refresh token rotation failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return &LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}
