package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picvault/picvault/internal/common"
	"github.com/picvault/picvault/internal/cryptox"
	"github.com/picvault/picvault/internal/server/auth"
	"github.com/picvault/picvault/internal/server/config"
	"github.com/picvault/picvault/internal/server/models"
	"github.com/picvault/picvault/internal/server/twofactor"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeRepoManager, *cryptox.SecretCipher) {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	cipher, err := cryptox.NewSecretCipher(cfg.CipherPassword, cfg.CipherSalt)
	require.NoError(t, err)

	m := newFakeRepoManager()
	tokens := auth.NewTokenService(cfg.SecretKey, cfg.AccessTokenValidityDuration)
	svc := NewAuthService(newTestDB(t), m, tokens, cipher, cfg, testLogger())
	return svc, m, cipher
}

func addAccount(t *testing.T, m *fakeRepoManager, email, password string) *models.User {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	return m.users.mustAddUser(t, &models.User{
		Name:         "Tester",
		Email:        email,
		PasswordHash: hash,
		Role:         "user",
	})
}

func TestAuthServiceLogin(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	result, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	assert.False(t, result.MfaRequired)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, 1, m.tokens.countForUser(user.ID))

	email, err := svc.tokens.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	addAccount(t, m, "alice@example.com", "correct horse")

	_, errWrongPassword := svc.Login(ctx, "alice@example.com", "battery staple")
	_, errUnknownUser := svc.Login(ctx, "nobody@example.com", "battery staple")

	// A wrong password and an unknown account must be indistinguishable.
	assert.ErrorIs(t, errWrongPassword, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownUser, common.ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword, errUnknownUser)
}

func TestAuthServiceLoginHaltsOnTwoFactor(t *testing.T) {
	ctx := context.Background()
	svc, m, cipher := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	encrypted, err := cipher.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	require.NoError(t, m.users.SetTwoFactor(ctx, user.Email, encrypted, true))

	result, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	assert.True(t, result.MfaRequired)
	assert.Empty(t, result.AccessToken)
	assert.Empty(t, result.RefreshToken)
	assert.Equal(t, 0, m.tokens.countForUser(user.ID))
}

func TestAuthServiceLoginRotatesRefreshToken(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	first, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, m.tokens.countForUser(user.ID))

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenNotFound)

	access, err := svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestAuthServiceConcurrentLogins(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	results := make([]*LoginResult, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Login(ctx, "alice@example.com", "correct horse")
		}(i)
	}
	wg.Wait()

	// Each login succeeds on its own.
	for i := range results {
		require.NoError(t, errs[i])
		require.NotEmpty(t, results[i].AccessToken)
		require.NotEmpty(t, results[i].RefreshToken)
	}
	require.NotEqual(t, results[0].RefreshToken, results[1].RefreshToken)

	// Rotation is last-writer-wins: one live row remains, so only one of
	// the two issued refresh tokens is still consumable.
	assert.Equal(t, 1, m.tokens.countForUser(user.ID))

	usable := 0
	for _, r := range results {
		if _, err := svc.Refresh(ctx, r.RefreshToken); err == nil {
			usable++
		}
	}
	assert.Equal(t, 1, usable)
}

func TestAuthServiceRefreshDoesNotRotate(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	result, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)

	// The same refresh token stays usable across multiple exchanges.
	for i := 0; i < 3; i++ {
		access, err := svc.Refresh(ctx, result.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, access)
	}
	assert.Equal(t, 1, m.tokens.countForUser(user.ID))
}

func TestAuthServiceRefreshUnknownToken(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Refresh(ctx, "does-not-exist")
	assert.ErrorIs(t, err, common.ErrRefreshTokenNotFound)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	require.NoError(t, m.tokens.Create(ctx, user.ID, "stale-token", -time.Minute))

	_, err := svc.Refresh(ctx, "stale-token")
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)

	// The first failed use deletes the row, so a retry sees absence.
	_, err = svc.Refresh(ctx, "stale-token")
	assert.ErrorIs(t, err, common.ErrRefreshTokenNotFound)
}

func TestAuthServiceVerifyTwoFactorLogin(t *testing.T) {
	ctx := context.Background()
	svc, m, cipher := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	seed, err := twofactor.GenerateSeed()
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt(seed)
	require.NoError(t, err)
	require.NoError(t, m.users.SetTwoFactor(ctx, user.Email, encrypted, true))

	result, err := svc.VerifyTwoFactorLogin(ctx, user.Email, twofactor.CodeAt(seed, time.Now()))
	require.NoError(t, err)

	assert.False(t, result.MfaRequired)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, 1, m.tokens.countForUser(user.ID))
}

func TestAuthServiceVerifyTwoFactorLoginBadCode(t *testing.T) {
	ctx := context.Background()
	svc, m, cipher := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	seed, err := twofactor.GenerateSeed()
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt(seed)
	require.NoError(t, err)
	require.NoError(t, m.users.SetTwoFactor(ctx, user.Email, encrypted, true))

	_, err = svc.VerifyTwoFactorLogin(ctx, user.Email, "000000")
	assert.ErrorIs(t, err, common.ErrMfaCodeInvalid)
	assert.Equal(t, 0, m.tokens.countForUser(user.ID))
}

func TestAuthServiceVerifyTwoFactorLoginCorruptSeed(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	// Ciphertext that was never produced by the cipher.
	require.NoError(t, m.users.SetTwoFactor(ctx, user.Email, "bm90LWEtY2lwaGVydGV4dA==", true))

	_, err := svc.VerifyTwoFactorLogin(ctx, user.Email, "123456")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestAuthServiceVerifyTwoFactorLoginMissingSeed(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	m.users.mustAddUser(t, &models.User{
		Email:            "alice@example.com",
		TwoFactorEnabled: true,
	})

	_, err := svc.VerifyTwoFactorLogin(ctx, "alice@example.com", "123456")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestAuthServiceVerifyTwoFactorLoginUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuthService(t)

	_, err := svc.VerifyTwoFactorLogin(ctx, "nobody@example.com", "123456")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAuthServiceSetupTwoFactor(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	setup, err := svc.SetupTwoFactor("alice@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, setup.Seed)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, setup.ProvisioningURI, "secret="+setup.Seed)
	assert.Contains(t, setup.ProvisioningURI, "issuer=PicVault")

	// A valid code for the fresh seed must verify.
	assert.True(t, twofactor.IsCodeValid(setup.Seed, twofactor.CodeAt(setup.Seed, time.Now())))
}

func TestAuthServiceVerifyAndEnableTwoFactor(t *testing.T) {
	ctx := context.Background()
	svc, m, cipher := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	seed, err := twofactor.GenerateSeed()
	require.NoError(t, err)

	err = svc.VerifyAndEnableTwoFactor(ctx, user.Email, seed, twofactor.CodeAt(seed, time.Now()))
	require.NoError(t, err)

	stored, err := m.users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.True(t, stored.TwoFactorEnabled)
	require.NotNil(t, stored.TwoFactorSecret)

	decrypted, err := cipher.Decrypt(*stored.TwoFactorSecret)
	require.NoError(t, err)
	assert.Equal(t, seed, decrypted)
}

func TestAuthServiceVerifyAndEnableTwoFactorBadCode(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	seed, err := twofactor.GenerateSeed()
	require.NoError(t, err)

	err = svc.VerifyAndEnableTwoFactor(ctx, user.Email, seed, "000000")
	assert.ErrorIs(t, err, common.ErrMfaCodeInvalid)

	stored, err := m.users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Nil(t, stored.TwoFactorSecret)
}

func TestAuthServiceEnableTwoFactorUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuthService(t)

	err := svc.EnableTwoFactor(ctx, "nobody@example.com", "JBSWY3DPEHPK3PXP")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAuthServiceRevokeRefreshTokens(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestAuthService(t)
	user := addAccount(t, m, "alice@example.com", "correct horse")

	_, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, 1, m.tokens.countForUser(user.ID))

	require.NoError(t, svc.RevokeRefreshTokens(ctx, user.ID))
	assert.Equal(t, 0, m.tokens.countForUser(user.ID))
}
