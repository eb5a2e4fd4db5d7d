package services

// In-memory repository fakes shared by the service tests. The fakes ignore
// the DBTX handle they are vended with, so transactional code paths run
// against a real *sql.DB (in-memory sqlite) while storage stays in maps.

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/picvault/picvault/internal/common"
	"github.com/picvault/picvault/internal/dbx"
	"github.com/picvault/picvault/internal/logging"
	"github.com/picvault/picvault/internal/server/models"
	"github.com/picvault/picvault/internal/server/repositories/images"
	"github.com/picvault/picvault/internal/server/repositories/refreshtokens"
	"github.com/picvault/picvault/internal/server/repositories/users"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:services_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	// sqlite allows a single writer; one pooled connection keeps concurrent
	// transactions serialized instead of failing with a busy error.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

type fakeUsersRepo struct {
	mu   sync.Mutex
	rows map[string]*models.User

	failWith error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{rows: make(map[string]*models.User)}
}

func (r *fakeUsersRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.rows {
		if u.Email == user.Email {
			return nil, common.ErrEmailTaken
		}
	}
	saved := *user
	saved.ID = uuid.NewString()
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	r.rows[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (r *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.rows {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.rows[id]; ok {
		out := *u
		return &out, nil
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsersRepo) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.User, 0, len(r.rows))
	for _, u := range r.rows {
		out := *u
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeUsersRepo) UpdateName(_ context.Context, id, name string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Name = name
	u.UpdatedAt = time.Now()
	out := *u
	return &out, nil
}

func (r *fakeUsersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeUsersRepo) SetTwoFactor(_ context.Context, email, encryptedSecret string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == email {
			secret := encryptedSecret
			u.TwoFactorSecret = &secret
			u.TwoFactorEnabled = enabled
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return common.ErrorNotFound
}

// mustAddUser inserts a user directly, bypassing Create, so tests can
// control every field including the two-factor state.
func (r *fakeUsersRepo) mustAddUser(t *testing.T, u *models.User) *models.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *u
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	r.rows[saved.ID] = &saved
	out := saved
	return &out
}

type fakeRefreshTokensRepo struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken

	failWith error
}

func newFakeRefreshTokensRepo() *fakeRefreshTokensRepo {
	return &fakeRefreshTokensRepo{rows: make(map[string]*models.RefreshToken)}
}

func (r *fakeRefreshTokensRepo) Create(_ context.Context, userID, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.rows[token] = &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		Expires:   time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *fakeRefreshTokensRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	row, ok := r.rows[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *row
	return &out, nil
}

func (r *fakeRefreshTokensRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, token)
	return nil
}

func (r *fakeRefreshTokensRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for token, row := range r.rows {
		if row.UserID == userID {
			delete(r.rows, token)
		}
	}
	return nil
}

func (r *fakeRefreshTokensRepo) countForUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n
}

type fakeImagesRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Image
}

func newFakeImagesRepo() *fakeImagesRepo {
	return &fakeImagesRepo{rows: make(map[string]*models.Image)}
}

func (r *fakeImagesRepo) Create(_ context.Context, image *models.Image) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *image
	saved.ID = uuid.NewString()
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	r.rows[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (r *fakeImagesRepo) GetByID(_ context.Context, id string) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		out := *row
		return &out, nil
	}
	return nil, common.ErrorNotFound
}

func (r *fakeImagesRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.Image, 0)
	for _, row := range r.rows {
		if row.UserID == userID {
			out := *row
			all = append(all, &out)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeImagesRepo) Update(_ context.Context, image *models.Image) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[image.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	saved := *image
	saved.UpdatedAt = time.Now()
	r.rows[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (r *fakeImagesRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

type fakeRepoManager struct {
	users  *fakeUsersRepo
	tokens *fakeRefreshTokensRepo
	images *fakeImagesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:  newFakeUsersRepo(),
		tokens: newFakeRefreshTokensRepo(),
		images: newFakeImagesRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.tokens }

func (m *fakeRepoManager) Images(dbx.DBTX) images.Repository { return m.images }
