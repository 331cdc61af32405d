package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/releasedesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]time.Duration
}

func (b *memoryBlacklist) Add(_ context.Context, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens == nil {
		b.tokens = map[string]time.Duration{}
	}
	b.tokens[token] = ttl
	return nil
}

func (b *memoryBlacklist) Contains(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tokens[token]
	return ok, nil
}

func newAuthService(t *testing.T) (*AuthService, *memoryBlacklist) {
	cfg := testConfig()
	cfg.BcryptCost = 4
	bl := &memoryBlacklist{}
	return NewAuthService(newTestDB(t), bl, cfg, nopLog), bl
}

func TestAuthService_RegisterLoginRefreshLogout(t *testing.T) {
	svc, bl := newAuthService(t)

	pair, err := svc.Register(bg, "Artist@Example.com", "Secur3!pass", "Nova")
	require.NoError(t, err)
	assert.Equal(t, "artist@example.com", pair.User.Email)
	assert.Equal(t, models.RoleArtist, pair.User.Role)

	_, err = svc.Register(bg, "artist@example.com", "Secur3!pass", "Nova")
	assert.True(t, IsConflict(err))

	_, err = svc.Login(bg, "artist@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err = svc.Login(bg, "artist@example.com", "Secur3!pass")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(bg, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.User.ID.String(), claims.UserID)

	_, err = svc.ValidateAccessToken(bg, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := svc.Refresh(bg, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	require.NoError(t, svc.Logout(bg, pair.User.ID, pair.AccessToken))
	assert.Len(t, bl.tokens, 1)

	_, err = svc.ValidateAccessToken(bg, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Refresh(bg, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Register(bg, "nope", "Secur3!pass", "Nova")
	assert.True(t, IsValidation(err))

	_, err = svc.Register(bg, "a@b.com", "weak", "Nova")
	assert.True(t, IsValidation(err))

	_, err = svc.Register(bg, "a@b.com", "Secur3!pass", "  ")
	assert.True(t, IsValidation(err))
}

func TestAuthService_AccessTokenFollowsAccount(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.BcryptCost = 4
	svc := NewAuthService(db, nil, cfg, nopLog)

	pair, err := svc.Register(bg, "nova@example.com", "Secur3!pass", "Nova")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", pair.User.ID).Update("role", models.RolePro).Error)
	claims, err := svc.ValidateAccessToken(bg, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RolePro, claims.Role)

	require.NoError(t, NewUserService(db).SetActive(bg, pair.User.ID, false))
	_, err = svc.ValidateAccessToken(bg, pair.AccessToken)
	assert.ErrorIs(t, err, ErrAccountDisabled)
	_, err = svc.Refresh(bg, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	var tokens int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", pair.User.ID).Count(&tokens).Error)
	assert.Zero(t, tokens)

	require.NoError(t, NewUserService(db).SetActive(bg, pair.User.ID, true))
	_, err = svc.ValidateAccessToken(bg, pair.AccessToken)
	assert.NoError(t, err)
}
