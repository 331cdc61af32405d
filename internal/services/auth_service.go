package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/releasedesk/backend/pkg/crypto"
	jwtpkg "github.com/releasedesk/backend/pkg/jwt"
	"github.com/releasedesk/backend/pkg/validation"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid token")
)

// TokenBlacklist remembers revoked access tokens until they expire.
type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// RedisBlacklist stores revoked tokens as expiring redis keys.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:token:%s", token)
}

func (b *RedisBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	return b.client.Set(ctx, blacklistKey(token), 1, ttl).Err()
}

func (b *RedisBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKey(token)).Result()
	return n > 0, err
}

// TokenPair is what a successful login or registration returns.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

type AuthService struct {
	db        *gorm.DB
	blacklist TokenBlacklist
	cfg       *config.Config
	log       *logger.Logger
}

func NewAuthService(db *gorm.DB, blacklist TokenBlacklist, cfg *config.Config, log *logger.Logger) *AuthService {
	return &AuthService{
		db:        db,
		blacklist: blacklist,
		cfg:       cfg,
		log:       log,
	}
}

// Register creates a new artist account and logs it in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = validation.SanitizeString(name)
	if !validation.ValidateEmail(email) {
		return nil, invalid("email", "invalid email address")
	}
	if !validation.ValidatePassword(password) {
		return nil, invalid("password", "must be at least 8 characters with upper and lower case, a digit and one of @$!%*?&")
	}
	if name == "" {
		return nil, invalid("name", "is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &ConflictError{Message: "email already registered"}
	}

	hashedPassword, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    email,
		Password: hashedPassword,
		Name:     name,
		Role:     models.RoleArtist,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("User registered", "user_id", user.ID)
	return s.issueTokens(ctx, user)
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var user models.User
	email = strings.TrimSpace(strings.ToLower(email))
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if !crypto.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, &user)
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, err := jwtpkg.GenerateToken(user.ID.String(), user.Role, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwtpkg.GenerateToken(user.ID.String(), user.Role, jwtpkg.RefreshToken, s.cfg.JWTSecret, s.cfg.JWTRefreshTokenDuration)
	if err != nil {
		return nil, err
	}

	// Store refresh token in database
	refreshTokenModel := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshTokenDuration),
	}
	if err := s.db.WithContext(ctx).Create(refreshTokenModel).Error; err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}

// Refresh generates a new access token from a stored refresh token. The role is
// re-read so plan upgrades take effect without a new login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := jwtpkg.ValidateToken(refreshToken, s.cfg.JWTSecret)
	if err != nil || claims.TokenType != jwtpkg.RefreshToken {
		return "", ErrInvalidToken
	}

	var tokenModel models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token = ?", refreshToken).First(&tokenModel).Error; err != nil {
		return "", ErrInvalidToken
	}
	if time.Now().After(tokenModel.ExpiresAt) {
		return "", ErrInvalidToken
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", tokenModel.UserID).Error; err != nil {
		return "", ErrInvalidToken
	}
	if !user.IsActive {
		return "", ErrAccountDisabled
	}

	return jwtpkg.GenerateToken(user.ID.String(), user.Role, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
}

// Logout deletes the user's refresh tokens and blacklists the access token for the
// rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, accessToken string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		return err
	}
	if accessToken == "" || s.blacklist == nil {
		return nil
	}
	claims, err := jwtpkg.ValidateToken(accessToken, s.cfg.JWTSecret)
	if err != nil {
		return nil
	}
	if ttl := claims.RemainingLifetime(time.Now()); ttl > 0 {
		if err := s.blacklist.Add(ctx, accessToken, ttl); err != nil {
			s.log.Warn("Could not blacklist access token", "user_id", userID, "error", err)
		}
	}
	return nil
}

// ValidateAccessToken validates an access token and returns claims
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != jwtpkg.AccessToken {
		return nil, ErrInvalidToken
	}

	// If redis is down, we allow the request to proceed
	if s.blacklist != nil {
		revoked, err := s.blacklist.Contains(ctx, token)
		if err != nil {
			s.log.Warn("Could not check token blacklist", "error", err)
		} else if revoked {
			return nil, ErrInvalidToken
		}
	}

	// role and active flag come from the account, not the token
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "role", "is_active").First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	claims.Role = user.Role

	return claims, nil
}

// CleanupExpiredTokens removes expired refresh tokens
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{}).Error
}
