package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/pkg/validation"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err, "user", userID.String())
	}
	return &user, nil
}

// UpdateName changes the display name of a user
func (s *UserService) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*models.User, error) {
	name = validation.SanitizeString(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("name", name)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, notFound("user", userID.String())
	}
	return s.GetUserByID(ctx, userID)
}

// GetAllUsers retrieves all users with pagination
func (s *UserService) GetAllUsers(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.WithContext(ctx).Offset(offset).Limit(limit).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// SetActive enables or disables an account. Disabling also drops the account's refresh
// tokens; its access tokens stop working on the next request.
func (s *UserService) SetActive(ctx context.Context, userID uuid.UUID, isActive bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", userID).Update("is_active", isActive)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return notFound("user", userID.String())
		}
		if isActive {
			return nil
		}
		return tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
	})
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
