package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type SubscriptionService struct {
	db      *gorm.DB
	gateway PaymentGateway
	log     *logger.Logger
	now     func() time.Time
}

func NewSubscriptionService(db *gorm.DB, gateway PaymentGateway, log *logger.Logger) *SubscriptionService {
	return &SubscriptionService{db: db, gateway: gateway, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// PlanExpiry returns when a plan bought at t runs out. Months are calendar months.
func PlanExpiry(plan string, t time.Time) (time.Time, error) {
	switch plan {
	case models.PlanMonthly:
		return t.AddDate(0, 1, 0), nil
	case models.PlanEightMonth:
		return t.AddDate(0, 8, 0), nil
	case models.PlanYearly:
		return t.AddDate(1, 0, 0), nil
	}
	return time.Time{}, invalid("plan", fmt.Sprintf("unknown plan %q", plan))
}

// Verify looks the reference up at the payment gateway and, for a successful payment,
// records it and extends the user's plan. Verifying the same reference again returns
// the stored payment without calling the gateway.
func (s *SubscriptionService) Verify(ctx context.Context, userID uuid.UUID, reference string) (*models.SubscriptionPayment, error) {
	if reference == "" {
		return nil, invalid("reference", "reference is required")
	}

	existing, err := s.payment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UserID != userID {
			return nil, &ConflictError{Message: "payment reference belongs to another account"}
		}
		return existing, nil
	}

	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		s.log.Warn("Payment verification failed", "provider", s.gateway.Name(), "reference", reference, "error", err)
		return nil, err
	}
	if tx.Status != TransactionSuccess {
		return nil, invalid("reference", fmt.Sprintf("payment is %s", tx.Status))
	}
	if owner := tx.Metadata["user_id"]; owner != "" && owner != userID.String() {
		return nil, invalid("reference", "payment was made for another account")
	}

	plan := tx.Metadata["plan"]
	verifiedAt := s.now()
	expiresAt, err := PlanExpiry(plan, verifiedAt)
	if err != nil {
		return nil, err
	}

	payment := &models.SubscriptionPayment{
		UserID:     userID,
		Reference:  reference,
		Plan:       plan,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Status:     string(tx.Status),
		VerifiedAt: verifiedAt,
		ExpiresAt:  expiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"plan":                    plan,
			"subscription_expires_at": expiresAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("user", userID.String())
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND role = ?", userID, models.RoleArtist).
			Update("role", models.RolePro).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// verified concurrently by another request
		existing, lookupErr := s.payment(ctx, reference)
		if lookupErr == nil && existing != nil && existing.UserID == userID {
			return existing, nil
		}
		return nil, &ConflictError{Message: "payment reference already used"}
	}
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.log.Info("Subscription activated", "user_id", userID, "plan", plan, "expires_at", expiresAt, "provider", s.gateway.Name())
	return payment, nil
}

func (s *SubscriptionService) payment(ctx context.Context, reference string) (*models.SubscriptionPayment, error) {
	var p models.SubscriptionPayment
	err := s.db.WithContext(ctx).First(&p, "reference = ?", reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns a user's verified payments, newest first.
func (s *SubscriptionService) ListPayments(ctx context.Context, userID uuid.UUID) ([]models.SubscriptionPayment, error) {
	var payments []models.SubscriptionPayment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("verified_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
