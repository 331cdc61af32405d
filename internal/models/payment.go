package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanMonthly    = "monthly"
	PlanEightMonth = "8months"
	PlanYearly     = "yearly"
)

// SubscriptionPayment records a verified gateway transaction. Reference is the
// gateway's id (a Stripe Checkout Session id) and is unique, which makes verification
// idempotent.
type SubscriptionPayment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Reference  string    `gorm:"size:255;not null;uniqueIndex" json:"reference"`
	Plan       string    `gorm:"size:20;not null" json:"plan"`
	Amount     int64     `json:"amount"`
	Currency   string    `gorm:"size:3" json:"currency"`
	Status     string    `gorm:"size:20;not null" json:"status"`
	VerifiedAt time.Time `gorm:"not null" json:"verified_at"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *SubscriptionPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
