package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CareerStage string

const (
	CareerEmerging    CareerStage = "emerging"
	CareerDeveloping  CareerStage = "developing"
	CareerEstablished CareerStage = "established"
)

// ArtistProfile is per-user context fed to task generation.
type ArtistProfile struct {
	ID               uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID                             `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Bio              string                                `gorm:"type:text" json:"bio"`
	BrandAesthetic   string                                `gorm:"size:1000" json:"brand_aesthetic"`
	CareerStage      CareerStage                           `gorm:"size:20" json:"career_stage"`
	SocialHandles    datatypes.JSONType[map[string]string] `json:"social_handles"`
	ReferenceArtists datatypes.JSONSlice[string]           `json:"reference_artists"`
	CreatedAt        time.Time                             `json:"created_at"`
	UpdatedAt        time.Time                             `json:"updated_at"`
}

func (a *ArtistProfile) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
