package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReleaseType string

const (
	ReleaseTypeSingle ReleaseType = "single"
	ReleaseTypeEP     ReleaseType = "ep"
	ReleaseTypeAlbum  ReleaseType = "album"
)

func (t ReleaseType) Valid() bool {
	switch t {
	case ReleaseTypeSingle, ReleaseTypeEP, ReleaseTypeAlbum:
		return true
	}
	return false
}

type ReleaseStatus string

const (
	ReleaseStatusDraft      ReleaseStatus = "draft"
	ReleaseStatusInProgress ReleaseStatus = "in-progress"
	ReleaseStatusReady      ReleaseStatus = "ready"
	ReleaseStatusReleased   ReleaseStatus = "released"
)

func (s ReleaseStatus) Valid() bool {
	switch s {
	case ReleaseStatusDraft, ReleaseStatusInProgress, ReleaseStatusReady, ReleaseStatusReleased:
		return true
	}
	return false
}

// Release is a single, EP or album a user is preparing. Every task, file and profile
// hangs off a release and is removed with it.
type Release struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	ArtistName  string        `gorm:"size:255;not null" json:"artist_name"`
	Type        ReleaseType   `gorm:"size:16;not null" json:"type"`
	Status      ReleaseStatus `gorm:"size:20;not null;default:'draft'" json:"status"`
	ReleaseDate *time.Time    `json:"release_date,omitempty"`
	CoverArtKey string        `gorm:"size:512" json:"cover_art_key,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (r *Release) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReleaseStatusDraft
	}
	return nil
}
