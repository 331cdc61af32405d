package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileCategory string

const (
	FileCategoryAudio     FileCategory = "audio"
	FileCategoryStems     FileCategory = "stems"
	FileCategoryArtwork   FileCategory = "artwork"
	FileCategoryLicenses  FileCategory = "licenses"
	FileCategoryContracts FileCategory = "contracts"
)

func (c FileCategory) Valid() bool {
	switch c {
	case FileCategoryAudio, FileCategoryStems, FileCategoryArtwork, FileCategoryLicenses, FileCategoryContracts:
		return true
	}
	return false
}

// ReleaseFile is the metadata of an uploaded release asset. The bytes live in the
// object store under StorageKey.
type ReleaseFile struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID  uuid.UUID    `gorm:"type:uuid;not null;index:idx_release_files_category,priority:1" json:"release_id"`
	Category   FileCategory `gorm:"size:20;not null;index:idx_release_files_category,priority:2" json:"category"`
	Name       string       `gorm:"size:255;not null" json:"name"`
	Size       int64        `json:"size"`
	StorageKey string       `gorm:"size:512;not null" json:"storage_key"`
	MimeType   string       `gorm:"size:100" json:"mime_type,omitempty"`
	Checksum   string       `gorm:"size:64" json:"checksum,omitempty"`
	UploadedBy uuid.UUID    `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (f *ReleaseFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
