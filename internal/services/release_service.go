package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type ReleaseService struct {
	db    *gorm.DB
	files *FileService
	log   *logger.Logger
}

func NewReleaseService(db *gorm.DB, files *FileService, log *logger.Logger) *ReleaseService {
	return &ReleaseService{db: db, files: files, log: log}
}

// ReleaseDraft is the input for a new release.
type ReleaseDraft struct {
	Title            string
	ArtistName       string
	Type             models.ReleaseType
	ReleaseDate      *time.Time
	CoverArtKey      string
	WithDefaultTasks bool
}

// ReleaseUpdate carries the fields to change; nil means unchanged.
type ReleaseUpdate struct {
	Title       *string
	ArtistName  *string
	Type        *models.ReleaseType
	Status      *models.ReleaseStatus
	ReleaseDate *time.Time
	CoverArtKey *string
}

// List returns the user's releases, newest first.
func (s *ReleaseService) List(ctx context.Context, userID uuid.UUID) ([]models.Release, error) {
	var releases []models.Release
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	return releases, nil
}

// Create stores a new draft release, optionally with the default checklist in the
// same transaction.
func (s *ReleaseService) Create(ctx context.Context, userID uuid.UUID, draft ReleaseDraft) (*models.Release, error) {
	if draft.Title == "" {
		return nil, invalid("title", "is required")
	}
	if draft.ArtistName == "" {
		return nil, invalid("artist_name", "is required")
	}
	if !draft.Type.Valid() {
		return nil, invalid("type", fmt.Sprintf("unknown release type %q", draft.Type))
	}

	release := &models.Release{
		UserID:      userID,
		Title:       draft.Title,
		ArtistName:  draft.ArtistName,
		Type:        draft.Type,
		Status:      models.ReleaseStatusDraft,
		ReleaseDate: draft.ReleaseDate,
		CoverArtKey: draft.CoverArtKey,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(release).Error; err != nil {
			return err
		}
		if draft.WithDefaultTasks {
			_, err := insertDefaultTasks(tx, release.ID, userID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create release: %w", err)
	}

	s.log.Info("Release created", "release_id", release.ID, "user_id", userID, "default_tasks", draft.WithDefaultTasks)
	return release, nil
}

func (s *ReleaseService) Get(ctx context.Context, id uuid.UUID) (*models.Release, error) {
	var release models.Release
	if err := s.db.WithContext(ctx).First(&release, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "release", id.String())
	}
	return &release, nil
}

// GetOwned returns the release only if userID owns it. Releases of other users are
// reported as not found.
func (s *ReleaseService) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Release, error) {
	var release models.Release
	if err := s.db.WithContext(ctx).First(&release, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, translateNotFound(err, "release", id.String())
	}
	return &release, nil
}

func (s *ReleaseService) Update(ctx context.Context, id uuid.UUID, in ReleaseUpdate) (*models.Release, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		if *in.Title == "" {
			return nil, invalid("title", "must not be empty")
		}
		updates["title"] = *in.Title
	}
	if in.ArtistName != nil {
		if *in.ArtistName == "" {
			return nil, invalid("artist_name", "must not be empty")
		}
		updates["artist_name"] = *in.ArtistName
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, invalid("type", fmt.Sprintf("unknown release type %q", *in.Type))
		}
		updates["type"] = *in.Type
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalid("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		updates["status"] = *in.Status
	}
	if in.ReleaseDate != nil {
		updates["release_date"] = *in.ReleaseDate
	}
	if in.CoverArtKey != nil {
		updates["cover_art_key"] = *in.CoverArtKey
	}

	release, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return release, nil
	}
	if err := s.db.WithContext(ctx).Model(release).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update release: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes the release with everything it owns. Stored file bytes are removed
// after the records are gone.
func (s *ReleaseService) Delete(ctx context.Context, id uuid.UUID) error {
	var files []models.ReleaseFile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Release{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("release", id.String())
		}
		if err := tx.Where("release_id = ?", id).Find(&files).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{&models.Task{}, &models.CampaignTask{}, &models.ReleaseProfile{}, &models.ReleaseFile{}} {
			if err := tx.Where("release_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to delete release: %w", err)
	}

	if s.files != nil && len(files) > 0 {
		s.files.DeleteObjects(ctx, files)
	}
	s.log.Info("Release deleted", "release_id", id, "files", len(files))
	return nil
}
