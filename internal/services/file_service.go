package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/audio"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type FileService struct {
	db    *gorm.DB
	cfg   *config.Config
	store ObjectStore
	log   *logger.Logger
}

func NewFileService(db *gorm.DB, cfg *config.Config, store ObjectStore, log *logger.Logger) *FileService {
	return &FileService{db: db, cfg: cfg, store: store, log: log}
}

// Upload is an incoming release asset.
type Upload struct {
	ReleaseID  uuid.UUID
	UploadedBy uuid.UUID
	Category   models.FileCategory
	Name       string
	Size       int64
	Body       io.Reader
}

// Download tells the caller where to fetch a file from. LocalPath is set instead of
// URL when the bytes are on this host.
type Download struct {
	File      *models.ReleaseFile `json:"file"`
	URL       string              `json:"url,omitempty"`
	ExpiresAt time.Time           `json:"expires_at"`
	LocalPath string              `json:"-"`
}

func (s *FileService) ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.ReleaseFile, error) {
	var files []models.ReleaseFile
	if err := s.db.WithContext(ctx).Where("release_id = ?", releaseID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (s *FileService) ListByCategory(ctx context.Context, releaseID uuid.UUID, category models.FileCategory) ([]models.ReleaseFile, error) {
	if !category.Valid() {
		return nil, invalid("category", fmt.Sprintf("unknown category %q", category))
	}
	var files []models.ReleaseFile
	err := s.db.WithContext(ctx).
		Where("release_id = ? AND category = ?", releaseID, category).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (s *FileService) Get(ctx context.Context, id uuid.UUID) (*models.ReleaseFile, error) {
	var f models.ReleaseFile
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "file", id.String())
	}
	return &f, nil
}

// Add stores the bytes first and then the record. If the record cannot be written
// the stored object is removed again.
func (s *FileService) Add(ctx context.Context, up Upload) (*models.ReleaseFile, error) {
	if !up.Category.Valid() {
		return nil, invalid("category", fmt.Sprintf("unknown category %q", up.Category))
	}
	if up.Name == "" {
		return nil, invalid("name", "is required")
	}
	if up.Category == models.FileCategoryAudio && !audio.IsAudioFile(up.Name) {
		return nil, invalid("file", "unsupported audio format (allowed: "+audio.AllowedExtensions()+")")
	}
	if s.cfg.UploadMaxBytes > 0 && up.Size > s.cfg.UploadMaxBytes {
		return nil, invalid("file", fmt.Sprintf("file exceeds %d bytes", s.cfg.UploadMaxBytes))
	}

	br := bufio.NewReader(up.Body)
	head, _ := br.Peek(512)
	mimeType := audio.MimeType(up.Name, head)

	key := BuildObjectKey(up.ReleaseID, string(up.Category), up.Name)
	obj, err := s.store.Put(ctx, key, br, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	file := &models.ReleaseFile{
		ReleaseID:  up.ReleaseID,
		Category:   up.Category,
		Name:       up.Name,
		Size:       obj.Size,
		StorageKey: obj.Key,
		MimeType:   mimeType,
		Checksum:   obj.Checksum,
		UploadedBy: up.UploadedBy,
	}
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), obj.Key); derr != nil {
			s.log.Warn("Failed to remove orphaned object", "key", obj.Key, "error", derr)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	s.log.Info("File uploaded", "release_id", up.ReleaseID, "file_id", file.ID, "category", up.Category, "size", obj.Size)
	return file, nil
}

// Delete removes the stored object and then the record.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, f.StorageKey); err != nil {
		return fmt.Errorf("failed to delete stored object: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&models.ReleaseFile{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

// DeleteObjects removes the stored bytes of the given records. Failures are logged.
func (s *FileService) DeleteObjects(ctx context.Context, files []models.ReleaseFile) {
	for _, f := range files {
		if err := s.store.Delete(ctx, f.StorageKey); err != nil {
			s.log.Warn("Failed to delete stored object", "key", f.StorageKey, "error", err)
		}
	}
}

func (s *FileService) DownloadURL(ctx context.Context, id uuid.UUID) (*Download, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	url, expires, err := s.store.DownloadURL(ctx, f.StorageKey, f.Name, s.cfg.AssetURLTTL)
	if err != nil {
		return nil, err
	}
	d := &Download{File: f, URL: url, ExpiresAt: expires}
	if url == "" {
		if local, ok := s.store.(*LocalStore); ok {
			if d.LocalPath, err = local.Path(f.StorageKey); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

// HasRequiredAudioFile reports whether files contains an audio asset of the release.
func HasRequiredAudioFile(releaseID uuid.UUID, files []models.ReleaseFile) bool {
	for _, f := range files {
		if f.ReleaseID == releaseID && f.Category == models.FileCategoryAudio {
			return true
		}
	}
	return false
}
